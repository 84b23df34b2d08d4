package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-checkout-api/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetByCode(ctx context.Context, code string) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	// Update writes the descriptive columns. stock_quantity is only written when
	// stock is non-nil, so concurrent checkout decrements are never overwritten
	// with a stale count; product.StockQuantity is refreshed from the row.
	Update(ctx context.Context, product *model.Product, stock *int) error
	// DecrementStock subtracts quantity only while stock_quantity >= quantity.
	// It reports false when the guard rejected the update.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, category_id, name, description, price, size, color,
	stock_quantity, is_available, unique_code, created_at, updated_at`

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Size, &p.Color,
		&p.StockQuantity, &p.IsAvailable, &p.UniqueCode, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, category_id, name, description, price, size, color,
				stock_quantity, is_available, unique_code)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price,
		product.Size, product.Color, product.StockQuantity, product.IsAvailable, product.UniqueCode,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isCodeCollision(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *pgProductRepo) GetByCode(ctx context.Context, code string) (*model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE unique_code = $1`, code)
}

func (r *pgProductRepo) getOne(ctx context.Context, query string, arg any) (*model.Product, error) {
	p := &model.Product{}
	if err := scanProduct(conn(ctx, r.pool).QueryRow(ctx, query, arg), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context) ([]model.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product, stock *int) error {
	query := `UPDATE products SET category_id=$2, name=$3, description=$4, price=$5, size=$6,
				color=$7, stock_quantity=COALESCE($8, stock_quantity), is_available=$9
			  WHERE id=$1 RETURNING stock_quantity, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		product.ID, product.CategoryID, product.Name, product.Description, product.Price,
		product.Size, product.Color, stock, product.IsAvailable,
	).Scan(&product.StockQuantity, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $2 WHERE id = $1 AND stock_quantity >= $2`,
		productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
