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

type CartRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	// LockByUserID is GetByUserID with the cart row locked until the surrounding
	// transaction ends. A second checkout of the same cart waits here and then
	// sees the items the first one removed.
	LockByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	// GetOrCreate is an idempotent upsert keyed on user_id. cartNumber is only
	// used when a new row is inserted.
	GetOrCreate(ctx context.Context, userID uuid.UUID, cartNumber string) (*model.Cart, error)
	// ListItems loads items together with their products. With lockProducts the
	// product rows stay locked until the surrounding transaction ends.
	ListItems(ctx context.Context, cartID uuid.UUID, lockProducts bool) ([]model.CartItem, error)
	// UpsertItem inserts the item or adds its quantity to the existing
	// (cart, product, size, color) row. item is updated with the stored state.
	UpsertItem(ctx context.Context, item *model.CartItem) error
	CountItems(ctx context.Context, cartID uuid.UUID) (int, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

const cartByUserQuery = `SELECT id, user_id, cart_number, created_at, updated_at FROM carts WHERE user_id = $1`

func (r *pgCartRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getByUser(ctx, cartByUserQuery, userID)
}

func (r *pgCartRepo) LockByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getByUser(ctx, cartByUserQuery+` FOR UPDATE`, userID)
}

func (r *pgCartRepo) getByUser(ctx context.Context, query string, userID uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{}
	err := conn(ctx, r.pool).QueryRow(ctx, query, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CartNumber, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, cartNumber string) (*model.Cart, error) {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO carts (id, user_id, cart_number) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID, cartNumber,
	)
	if err != nil {
		if isCodeCollision(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}

	cart, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("create cart: row for user %s vanished", userID)
	}
	return cart, nil
}

func (r *pgCartRepo) ListItems(ctx context.Context, cartID uuid.UUID, lockProducts bool) ([]model.CartItem, error) {
	query := `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.size, ci.color, ci.created_at, ci.updated_at,
				p.id, p.category_id, p.name, p.description, p.price, p.size, p.color,
				p.stock_quantity, p.is_available, p.unique_code, p.created_at, p.updated_at
			  FROM cart_items ci
			  JOIN products p ON p.id = ci.product_id
			  WHERE ci.cart_id = $1
			  ORDER BY p.id, ci.created_at`
	if lockProducts {
		// rows are locked in product id order so concurrent checkouts cannot deadlock
		query += ` FOR UPDATE OF p`
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		p := &model.Product{}
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Size, &item.Color,
			&item.CreatedAt, &item.UpdatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Size, &p.Color,
			&p.StockQuantity, &p.IsAvailable, &p.UniqueCode, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = p
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgCartRepo) UpsertItem(ctx context.Context, item *model.CartItem) error {
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity, size, color)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT ON CONSTRAINT cart_items_unique_variant
			  DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			  RETURNING id, quantity, created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		uuid.New(), item.CartID, item.ProductID, item.Quantity, item.Size, item.Color,
	).Scan(&item.ID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) CountItems(ctx context.Context, cartID uuid.UUID) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM cart_items WHERE cart_id = $1`, cartID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return n, nil
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID,
	)
	if err != nil {
		return false, fmt.Errorf("delete cart item: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgCartRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
