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

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	// GetForUser returns nil when the order does not exist or belongs to someone else.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	// MarkPaid sets payment_status=paid and moves a pending order to processing.
	// Cancelled orders are left untouched and reported as nil.
	MarkPaid(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, user_id, order_number, status, total_amount, shipping_address,
	payment_status, payment_method, created_at, updated_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.ShippingAddress,
		&o.PaymentStatus, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	order.ID = uuid.New()
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO orders (id, user_id, order_number, status, total_amount, shipping_address,
			payment_status, payment_method)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.OrderNumber, order.Status, order.TotalAmount,
		order.ShippingAddress, order.PaymentStatus, order.PaymentMethod,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isCodeCollision(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) CreateItems(ctx context.Context, items []model.OrderItem) error {
	batch := &pgx.Batch{}
	for i := range items {
		items[i].ID = uuid.New()
		batch.Queue(
			`INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase, size, color)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			items[i].ID, items[i].OrderID, items[i].ProductID, items[i].Quantity,
			items[i].PriceAtPurchase, items[i].Size, items[i].Color,
		)
	}

	br := conn(ctx, r.pool).SendBatch(ctx, batch)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	err := scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID,
	), order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT oi.id, oi.product_id, p.name, oi.quantity, oi.price_at_purchase, oi.size, oi.color
		 FROM order_items oi JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1 ORDER BY p.name`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity,
			&item.PriceAtPurchase, &item.Size, &item.Color); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) MarkPaid(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	err := scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE orders
		 SET payment_status = 'paid',
		     status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END
		 WHERE id = $1 AND status <> 'cancelled'
		 RETURNING `+orderColumns, id,
	), order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	return order, nil
}
