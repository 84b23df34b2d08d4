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

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	// GetForUser joins through orders so payments of other customers are invisible.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Payment, error)
	// MarkCompleted moves a pending payment to completed; false means it was not pending.
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
}

type pgPaymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &pgPaymentRepo{pool: pool}
}

func (r *pgPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	payment.ID = uuid.New()
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO payments (id, order_id, provider_intent_id, amount, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		payment.ID, payment.OrderID, payment.ProviderIntentID, payment.Amount, payment.Status,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Payment, error) {
	p := &model.Payment{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT pm.id, pm.order_id, pm.provider_intent_id, pm.amount, pm.status, pm.created_at
		 FROM payments pm JOIN orders o ON o.id = pm.order_id
		 WHERE pm.id = $1 AND o.user_id = $2`, id, userID,
	).Scan(&p.ID, &p.OrderID, &p.ProviderIntentID, &p.Amount, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *pgPaymentRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE payments SET status = 'completed' WHERE id = $1 AND status = 'pending'`, id,
	)
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
