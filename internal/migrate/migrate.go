package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Options struct {
	CreateChecks           bool // CHECK constraints on quantities and enumerated statuses
	CreateIndexes          bool // lookup indexes on foreign keys
	CreateUpdatedAtTrigger bool // keeps updated_at current on UPDATE
}

func DefaultOptions() Options {
	return Options{CreateChecks: true, CreateIndexes: true, CreateUpdatedAtTrigger: true}
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'customer',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          UUID PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		CONSTRAINT categories_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id             UUID PRIMARY KEY,
		category_id    UUID REFERENCES categories(id) ON DELETE SET NULL,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		price          NUMERIC(10, 2) NOT NULL,
		size           TEXT NOT NULL,
		color          TEXT NOT NULL DEFAULT '',
		stock_quantity INTEGER NOT NULL,
		is_available   BOOLEAN NOT NULL DEFAULT TRUE,
		unique_code    VARCHAR(6) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT products_unique_code_key UNIQUE (unique_code)
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		cart_number VARCHAR(6) NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT carts_user_id_key UNIQUE (user_id),
		CONSTRAINT carts_cart_number_key UNIQUE (cart_number)
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id         UUID PRIMARY KEY,
		cart_id    UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity   INTEGER NOT NULL DEFAULT 1,
		size       VARCHAR(20) NOT NULL,
		color      VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT cart_items_unique_variant UNIQUE (cart_id, product_id, size, color)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               UUID PRIMARY KEY,
		user_id          UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		order_number     VARCHAR(6) NOT NULL,
		status           TEXT NOT NULL,
		total_amount     NUMERIC(10, 2) NOT NULL DEFAULT 0,
		shipping_address TEXT NOT NULL,
		payment_status   TEXT NOT NULL,
		payment_method   TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT orders_order_number_key UNIQUE (order_number)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id                UUID PRIMARY KEY,
		order_id          UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id        UUID NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
		quantity          INTEGER NOT NULL,
		price_at_purchase NUMERIC(10, 2) NOT NULL,
		size              VARCHAR(20) NOT NULL,
		color             VARCHAR(50) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                 UUID PRIMARY KEY,
		order_id           UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		provider_intent_id VARCHAR(100) NOT NULL,
		amount             NUMERIC(10, 2) NOT NULL,
		status             VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

type check struct{ table, name, expr string }

var checks = []check{
	{"products", "chk_products_stock_nonneg", "stock_quantity >= 0"},
	{"products", "chk_products_price_nonneg", "price >= 0"},
	{"products", "chk_products_size", "size IN ('small','medium','large','extra-large')"},
	{"cart_items", "chk_cart_items_qty_pos", "quantity > 0"},
	{"order_items", "chk_order_items_qty_pos", "quantity > 0"},
	{"orders", "chk_orders_status", "status IN ('pending','processing','shipped','delivered','cancelled')"},
	{"orders", "chk_orders_payment_status", "payment_status IN ('pending','processing','paid','cancelled')"},
	{"orders", "chk_orders_payment_method", "payment_method IN ('visa','mastercard','cod','esewa','connectips')"},
	{"payments", "chk_payments_status", "status IN ('pending','completed')"},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id)`,
}

var triggerTables = []string{"users", "products", "carts", "cart_items", "orders"}

// Run creates the schema. Every statement is idempotent.
func Run(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, opt Options) error {
	log.Info("applying schema")

	for _, stmt := range tables {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	if opt.CreateChecks {
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
					ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
				END IF;
			END $$;`, c.name, c.table, c.name, c.expr)
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("add check %s: %w", c.name, err)
			}
		}
		log.Info("check constraints ensured", zap.Int("count", len(checks)))
	}

	if opt.CreateIndexes {
		for _, stmt := range indexes {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
	}

	if opt.CreateUpdatedAtTrigger {
		if _, err := pool.Exec(ctx, `CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
			BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql`); err != nil {
			return fmt.Errorf("create trigger function: %w", err)
		}
		for _, t := range triggerTables {
			stmt := fmt.Sprintf(`DROP TRIGGER IF EXISTS trg_%[1]s_updated ON %[1]s;
				CREATE TRIGGER trg_%[1]s_updated BEFORE UPDATE ON %[1]s
				FOR EACH ROW EXECUTE FUNCTION set_updated_at();`, t)
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create trigger on %s: %w", t, err)
			}
		}
	}

	log.Info("schema applied")
	return nil
}
