package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent; Migrate can run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		sku         TEXT NOT NULL DEFAULT '',
		stock       INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		base_price  NUMERIC(12,2) NOT NULL DEFAULT 0,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_sku_idx ON products (sku)`,
	`CREATE INDEX IF NOT EXISTS products_active_idx ON products (is_active, name)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		customer_name  TEXT NOT NULL,
		phone          TEXT NOT NULL,
		email          TEXT NOT NULL DEFAULT '',
		remarks        TEXT NOT NULL DEFAULT '',
		created_by     TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('reserved','paid','cancelled')),
		items          JSONB NOT NULL DEFAULT '[]',
		override_total NUMERIC(12,2),
		final_total    NUMERIC(12,2) NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT '',
		paid_at        TIMESTAMPTZ,
		paid_by        TEXT NOT NULL DEFAULT '',
		receipt_no     TEXT NOT NULL DEFAULT '',
		receipt_ref    TEXT NOT NULL DEFAULT '',
		proofs         JSONB NOT NULL DEFAULT '[]',
		cancelled_by   TEXT NOT NULL DEFAULT '',
		cancelled_at   TIMESTAMPTZ,
		share_token    TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_phone_idx ON orders (phone)`,
	`CREATE INDEX IF NOT EXISTS orders_email_idx ON orders (email)`,
	`CREATE INDEX IF NOT EXISTS orders_receipt_no_idx ON orders (receipt_no)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_share_token_idx ON orders (share_token) WHERE share_token <> ''`,

	// order_id FK deferred: reservasi ditulis sebelum baris order di-insert.
	`CREATE TABLE IF NOT EXISTS reservations (
		id          BIGSERIAL PRIMARY KEY,
		order_id    TEXT NOT NULL REFERENCES orders (id) DEFERRABLE INITIALLY DEFERRED,
		line_no     INTEGER NOT NULL,
		product_id  TEXT NOT NULL REFERENCES products (id),
		qty         INTEGER NOT NULL CHECK (qty > 0),
		status      TEXT NOT NULL CHECK (status IN ('RESERVED','RELEASED','CONSUMED')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		settled_at  TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reservations_active_line_idx
		ON reservations (order_id, line_no) WHERE status = 'RESERVED'`,
	`CREATE INDEX IF NOT EXISTS reservations_product_idx ON reservations (product_id, status)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id           TEXT PRIMARY KEY,
		at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		actor        TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL DEFAULT '',
		action       TEXT NOT NULL,
		entity_type  TEXT NOT NULL DEFAULT '',
		entity_id    TEXT NOT NULL DEFAULT '',
		meta         JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_at_idx ON audit_log (at DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_log_entity_idx ON audit_log (entity_type, entity_id)`,
}

// migrateLockKey serializes concurrent Migrate calls from several processes.
const migrateLockKey = 7420031

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return RunTx(ctx, pool, TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockKey); err != nil {
			return fmt.Errorf("migrate lock: %w", err)
		}
		for i, stmt := range Schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate step %d: %w", i, err)
			}
		}
		return nil
	})
}
