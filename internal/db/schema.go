// Package db owns the Postgres schema for the order pipeline and applies it
// at startup. Both binaries call Migrate so either can be booted first
// against an empty database.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create table if not exists orders (
    id                 uuid primary key,
    user_id            text not null,
    service_id         text not null,
    parameters         jsonb not null default '{}'::jsonb,
    status             text not null,
    current_step_index int  not null default 0,
    result             jsonb,
    error_message      text not null default '',
    created_at         timestamptz not null default now(),
    updated_at         timestamptz not null default now()
);

create index if not exists idx_orders_user on orders (user_id, created_at desc);

create table if not exists queue_items (
    id              uuid primary key,
    order_id        uuid not null references orders (id),
    processing_step text not null,
    status          text not null,
    attempts        int  not null default 0,
    max_attempts    int  not null default 3,
    scheduled_at    timestamptz not null,
    started_at      timestamptz,
    completed_at    timestamptz,
    error_message   text not null default '',
    created_at      timestamptz not null default now(),
    updated_at      timestamptz not null default now()
);

create index if not exists idx_queue_items_due on queue_items (scheduled_at) where status = 'pending';
create index if not exists idx_queue_items_order on queue_items (order_id, created_at);
`

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
