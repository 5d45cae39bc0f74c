package writer

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
	event_id      UUID PRIMARY KEY,
	order_id      TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	side          TEXT NOT NULL,
	price         NUMERIC NOT NULL,
	matched_size  NUMERIC NOT NULL,
	original_size NUMERIC NOT NULL,
	asset_id      TEXT,
	market        TEXT,
	outcome       TEXT,
	exchange_ts   TIMESTAMPTZ,
	received_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_events_order_id_idx ON order_events (order_id, exchange_ts);

CREATE TABLE IF NOT EXISTS trade_events (
	trade_id         TEXT NOT NULL,
	status           TEXT NOT NULL,
	side             TEXT NOT NULL,
	price            NUMERIC NOT NULL,
	size             NUMERIC NOT NULL,
	outcome          TEXT,
	transaction_hash TEXT,
	asset_id         TEXT,
	market           TEXT,
	exchange_ts      TIMESTAMPTZ,
	received_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (trade_id, status)
);
`

// EnsureSchema creates the journal tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}
