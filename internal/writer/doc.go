// Package writer journals user channel events to PostgreSQL.
//
// EventWriter.HandleOrder and HandleTrade plug straight into subscription
// callbacks. Events are buffered and written in pgx batches on an interval
// or when a batch fills. Inserts are append-only with ON CONFLICT DO NOTHING:
// trades are keyed by (trade_id, status) and order events by a deterministic
// UUID, so events replayed after a reconnect are not stored twice.
package writer
