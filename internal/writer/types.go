package writer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrBufferFull is returned by the Handle methods when the journal cannot keep up.
var ErrBufferFull = errors.New("journal buffer full")

// WriterConfig holds batch settings.
type WriterConfig struct {
	BatchSize     int           // Rows per flush. Default: 500
	FlushInterval time.Duration // Max time a row waits. Default: 1s
	BufferSize    int           // Max pending events per table, 0 = unbounded. Default: 10000
}

// DefaultWriterConfig returns the default batch settings.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics counts journal activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64 // Rows already present (replayed events)
	Errors    int64 // Failed batches
	Flushes   int64
	Dropped   int64 // Events rejected with ErrBufferFull
}

// DB is the subset of *pgxpool.Pool the journal uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type orderRow struct {
	EventID      string
	OrderID      string
	EventType    string
	Side         string
	Price        decimal.Decimal
	MatchedSize  decimal.Decimal
	OriginalSize decimal.Decimal
	AssetID      string
	Market       string
	Outcome      string
	ExchangeTs   time.Time
	ReceivedAt   time.Time
}

type tradeRow struct {
	TradeID         string
	Status          string
	Side            string
	Price           decimal.Decimal
	Size            decimal.Decimal
	Outcome         string
	TransactionHash string
	AssetID         string
	Market          string
	ExchangeTs      time.Time
	ReceivedAt      time.Time
}
