package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TapeHeat/internal/domain/models"
	pkgch "TapeHeat/pkg/clickhouse"
	applogger "TapeHeat/pkg/logger"
)

// CHHeatHistory implements HeatHistory backed by ClickHouse. Inserts happen
// off the dispatch goroutine; the read queries feed the repeat-activity
// factor of the heat scorer.
type CHHeatHistory struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHHeatHistory(ch *pkgch.Client) *CHHeatHistory {
	return &CHHeatHistory{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHHeatHistory) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the history table exists (idempotent).
func (s *CHHeatHistory) Init(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS signal_history (
            ticker      LowCardinality(String),
            signal_type LowCardinality(String),
            magnitude   Float64,
            score       Int32,
            channel     LowCardinality(String),
            details     String,
            at          DateTime64(3, 'UTC')
        )
        ENGINE = MergeTree
        PARTITION BY toYYYYMMDD(at)
        ORDER BY (ticker, at)
        TTL toDateTime(at) + INTERVAL 30 DAY
    `
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init signal_history: %w", err)
	}
	return nil
}

// Record persists one accepted signal summary.
func (s *CHHeatHistory) Record(ctx context.Context, rec models.Record) error {
	start := time.Now()
	const q = `
        INSERT INTO signal_history (ticker, signal_type, magnitude, score, channel, details, at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		rec.Ticker, string(rec.Type), rec.Magnitude, int32(rec.Score), rec.Channel, rec.Details, rec.At)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse record error",
				applogger.String("ticker", rec.Ticker),
				applogger.String("type", string(rec.Type)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("record signal: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse record ok",
			applogger.String("ticker", rec.Ticker),
			applogger.String("type", string(rec.Type)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// RecentCount returns the number of signals on a ticker since the cutoff.
func (s *CHHeatHistory) RecentCount(ctx context.Context, ticker string, since time.Time) (int, error) {
	const q = `SELECT count() FROM signal_history WHERE ticker = ? AND at >= ?`
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, ticker, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("recent count: %w", err)
	}
	return int(n), nil
}

// SweepCount returns the number of sweep signals on a ticker since the cutoff.
func (s *CHHeatHistory) SweepCount(ctx context.Context, ticker string, since time.Time) (int, error) {
	const q = `SELECT count() FROM signal_history WHERE ticker = ? AND signal_type = 'sweep' AND at >= ?`
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, ticker, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("sweep count: %w", err)
	}
	return int(n), nil
}

// Recent lists the newest records, optionally filtered by ticker and type.
func (s *CHHeatHistory) Recent(ctx context.Context, ticker, signalType string, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
        SELECT ticker, signal_type, magnitude, score, channel, details, at
        FROM signal_history
        WHERE 1 = 1
    `
	args := make([]any, 0, 3)
	if ticker != "" {
		q += " AND ticker = ?"
		args = append(args, ticker)
	}
	if signalType != "" {
		q += " AND signal_type = ?"
		args = append(args, signalType)
	}
	q += " ORDER BY at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, limit)
	for rows.Next() {
		var rec models.Record
		var typ string
		var score int32
		if err := rows.Scan(&rec.Ticker, &typ, &rec.Magnitude, &score, &rec.Channel, &rec.Details, &rec.At); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Type = models.SignalType(typ)
		rec.Score = int(score)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Health pings the store.
func (s *CHHeatHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pooled client owns the connection.
func (s *CHHeatHistory) Close() error { return nil }
