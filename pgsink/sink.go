// Package pgsink archives reconciled timeline records to PostgreSQL. The
// table carries the same (tx_hash, log_index) uniqueness as the in-memory
// store, so re-archiving after a restart is harmless.
package pgsink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS payroll_events (
	tx_hash        TEXT NOT NULL,
	log_index      INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	actor          TEXT NOT NULL,
	counterparty   TEXT,
	amount         NUMERIC(78, 0),
	worked_minutes BIGINT,
	block_number   BIGINT NOT NULL,
	block_time     TIMESTAMPTZ NOT NULL,
	inserted_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_hash, log_index)
);
CREATE INDEX IF NOT EXISTS idx_payroll_events_actor ON payroll_events(actor);
CREATE INDEX IF NOT EXISTS idx_payroll_events_block ON payroll_events(block_number, log_index);
`

const insertEventSQL = `
INSERT INTO payroll_events
	(tx_hash, log_index, kind, actor, counterparty, amount, worked_minutes, block_number, block_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tx_hash, log_index) DO NOTHING
`

// Sink writes ledger events to a payroll_events table.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.Mutex
	stats struct {
		Inserted uint64
		Skipped  uint64
		Errors   uint64
	}
}

// NewSink opens the database, verifies connectivity, and ensures the schema
// exists.
func NewSink(connStr string, logger *zap.Logger) (*Sink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Sink{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("postgres sink ready")
	return s, nil
}

func (s *Sink) initSchema() error {
	_, err := s.db.Exec(createEventsTableSQL)
	return err
}

// Archive inserts the given records in one transaction. Records already in
// the table count as skipped, not errors.
func (s *Sink) Archive(ctx context.Context, records []*payroll.LedgerEvent) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.countError()
		return &payroll.TransientIOError{Op: "begin archive transaction", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		tx.Rollback()
		s.countError()
		return &payroll.TransientIOError{Op: "prepare archive insert", Err: err}
	}
	defer stmt.Close()

	var inserted, skipped uint64
	for _, rec := range records {
		var counterparty interface{}
		if rec.Counterparty != nil {
			counterparty = rec.Counterparty.Hex()
		}
		var amount interface{}
		if rec.Amount != nil {
			amount = rec.Amount.String()
		}
		var workedMinutes interface{}
		if rec.Kind == payroll.KindCheckOut {
			workedMinutes = int64(rec.WorkedMinutes)
		}

		res, err := stmt.ExecContext(ctx,
			rec.TxHash.Hex(),
			rec.LogIndex,
			string(rec.Kind),
			rec.Actor.Hex(),
			counterparty,
			amount,
			workedMinutes,
			rec.BlockNumber,
			rec.Timestamp,
		)
		if err != nil {
			tx.Rollback()
			s.countError()
			return &payroll.TransientIOError{Op: "insert timeline record", Err: err}
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		s.countError()
		return &payroll.TransientIOError{Op: "commit archive transaction", Err: err}
	}

	s.mu.Lock()
	s.stats.Inserted += inserted
	s.stats.Skipped += skipped
	s.mu.Unlock()

	s.logger.Debug("archived timeline records",
		zap.Uint64("inserted", inserted),
		zap.Uint64("skipped", skipped),
	)
	return nil
}

func (s *Sink) countError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
}

// Close closes the database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Stats returns archive counters for the health endpoint.
func (s *Sink) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"inserted": s.stats.Inserted,
		"skipped":  s.stats.Skipped,
		"errors":   s.stats.Errors,
	}
}
