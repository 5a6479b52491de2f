// Package engine wraps the embedded analytical engine behind a single
// mutual-exclusion section: one statement or query executes at a time, and
// contention blocks the caller. The engine is SQLite (pure Go driver); query
// results are materialized into typed columnar batches.
//
// Cache tiers never hold the engine lock concurrently with their own locks;
// callers that need both acquire and release the engine section first.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/arsdragonfly/ultralogi/pkg/config"
	"github.com/arsdragonfly/ultralogi/pkg/errors"
)

// Engine serializes access to one embedded database handle.
type Engine struct {
	mu        sync.Mutex
	db        *sql.DB
	log       *zap.Logger
	batchRows int
	closed    bool
}

// Open opens the embedded engine at the configured path.
func Open(cfg config.EngineConfig, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn := cfg.Path
	if dsn != ":memory:" {
		// The driver applies each _pragma on every new connection.
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
			cfg.Path, cfg.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "open database")
	}

	// A single connection keeps in-memory databases coherent and matches
	// the one-statement-at-a-time execution model.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "ping database")
	}

	batchRows := cfg.BatchRows
	if batchRows <= 0 {
		batchRows = 8192
	}

	log.Info("engine opened", zap.String("path", cfg.Path))

	return &Engine{
		db:        db,
		log:       log,
		batchRows: batchRows,
	}, nil
}

// Execute runs a single SQL statement and returns the number of rows
// affected.
func (e *Engine) Execute(ctx context.Context, sqlText string, args ...interface{}) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, errClosed()
	}

	res, err := e.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "execute statement")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "rows affected")
	}
	return rows, nil
}

// BulkInsert runs one INSERT statement for every row inside a single
// transaction, holding the engine section once for the whole batch.
func (e *Engine) BulkInsert(ctx context.Context, insertSQL string, rows [][]interface{}) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, errClosed()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "prepare insert")
	}

	var total int64
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, errors.Wrap(err, errors.ErrorTypeEngine, "insert row")
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, errors.Wrap(err, errors.ErrorTypeEngine, "rows affected")
		}
		total += n
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "close statement")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEngine, "commit transaction")
	}
	return total, nil
}

// Explain returns the engine's query plan for the given SQL.
func (e *Engine) Explain(ctx context.Context, sqlText string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", errClosed()
	}

	rows, err := e.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlText)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeEngine, "explain query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeEngine, "explain columns")
	}

	var plan strings.Builder
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeEngine, "scan plan row")
		}
		// The plan detail is the last column.
		switch v := values[len(values)-1].(type) {
		case string:
			plan.WriteString(v)
		case []byte:
			plan.Write(v)
		default:
			fmt.Fprintf(&plan, "%v", v)
		}
		plan.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeEngine, "iterate plan rows")
	}

	return plan.String(), nil
}

// QueryBlobs runs a query returning a single BLOB column and materializes
// every row.
func (e *Engine) QueryBlobs(ctx context.Context, sqlText string, args ...interface{}) ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errClosed()
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "query blobs")
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeEngine, "scan blob")
		}
		out = append(out, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "iterate blob rows")
	}
	return out, nil
}

// Close releases the engine handle. Any later call fails with a lock error.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if err := e.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEngine, "close database")
	}
	return nil
}

func errClosed() *errors.Error {
	return errors.New(errors.ErrorTypeLock, "engine is closed")
}
