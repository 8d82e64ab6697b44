// Package repository holds the PostgreSQL persistence layer. Every method
// accepts an optional *sql.Tx; a nil tx runs the statement on the pool.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDailyStatsExists  = errors.New("daily stats already exist")
	errNilTransactionFun = errors.New("nil transaction function")
)

// maxRowsPerStatement keeps multi-row statements well below the 65535 bind parameter limit.
const maxRowsPerStatement = 1000

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner is the single transaction boundary used for batch writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type txRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &txRunner{db: db}
}

// InTx commits when fn returns nil and rolls back on error or panic.
func (r *txRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if fn == nil {
		return errNilTransactionFun
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func conn(db *sql.DB, tx *sql.Tx) DBTX {
	if tx == nil {
		return db
	}
	return tx
}

// valuesList renders rows groups of cols placeholders, numbered from 1,
// wrapping each placeholder with cast[i] when given.
func valuesList(rows, cols int, casts ...string) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			if c < len(casts) && casts[c] != "" {
				b.WriteString("::")
				b.WriteString(casts[c])
			}
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// inList renders "$1, $2, ..., $n".
func inList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func chunks(n int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
