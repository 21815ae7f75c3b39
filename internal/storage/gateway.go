package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finance/internal/core"

	_ "modernc.org/sqlite"
)

// Gateway owns the process-wide handle to the SQLite store. All access goes
// through WithSession.
type Gateway struct {
	db   *sql.DB
	path string
}

// Open connects to the database at dbPath and initializes the schema.
func Open(ctx context.Context, dbPath string) (*Gateway, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g := &Gateway{db: db, path: dbPath}
	if err := g.InitializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "Storage gateway ready", "path", dbPath)
	return g, nil
}

// dsn adds the pragmas every connection needs. SQLite serializes writers, so
// concurrent sessions wait instead of failing with SQLITE_BUSY.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// InitializeSchema creates the transactions table if it does not exist.
func (g *Gateway) InitializeSchema() error {
	if err := RunMigrations(g.path); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Ping reports whether the store is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *Gateway) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

// Session is a unit of work bound to one connection and one database
// transaction. It is only valid inside the WithSession callback.
type Session struct {
	queries *Queries
}

// WithSession runs fn in a fresh session. The session commits when fn returns
// nil and rolls back otherwise, including when fn panics. The connection is
// released on every path.
func (g *Gateway) WithSession(ctx context.Context, fn func(*Session) error) error {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Session{queries: New(tx)}); err != nil {
		done = true
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Session rollback failed", "error", rbErr)
		}
		return err
	}

	done = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Create inserts a new row and returns it with the id assigned by the store.
func (s *Session) Create(ctx context.Context, in core.TransactionCreate) (core.Transaction, error) {
	row, err := s.queries.CreateTransaction(ctx, CreateTransactionParams{
		Type:     in.Type.String(),
		Category: in.Category,
		Amount:   in.Amount,
		Date:     in.Date.String(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return row.toCore()
}

// List returns every row ordered by id.
func (s *Session) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns core.ErrNotFound when no row has the given id.
func (s *Session) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := s.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return row.toCore()
}

// Delete removes the row permanently. core.ErrNotFound if nothing was removed.
func (s *Session) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r TransactionRow) toCore() (core.Transaction, error) {
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %d: %w", r.ID, err)
	}
	return core.Transaction{
		ID:       r.ID,
		Type:     typ,
		Category: r.Category,
		Amount:   r.Amount,
		Date:     core.Date{Time: r.Date.Time},
	}, nil
}
