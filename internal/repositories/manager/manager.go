// Package manager opens the Postgres connection behind the token ledger,
// applies the embedded migrations, and hands out repositories bound to it.
package manager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/nichepulse/tokenvault/internal/migrations"
	"github.com/nichepulse/tokenvault/internal/repositories/tokens"
)

// PostgresManager owns the *sql.DB for the token ledger.
type PostgresManager struct {
	db     *sql.DB
	tokens *tokens.PostgresRepository
}

// NewPostgresManager opens the pgx/stdlib pool for dsn, waits for the
// database to answer a ping (capped exponential backoff, the database
// usually comes up later than this process in a fresh deployment), and
// runs the embedded migrations.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := &PostgresManager{db: db, tokens: tokens.NewPostgresRepository(db)}
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

// Tokens returns the token ledger repository.
func (m *PostgresManager) Tokens() *tokens.PostgresRepository {
	return m.tokens
}

// Close releases the connection pool.
func (m *PostgresManager) Close() error {
	return m.db.Close()
}
