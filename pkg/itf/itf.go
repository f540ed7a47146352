// Package itf holds the integration-test fixture. Tests that need a
// database call Setup, which skips unless VARDA_TEST_DATABASE_URL points
// at a database with config/schema.sql applied. Each test runs inside a
// transaction that is rolled back on cleanup, so tests never see each
// other's rows.
package itf

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/pkg/composables"
)

const dsnEnv = "VARDA_TEST_DATABASE_URL"

type Environment struct {
	Ctx  context.Context
	Pool *pgxpool.Pool
	Tx   pgx.Tx
}

// Setup opens a pool against the test database and begins the
// per-test transaction. The returned context carries both, so services
// exercised through it share one commit point that never commits.
func Setup(tb testing.TB) *Environment {
	tb.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		tb.Skipf("set %s to run database tests", dsnEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		tb.Fatal(err)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		pool.Close()
		tb.Fatal(err)
	}

	tb.Cleanup(func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tb.Logf("rollback: %v", err)
		}
		pool.Close()
	})

	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTx(ctx, tx)
	return &Environment{Ctx: ctx, Pool: pool, Tx: tx}
}

// WithPrincipal binds a principal to the environment's context, the way
// the certificate and session middleware do for real requests.
func (e *Environment) WithPrincipal(k kayttaja.Kayttaja) context.Context {
	return composables.WithKayttaja(e.Ctx, k)
}
