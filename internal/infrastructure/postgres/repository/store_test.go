package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/config"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/storetest"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	db, err := postgres.OpenDB(config.Store{Backend: "sqlite", Dir: t.TempDir(), AutoMigrate: true})
	require.NoError(t, err)
	s := NewStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store { return openSQLite(t) })
}

func TestDuplicateLedgerEntryConflicts(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	entry := &domain.LedgerEntry{
		LedgerID: "e1", Timestamp: time.Now().UTC(), LeaseID: "l1",
		Unit: domain.UnitCall, Quantity: "1", Cost: "1",
	}
	require.NoError(t, s.AppendLedger(ctx, entry))
	err := s.AppendLedger(ctx, entry)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestActorColumnsAreNormalized(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	now := time.Now().UTC()
	require.NoError(t, s.SaveLease(ctx, &domain.Lease{
		LeaseID: "l1", ResourceID: "res1", ProviderActorID: "0xABCDEF",
		ConsumerActorID: "0xFEDCBA", Status: domain.LeaseActive, IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	leases, err := s.ListLeases(ctx, domain.LeaseFilter{ProviderActorID: "0xabcdef", ConsumerActorID: "0xfEdCbA"})
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, "0xABCDEF", leases[0].ProviderActorID)
}

type busyErr struct{ code int }

func (e busyErr) Error() string { return "sqlite error" }
func (e busyErr) Code() int     { return e.code }

func TestWrapErrClassifiesDriverCodes(t *testing.T) {
	serialization := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	assert.ErrorIs(t, wrapErr(serialization, "transaction"), domain.ErrConflict)

	// only the code counts, never the message text
	other := &pgconn.PgError{Code: "23503", Message: "40001 mentioned in text"}
	err := wrapErr(other, "query")
	assert.NotErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, other)

	assert.ErrorIs(t, wrapErr(busyErr{code: 5}, "query"), domain.ErrUnavailable)
	// SQLITE_BUSY_SNAPSHOT carries the primary code in the low byte
	assert.ErrorIs(t, wrapErr(busyErr{code: 517}, "query"), domain.ErrUnavailable)
	assert.NotErrorIs(t, wrapErr(busyErr{code: 19}, "query"), domain.ErrUnavailable)
	assert.NotErrorIs(t, wrapErr(errors.New("database is locked"), "query"), domain.ErrUnavailable)
}
