package persistence_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // golang postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/internal/infrastructure/persistence"
	"cardbridge/pkg/dbtest"
	"cardbridge/pkg/errcodes"
)

// Тесты репозитория ходят в настоящий Postgres: выставьте PG_TEST_DSN,
// иначе пакет пропускается.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN is not set")
	}

	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, file, _, _ := runtime.Caller(0)
	migration := filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", "0001_init.sql")

	require.NoError(t, dbtest.MigrateFromFile(db, migration))

	_, err = db.Exec(`TRUNCATE ledger_entries, deals`)
	require.NoError(t, err)

	return db
}

func sampleDeal(id string) *entity.Deal {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	return &entity.Deal{
		ID:       id,
		SeekerID: "seeker-1",
		Title:    "headphones",
		Cart: []entity.CartItem{
			{Name: "headphones", UnitPrice: value.NewMoney(99_999, "USD"), Quantity: 1},
		},
		Terms: entity.DealTerms{
			CommissionBps:    500,
			PlatformFeeBps:   250,
			RequiredBenefits: value.NewBenefitSet("purchase_protection"),
			Urgency:          entity.UrgencyNormal,
		},
		Status: entity.StatusOpen,
		Audit: []entity.AuditEntry{
			{At: now, Actor: "seeker-1", Transition: "publish"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRecordAndGetByID(t *testing.T) {
	repo := persistence.NewDealRepository(testDB(t))
	ctx := context.Background()

	d := sampleDeal("d1")
	require.NoError(t, repo.Record(ctx, d, nil))

	got, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, d.SeekerID, got.SeekerID)
	assert.Equal(t, d.Status, got.Status)
	assert.Equal(t, d.Cart, got.Cart)
	assert.True(t, got.Terms.RequiredBenefits.Has("purchase_protection"))
	require.Len(t, got.Audit, 1)

	_, err = repo.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, errcodes.DealNotFound))
}

func TestRecordUpsertsNewVersion(t *testing.T) {
	repo := persistence.NewDealRepository(testDB(t))
	ctx := context.Background()

	d := sampleDeal("d1")
	require.NoError(t, repo.Record(ctx, d, nil))

	d.Status = entity.StatusAccepted
	d.CardholderID = "holder-1"
	d.Deadline = d.UpdatedAt.Add(12 * time.Hour)
	require.NoError(t, repo.Record(ctx, d, nil))

	got, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, got.Status)
	assert.Equal(t, "holder-1", got.CardholderID)
	assert.False(t, got.Deadline.IsZero())
}

func TestRecordDeduplicatesLedgerEntries(t *testing.T) {
	repo := persistence.NewDealRepository(testDB(t))
	ctx := context.Background()

	d := sampleDeal("d1")
	entry := entity.LedgerEntry{
		ID:      "e1",
		DealID:  "d1",
		Account: entity.AccountSeekerEscrow,
		Amount:  value.NewMoney(107_499, "USD"),
		At:      d.CreatedAt,
	}

	require.NoError(t, repo.Record(ctx, d, []entity.LedgerEntry{entry}))
	// Повторная доставка той же версии.
	require.NoError(t, repo.Record(ctx, d, []entity.LedgerEntry{entry}))

	entries, err := repo.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "duplicate delivery must not double the ledger")
	assert.Equal(t, entry.Amount, entries[0].Amount)
}

func TestLoadDealsReplay(t *testing.T) {
	repo := persistence.NewDealRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, sampleDeal("d1"), nil))
	require.NoError(t, repo.Record(ctx, sampleDeal("d2"), nil))

	deals, err := repo.LoadDeals(ctx)
	require.NoError(t, err)
	assert.Len(t, deals, 2)
}
