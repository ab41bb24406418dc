package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/pkg/errcodes"
)

const dealColumns = `id, seeker_id, cardholder_id, title, description, category,
		status, cart, terms, audit, proof_ref, proof_at, deadline, created_at, updated_at`

type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository создаёт новый экземпляр репозитория.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *DealRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// Record сохраняет версию сделки вместе с её проводками атомарно.
// Это упреждающая запись движка: вызывается до подтверждения операции,
// поэтому либо коммитится всё, либо ничего. Повторная доставка той же
// версии безвредна: сделка апсертится, проводки дедуплицируются по id.
func (r *DealRepository) Record(ctx context.Context, deal *entity.Deal, entries []entity.LedgerEntry) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.upsertDealTx(ctx, tx, deal); err != nil {
			return err
		}

		for _, entry := range entries {
			if err := r.insertEntryTx(ctx, tx, entry); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID возвращает сделку по идентификатору.
func (r *DealRepository) GetByID(ctx context.Context, id string) (*entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	var schema dealSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.DealNotFound, "deal not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get deal")
	}

	return schema.toDomain()
}

// LoadDeals возвращает все сделки для реплея в реестр при старте.
func (r *DealRepository) LoadDeals(ctx context.Context) ([]*entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals ORDER BY created_at`

	var schemas []dealSchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to load deals")
	}

	deals := make([]*entity.Deal, 0, len(schemas))
	for _, s := range schemas {
		deal, err := s.toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert deal")
		}
		deals = append(deals, deal)
	}

	return deals, nil
}

// LoadLedger возвращает все проводки в порядке записи для реплея
// леджера при старте.
func (r *DealRepository) LoadLedger(ctx context.Context) ([]entity.LedgerEntry, error) {
	query := `
		SELECT id, deal_id, account, amount, currency, at
		FROM ledger_entries
		ORDER BY seq`

	var schemas []ledgerEntrySchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to load ledger entries")
	}

	entries := make([]entity.LedgerEntry, 0, len(schemas))
	for _, s := range schemas {
		entries = append(entries, s.toDomain())
	}

	return entries, nil
}

// upsertDealTx — внутренний метод записи версии сделки в рамках
// транзакции.
func (r *DealRepository) upsertDealTx(ctx context.Context, tx *sqlx.Tx, deal *entity.Deal) error {
	schema, err := fromDeal(deal)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal deal")
	}

	query := `
		INSERT INTO deals (id, seeker_id, cardholder_id, title, description, category,
			status, cart, terms, audit, proof_ref, proof_at, deadline, created_at, updated_at)
		VALUES (:id, :seeker_id, :cardholder_id, :title, :description, :category,
			:status, :cart, :terms, :audit, :proof_ref, :proof_at, :deadline, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			cardholder_id = EXCLUDED.cardholder_id,
			status = EXCLUDED.status,
			audit = EXCLUDED.audit,
			proof_ref = EXCLUDED.proof_ref,
			proof_at = EXCLUDED.proof_at,
			deadline = EXCLUDED.deadline,
			updated_at = EXCLUDED.updated_at`

	if _, err := tx.NamedExecContext(ctx, query, schema); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert deal")
	}

	return nil
}

// insertEntryTx — внутренний метод вставки проводки в рамках
// транзакции. Леджер только дописывается: конфликт по id означает
// повторную доставку, строка не перезаписывается.
func (r *DealRepository) insertEntryTx(ctx context.Context, tx *sqlx.Tx, entry entity.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, deal_id, account, amount, currency, at)
		VALUES (:id, :deal_id, :account, :amount, :currency, :at)
		ON CONFLICT (id) DO NOTHING`

	if _, err := tx.NamedExecContext(ctx, query, fromLedgerEntry(entry)); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to insert ledger entry")
	}

	return nil
}
