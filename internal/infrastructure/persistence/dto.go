package persistence

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
)

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// dealSchema — внутренняя структура для маппинга строки deals.
// Корзина, условия и аудит лежат в JSONB: они неизменны после записи
// и не участвуют в SQL-фильтрах.
type dealSchema struct {
	ID           string     `db:"id"`
	SeekerID     string     `db:"seeker_id"`
	CardholderID *string    `db:"cardholder_id"`
	Title        string     `db:"title"`
	Description  string     `db:"description"`
	Category     string     `db:"category"`
	Status       string     `db:"status"`
	Cart         []byte     `db:"cart"`
	Terms        []byte     `db:"terms"`
	Audit        []byte     `db:"audit"`
	ProofRef     *string    `db:"proof_ref"`
	ProofAt      *time.Time `db:"proof_at"`
	Deadline     *time.Time `db:"deadline"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func fromDeal(d *entity.Deal) (*dealSchema, error) {
	cart, err := json.Marshal(d.Cart)
	if err != nil {
		return nil, err
	}

	terms, err := json.Marshal(d.Terms)
	if err != nil {
		return nil, err
	}

	audit, err := json.Marshal(d.Audit)
	if err != nil {
		return nil, err
	}

	s := &dealSchema{
		ID:          d.ID,
		SeekerID:    d.SeekerID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Status:      d.Status.String(),
		Cart:        cart,
		Terms:       terms,
		Audit:       audit,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}

	if d.CardholderID != "" {
		s.CardholderID = &d.CardholderID
	}

	if d.Proof != nil {
		s.ProofRef = &d.Proof.Ref
		proofAt := d.Proof.SubmittedAt
		s.ProofAt = &proofAt
	}

	if !d.Deadline.IsZero() {
		deadline := d.Deadline
		s.Deadline = &deadline
	}

	return s, nil
}

func (s *dealSchema) toDomain() (*entity.Deal, error) {
	d := &entity.Deal{
		ID:          s.ID,
		SeekerID:    s.SeekerID,
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Status:      entity.DealStatus(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}

	if err := json.Unmarshal(s.Cart, &d.Cart); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(s.Terms, &d.Terms); err != nil {
		return nil, err
	}

	if len(s.Audit) > 0 {
		if err := json.Unmarshal(s.Audit, &d.Audit); err != nil {
			return nil, err
		}
	}

	if s.CardholderID != nil {
		d.CardholderID = *s.CardholderID
	}

	if s.ProofRef != nil {
		d.Proof = &entity.ProofRecord{Ref: *s.ProofRef}
		if s.ProofAt != nil {
			d.Proof.SubmittedAt = *s.ProofAt
		}
	}

	if s.Deadline != nil {
		d.Deadline = *s.Deadline
	}

	return d, nil
}

// ledgerEntrySchema — представление строки ledger_entries.
type ledgerEntrySchema struct {
	ID       string    `db:"id"`
	DealID   string    `db:"deal_id"`
	Account  string    `db:"account"`
	Amount   int64     `db:"amount"`
	Currency string    `db:"currency"`
	At       time.Time `db:"at"`
}

func fromLedgerEntry(e entity.LedgerEntry) ledgerEntrySchema {
	return ledgerEntrySchema{
		ID:       e.ID,
		DealID:   e.DealID,
		Account:  string(e.Account),
		Amount:   e.Amount.Amount,
		Currency: e.Amount.Currency,
		At:       e.At,
	}
}

func (s ledgerEntrySchema) toDomain() entity.LedgerEntry {
	return entity.LedgerEntry{
		ID:      s.ID,
		DealID:  s.DealID,
		Account: entity.LedgerAccount(s.Account),
		Amount:  value.Money{Amount: s.Amount, Currency: s.Currency},
		At:      s.At,
	}
}
