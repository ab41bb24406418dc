package entity

import (
	"time"

	"cardbridge/internal/domain/value"
)

// DealStatus — статус сделки. Закрытое множество: смена статуса
// разрешена только через таблицу переходов в service/deal.
type DealStatus string

const (
	StatusDraft          DealStatus = "draft"
	StatusOpen           DealStatus = "open"
	StatusAccepted       DealStatus = "accepted"
	StatusFunded         DealStatus = "funded"
	StatusPurchaseProven DealStatus = "purchase_proven"
	StatusConfirmed      DealStatus = "confirmed"
	StatusDisputed       DealStatus = "disputed"
	StatusCompleted      DealStatus = "completed"
	StatusCancelled      DealStatus = "cancelled"
	StatusExpired        DealStatus = "expired"
	StatusRefunded       DealStatus = "refunded"
)

func (s DealStatus) String() string {
	return string(s)
}

// Valid сообщает, входит ли значение в поддерживаемое множество.
func (s DealStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusAccepted, StatusFunded,
		StatusPurchaseProven, StatusConfirmed, StatusDisputed,
		StatusCompleted, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным.
func (s DealStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	default:
		return false
	}
}

// Urgency — срочность сделки. Определяет окно на выкуп товара.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	default:
		return false
	}
}

// Window возвращает окно на выкуп для уровня срочности.
// Сроки из продуктовых уровней: неделя / 3 дня / сутки / ASAP.
func (u Urgency) Window() time.Duration {
	switch u {
	case UrgencyLow:
		return 7 * 24 * time.Hour
	case UrgencyNormal:
		return 3 * 24 * time.Hour
	case UrgencyHigh:
		return 24 * time.Hour
	case UrgencyUrgent:
		return 2 * time.Hour
	default:
		return 3 * 24 * time.Hour
	}
}

// CartItem — позиция корзины. После привязки к сделке не меняется.
type CartItem struct {
	Name      string      `json:"name"`
	UnitPrice value.Money `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	URL       string      `json:"url"`
	Retailer  string      `json:"retailer"`
}

// LineTotal — стоимость позиции (цена × количество).
func (i CartItem) LineTotal() value.Money {
	return value.Money{
		Amount:   i.UnitPrice.Amount * int64(i.Quantity),
		Currency: i.UnitPrice.Currency,
	}
}

// DealTerms — условия сделки: ставки в базисных пунктах и требования
// к привилегиям исполнителя.
type DealTerms struct {
	CommissionBps    int64            `json:"commission_bps"`
	PlatformFeeBps   int64            `json:"platform_fee_bps"`
	RequiredBenefits value.BenefitSet `json:"required_benefits"`
	Urgency          Urgency          `json:"urgency"`
}

// ProofRecord — ссылка на подтверждение покупки. Байты файла живут
// во внешнем хранилище, ядро хранит только референс.
type ProofRecord struct {
	Ref         string    `json:"ref"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AuditEntry — запись аудита перехода. Журнал только дописывается.
type AuditEntry struct {
	At         time.Time `json:"at"`
	Actor      string    `json:"actor"`
	Transition string    `json:"transition"`
}

// Deal — сделка между заказчиком и держателем карты. Владелец —
// реестр: любая мутация идёт через переходы state machine, прямые
// записи в поля снаружи запрещены, иначе аудит и инварианты разъедутся.
type Deal struct {
	ID           string       `json:"id"`
	SeekerID     string       `json:"seeker_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Cart         []CartItem   `json:"cart"`
	Terms        DealTerms    `json:"terms"`
	Status       DealStatus   `json:"status"`
	CardholderID string       `json:"cardholder_id,omitempty"`
	Proof        *ProofRecord `json:"proof,omitempty"`
	Deadline     time.Time    `json:"deadline"`
	Audit        []AuditEntry `json:"audit"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Clone возвращает глубокую копию сделки, чтобы снапшоты можно было
// читать без блокировок и без гонок по внутренним слайсам.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}

	clone := *d

	clone.Cart = make([]CartItem, len(d.Cart))
	copy(clone.Cart, d.Cart)

	clone.Audit = make([]AuditEntry, len(d.Audit))
	copy(clone.Audit, d.Audit)

	clone.Terms.RequiredBenefits = d.Terms.RequiredBenefits.Clone()

	if d.Proof != nil {
		proof := *d.Proof
		clone.Proof = &proof
	}

	return &clone
}
