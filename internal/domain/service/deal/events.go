package deal

import (
	"time"

	"cardbridge/internal/domain/entity"
)

// EventType — тип события жизненного цикла для нотификаций.
type EventType string

const (
	EventDealOpened     EventType = "deal_opened"
	EventDealAccepted   EventType = "deal_accepted"
	EventEscrowFunded   EventType = "escrow_funded"
	EventProofSubmitted EventType = "proof_submitted"
	EventFundsReleased  EventType = "funds_released"
	EventDisputeRaised  EventType = "dispute_raised"
	EventEscrowRefunded EventType = "escrow_refunded"
	EventDealExpired    EventType = "deal_expired"
	EventDealCancelled  EventType = "deal_cancelled"
)

// Event — событие по сделке. Снапшот сделки прикладывается целиком,
// чтобы подписчик не ходил обратно в реестр.
type Event struct {
	Type EventType
	Deal entity.Deal
	At   time.Time
}
