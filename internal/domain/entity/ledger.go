package entity

import (
	"time"

	"cardbridge/internal/domain/value"
)

// LedgerAccount — концептуальный счёт сделки в леджере.
type LedgerAccount string

const (
	AccountSeekerEscrow         LedgerAccount = "seeker_escrow"
	AccountCardholderCommission LedgerAccount = "cardholder_commission"
	AccountPlatformFee          LedgerAccount = "platform_fee"
)

func (a LedgerAccount) Valid() bool {
	switch a {
	case AccountSeekerEscrow, AccountCardholderCommission, AccountPlatformFee:
		return true
	default:
		return false
	}
}

// LedgerEntry — проводка леджера. Записи неизменяемы и только
// дописываются: возврат — это новая сторнирующая запись, не удаление.
type LedgerEntry struct {
	ID      string        `json:"id"`
	DealID  string        `json:"deal_id"`
	Account LedgerAccount `json:"account"`
	Amount  value.Money   `json:"amount"`
	At      time.Time     `json:"at"`
}
