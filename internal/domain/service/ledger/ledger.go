package ledger

import (
	"fmt"
	"sync"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

// Ledger — журнал проводок по счетам сделок. Записи неизменяемы и
// только дописываются; баланс счёта — сумма его проводок. Дописывание
// сериализовано мьютексом, чтения идут по снапшотам-копиям.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string][]entity.LedgerEntry
}

func New() *Ledger {
	return &Ledger{
		entries: make(map[string][]entity.LedgerEntry),
	}
}

// Post проводит записи одной логической операции атомарно: либо все,
// либо ни одной. Проводка, уводящая эскроу сделки в минус, отклоняется
// с InsufficientFunds, журнал при этом не меняется.
func (l *Ledger) Post(entries ...entity.LedgerEntry) error {
	if len(entries) == 0 {
		return domain.NewError(errcodes.InternalServerError, "empty posting")
	}

	for i, entry := range entries {
		if entry.DealID == "" {
			return domain.NewError(errcodes.InternalServerError,
				fmt.Sprintf("entry %d: missing deal id", i))
		}

		if !entry.Account.Valid() {
			return domain.NewError(errcodes.InternalServerError,
				fmt.Sprintf("entry %d: unknown account %q", i, entry.Account))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Все проверки до первого изменения журнала.
	escrowDelta := make(map[string]int64)

	for _, entry := range entries {
		if entry.Account == entity.AccountSeekerEscrow {
			escrowDelta[entry.DealID] += entry.Amount.Amount
		}
	}

	for dealID, delta := range escrowDelta {
		if l.balanceLocked(dealID, entity.AccountSeekerEscrow)+delta < 0 {
			return domain.NewError(errcodes.InsufficientFunds,
				fmt.Sprintf("deal %s: escrow balance would go negative", dealID))
		}
	}

	for _, entry := range entries {
		l.entries[entry.DealID] = append(l.entries[entry.DealID], entry)
	}

	return nil
}

// Balance — баланс счёта сделки на момент вызова.
func (l *Ledger) Balance(dealID string, account entity.LedgerAccount) value.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()

	currency := value.DefaultCurrency

	for _, entry := range l.entries[dealID] {
		if entry.Amount.Currency != "" {
			currency = entry.Amount.Currency
			break
		}
	}

	return value.NewMoney(l.balanceLocked(dealID, account), currency)
}

// Entries возвращает копию проводок сделки в порядке дописывания.
func (l *Ledger) Entries(dealID string) []entity.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := make([]entity.LedgerEntry, len(l.entries[dealID]))
	copy(snapshot, l.entries[dealID])

	return snapshot
}

// Restore загружает проводки при старте (реплей из хранилища).
// Валидации нет: журнал уже был проверен при исходном Post.
func (l *Ledger) Restore(entries []entity.LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range entries {
		l.entries[entry.DealID] = append(l.entries[entry.DealID], entry)
	}
}

func (l *Ledger) balanceLocked(dealID string, account entity.LedgerAccount) int64 {
	var sum int64

	for _, entry := range l.entries[dealID] {
		if entry.Account == account {
			sum += entry.Amount.Amount
		}
	}

	return sum
}
