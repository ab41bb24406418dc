package pricing

import (
	"fmt"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

const (
	// MaxCommissionBps — потолок комиссии исполнителя (20%).
	MaxCommissionBps = 2000
	// MaxPlatformFeeBps — потолок сбора платформы.
	MaxPlatformFeeBps = 10_000

	bpsDenominator = 10_000
)

// Breakdown — детализация стоимости сделки. Производное значение:
// всегда пересчитывается из корзины и ставок, никогда не хранится
// отдельно от породивших его условий.
type Breakdown struct {
	Subtotal    value.Money `json:"subtotal"`
	Commission  value.Money `json:"commission"`
	PlatformFee value.Money `json:"platform_fee"`
	Total       value.Money `json:"total"`
}

// ComputeBreakdown считает детализацию: чистая детерминированная
// функция корзины и ставок. Комиссия и сбор считаются в минорных
// единицах по каждой позиции с округлением до ближайшей минорной
// единицы (половина — от нуля), затем суммируются: результат
// воспроизводим бит-в-бит при одинаковых входах.
// Инвариант: Subtotal + Commission + PlatformFee == Total.
func ComputeBreakdown(cart []entity.CartItem, commissionBps, platformFeeBps int64) (Breakdown, error) {
	if len(cart) == 0 {
		return Breakdown{}, domain.NewError(errcodes.InvalidTerms, "cart is empty")
	}

	if commissionBps < 0 || commissionBps > MaxCommissionBps {
		return Breakdown{}, domain.NewError(errcodes.InvalidTerms,
			fmt.Sprintf("commission rate out of range: %d bps", commissionBps))
	}

	if platformFeeBps < 0 || platformFeeBps > MaxPlatformFeeBps {
		return Breakdown{}, domain.NewError(errcodes.InvalidTerms,
			fmt.Sprintf("platform fee rate out of range: %d bps", platformFeeBps))
	}

	currency := cart[0].UnitPrice.Currency
	if currency == "" {
		currency = value.DefaultCurrency
	}

	var subtotal, commission, fee int64

	for i, item := range cart {
		if item.UnitPrice.Amount <= 0 {
			return Breakdown{}, domain.NewError(errcodes.InvalidTerms,
				fmt.Sprintf("item %d: non-positive price", i))
		}

		if item.Quantity <= 0 {
			return Breakdown{}, domain.NewError(errcodes.InvalidTerms,
				fmt.Sprintf("item %d: non-positive quantity", i))
		}

		if item.UnitPrice.Currency != "" && item.UnitPrice.Currency != currency {
			return Breakdown{}, domain.NewError(errcodes.InvalidTerms,
				fmt.Sprintf("item %d: currency %s differs from %s", i, item.UnitPrice.Currency, currency))
		}

		line := item.UnitPrice.Amount * int64(item.Quantity)

		subtotal += line
		commission += applyBps(line, commissionBps)
		fee += applyBps(line, platformFeeBps)
	}

	return Breakdown{
		Subtotal:    value.NewMoney(subtotal, currency),
		Commission:  value.NewMoney(commission, currency),
		PlatformFee: value.NewMoney(fee, currency),
		Total:       value.NewMoney(subtotal+commission+fee, currency),
	}, nil
}

// applyBps применяет ставку в базисных пунктах к сумме в минорных
// единицах, округляя до ближайшей (0.5 — от нуля). Только целые числа.
func applyBps(amount, bps int64) int64 {
	return (amount*bps + bpsDenominator/2) / bpsDenominator
}
