package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/pricing"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

func item(priceMinor int64, qty int) entity.CartItem {
	return entity.CartItem{
		Name:      "item",
		UnitPrice: value.NewMoney(priceMinor, value.DefaultCurrency),
		Quantity:  qty,
		URL:       "https://example.com/item",
		Retailer:  "Amazon",
	}
}

func TestComputeBreakdown(t *testing.T) {
	rq := require.New(t)

	// $999.99, комиссия 5%, сбор 2.5%.
	breakdown, err := pricing.ComputeBreakdown([]entity.CartItem{item(99_999, 1)}, 500, 250)
	rq.NoError(err)

	rq.Equal(int64(99_999), breakdown.Subtotal.Amount)
	rq.Equal(int64(5_000), breakdown.Commission.Amount)
	rq.Equal(int64(2_500), breakdown.PlatformFee.Amount)
	rq.Equal(int64(107_499), breakdown.Total.Amount)
	rq.Equal("1074.99 USD", breakdown.Total.String())
}

func TestComputeBreakdownSumInvariant(t *testing.T) {
	rq := require.New(t)

	carts := [][]entity.CartItem{
		{item(1, 1)},
		{item(99_999, 1)},
		{item(33, 3), item(101, 7)},
		{item(1_234_567, 2), item(99, 1), item(777, 5)},
	}

	rates := []struct{ commission, fee int64 }{
		{0, 0}, {1, 1}, {500, 250}, {2000, 10_000}, {333, 77},
	}

	for _, cart := range carts {
		for _, rate := range rates {
			breakdown, err := pricing.ComputeBreakdown(cart, rate.commission, rate.fee)
			rq.NoError(err)

			sum := breakdown.Subtotal.Amount + breakdown.Commission.Amount + breakdown.PlatformFee.Amount
			rq.Equal(breakdown.Total.Amount, sum)
		}
	}
}

func TestComputeBreakdownDeterministic(t *testing.T) {
	rq := require.New(t)

	cart := []entity.CartItem{item(33, 3), item(101, 7), item(99_999, 2)}

	first, err := pricing.ComputeBreakdown(cart, 777, 250)
	rq.NoError(err)

	for range 100 {
		again, err := pricing.ComputeBreakdown(cart, 777, 250)
		rq.NoError(err)
		rq.Equal(first, again)
	}
}

func TestComputeBreakdownInvalidTerms(t *testing.T) {
	testCases := []struct {
		name          string
		cart          []entity.CartItem
		commissionBps int64
		feeBps        int64
	}{
		{name: "empty cart", cart: nil, commissionBps: 500, feeBps: 250},
		{name: "commission negative", cart: []entity.CartItem{item(100, 1)}, commissionBps: -1, feeBps: 250},
		{name: "commission above cap", cart: []entity.CartItem{item(100, 1)}, commissionBps: 2001, feeBps: 250},
		{name: "fee negative", cart: []entity.CartItem{item(100, 1)}, commissionBps: 500, feeBps: -1},
		{name: "zero price", cart: []entity.CartItem{item(0, 1)}, commissionBps: 500, feeBps: 250},
		{name: "negative price", cart: []entity.CartItem{item(-5, 1)}, commissionBps: 500, feeBps: 250},
		{name: "zero quantity", cart: []entity.CartItem{item(100, 0)}, commissionBps: 500, feeBps: 250},
		{
			name: "mixed currencies",
			cart: []entity.CartItem{
				item(100, 1),
				{Name: "eur", UnitPrice: value.NewMoney(100, "EUR"), Quantity: 1},
			},
			commissionBps: 500,
			feeBps:        250,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			_, err := pricing.ComputeBreakdown(tc.cart, tc.commissionBps, tc.feeBps)
			rq.Error(err)
			rq.True(domain.HasCode(err, errcodes.InvalidTerms))
		})
	}
}

func TestApplyBpsRounding(t *testing.T) {
	rq := require.New(t)

	// 5% от $999.99 = 4999.95 цента — округляется вверх до $50.00.
	breakdown, err := pricing.ComputeBreakdown([]entity.CartItem{item(99_999, 1)}, 500, 0)
	rq.NoError(err)
	rq.Equal(int64(5_000), breakdown.Commission.Amount)

	// 1 bps от 33 центов = 0.0033 цента — округляется вниз до нуля.
	breakdown, err = pricing.ComputeBreakdown([]entity.CartItem{item(33, 1)}, 1, 0)
	rq.NoError(err)
	rq.Equal(int64(0), breakdown.Commission.Amount)
}
