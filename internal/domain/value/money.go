package value

import "fmt"

// DefaultCurrency — валюта платформы по умолчанию.
const DefaultCurrency = "USD"

// Money — денежная сумма в минорных единицах (центах).
// Вся арифметика целочисленная, float запрещён из-за дрейфа округления.
type Money struct {
	Amount   int64  `json:"amount" db:"amount"`
	Currency string `json:"currency" db:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}

	return Money{Amount: amount, Currency: currency}
}

// Add складывает суммы. Совпадение валют проверяется валидацией выше
// по стеку (pricing), здесь только арифметика.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Neg возвращает сумму с противоположным знаком (для сторнирующих записей).
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

func (m Money) SameCurrencyAs(other Money) bool {
	return m.Currency == other.Currency
}

// String форматирует сумму вида "-10.74 USD".
func (m Money) String() string {
	amount := m.Amount

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}
