package entity

import "cardbridge/internal/domain/value"

// CardholderProfile — профиль держателя карты. Владелец данных —
// внешний сервис аккаунтов, ядро профиль только читает.
type CardholderProfile struct {
	ID       string           `json:"id"`
	Benefits value.BenefitSet `json:"benefits"`
	Active   bool             `json:"active"`
}
