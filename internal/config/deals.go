package config

import "time"

type Deals struct {
	// PlatformFeeBps — ставка сбора платформы в базисных пунктах.
	PlatformFeeBps int64 `env:"DEALS_PLATFORM_FEE_BPS" envDefault:"250"`

	// FundingWindow — окно на финансирование после акцепта.
	FundingWindow time.Duration `env:"DEALS_FUNDING_WINDOW" envDefault:"12h"`

	// ConfirmWindow — окно на подтверждение после пруфа.
	ConfirmWindow time.Duration `env:"DEALS_CONFIRM_WINDOW" envDefault:"72h"`

	// SweepInterval — период страховочного обхода просроченных сделок.
	SweepInterval time.Duration `env:"DEALS_SWEEP_INTERVAL" envDefault:"1m"`
}
