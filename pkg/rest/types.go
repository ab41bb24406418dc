// Данный файл должен быть сгенерирован из openapi спецификации и называться types.gen.go
package rest

// CartItem Позиция корзины
type CartItem struct {
	Name string `json:"name" validate:"required"`

	// UnitPriceMinor Цена за единицу в минорных единицах валюты
	UnitPriceMinor int64  `json:"unitPriceMinor" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	URL            string `json:"url" validate:"omitempty,url"`
	Retailer       string `json:"retailer"`
}

// CreateDeal Запрос на создание сделки
type CreateDeal struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category"`

	Cart []CartItem `json:"cart" validate:"required,min=1,dive"`

	// CommissionBps Комиссия исполнителя в базисных пунктах
	CommissionBps int64 `json:"commissionBps" validate:"required,gt=0,lte=2000"`

	// RequiredBenefits Привилегии карты, обязательные для исполнителя
	RequiredBenefits []string `json:"requiredBenefits"`

	// Urgency Срочность: low / normal / high / urgent
	Urgency string `json:"urgency" validate:"omitempty,oneof=low normal high urgent"`
}

// SubmitProof Запрос на приложение подтверждения покупки
type SubmitProof struct {
	// ProofRef Ссылка на файл подтверждения во внешнем хранилище
	ProofRef string `json:"proofRef" validate:"required"`
}

// Breakdown Детализация стоимости сделки
type Breakdown struct {
	SubtotalMinor    int64  `json:"subtotalMinor"`
	CommissionMinor  int64  `json:"commissionMinor"`
	PlatformFeeMinor int64  `json:"platformFeeMinor"`
	TotalMinor       int64  `json:"totalMinor"`
	Currency         string `json:"currency"`
}

// ProofRecord Подтверждение покупки
type ProofRecord struct {
	Ref         string `json:"ref"`
	SubmittedAt string `json:"submittedAt"`
}

// AuditEntry Запись аудита перехода
type AuditEntry struct {
	At         string `json:"at"`
	Actor      string `json:"actor"`
	Transition string `json:"transition"`
}

// Deal Сделка
type Deal struct {
	ID               string       `json:"id"`
	SeekerID         string       `json:"seekerId"`
	CardholderID     string       `json:"cardholderId,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Category         string       `json:"category,omitempty"`
	Status           string       `json:"status"`
	Cart             []CartItem   `json:"cart"`
	CommissionBps    int64        `json:"commissionBps"`
	PlatformFeeBps   int64        `json:"platformFeeBps"`
	RequiredBenefits []string     `json:"requiredBenefits"`
	Urgency          string       `json:"urgency"`
	Breakdown        *Breakdown   `json:"breakdown,omitempty"`
	Proof            *ProofRecord `json:"proof,omitempty"`
	Deadline         string       `json:"deadline,omitempty"`
	Audit            []AuditEntry `json:"audit,omitempty"`
	CreatedAt        string       `json:"createdAt"`
	UpdatedAt        string       `json:"updatedAt"`
}

// DealList Список сделок
type DealList struct {
	Items []Deal `json:"items"`
}

// LedgerEntry Проводка леджера
type LedgerEntry struct {
	ID          string `json:"id"`
	DealID      string `json:"dealId"`
	Account     string `json:"account"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	At          string `json:"at"`
}

// EscrowState Состояние счетов сделки
type EscrowState struct {
	DealID           string        `json:"dealId"`
	EscrowMinor      int64         `json:"escrowMinor"`
	CommissionMinor  int64         `json:"commissionMinor"`
	PlatformFeeMinor int64         `json:"platformFeeMinor"`
	Currency         string        `json:"currency"`
	Entries          []LedgerEntry `json:"entries"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
