package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"
	InvalidPaging       failure.ErrorCode = "InvalidPaging"
	InvalidURL          failure.ErrorCode = "InvalidURL"

	// Коды жизненного цикла сделки
	InvalidTerms          failure.ErrorCode = "InvalidTerms"          // Некорректные корзина или ставки
	InvalidTransition     failure.ErrorCode = "InvalidTransition"     // Переход не разрешён из текущего статуса
	DealNoLongerAvailable failure.ErrorCode = "DealNoLongerAvailable" // Сделку уже забрал другой исполнитель
	InsufficientFunds     failure.ErrorCode = "InsufficientFunds"     // Проводка нарушила бы баланс эскроу
	NotAuthorized         failure.ErrorCode = "NotAuthorized"         // Вызывающий не в той роли для перехода
	DealNotFound          failure.ErrorCode = "DealNotFound"
	InvalidDealID         failure.ErrorCode = "InvalidDealID"
	MissingActor          failure.ErrorCode = "MissingActor" // Не передан идентификатор вызывающего

	// Коды профилей держателей карт
	CardholderNotFound    failure.ErrorCode = "CardholderNotFound"
	CardholderInactive    failure.ErrorCode = "CardholderInactive"
	CardholderNotEligible failure.ErrorCode = "CardholderNotEligible" // Привилегии не покрывают требования сделки
)
