package server

import (
	"git.appkode.ru/pub/go/failure"

	"cardbridge/internal/domain"
	"cardbridge/pkg/errcodes"
)

// asTransportError переводит доменную ошибку в транспортный класс,
// по которому reply.Error выбирает HTTP-статус. Неизвестные ошибки
// проходят как есть и отдаются как 500.
func asTransportError(err error) error {
	if err == nil {
		return nil
	}

	code, ok := domain.GetCode(err)
	if !ok {
		return err
	}

	switch code {
	case errcodes.InvalidTerms,
		errcodes.ValidationError,
		errcodes.InvalidDealID,
		errcodes.MissingActor:
		return failure.NewInvalidArgumentErrorFromError(err, failure.WithCode(code))
	case errcodes.DealNotFound,
		errcodes.CardholderNotFound,
		errcodes.NotFound:
		return failure.NewNotFoundErrorFromError(err, failure.WithCode(code))
	case errcodes.NotAuthorized,
		errcodes.Forbidden,
		errcodes.CardholderNotEligible,
		errcodes.CardholderInactive:
		return failure.NewForbiddenErrorFromError(err, failure.WithCode(code))
	case errcodes.DealNoLongerAvailable,
		errcodes.InvalidTransition:
		return failure.NewConflictErrorFromError(err, failure.WithCode(code))
	case errcodes.InsufficientFunds:
		return failure.NewUnprocessableEntityErrorFromError(err, failure.WithCode(code))
	default:
		return err
	}
}
