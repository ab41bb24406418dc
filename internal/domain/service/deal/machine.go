package deal

import (
	"fmt"
	"time"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/pkg/errcodes"
)

// Transition — имя перехода жизненного цикла сделки.
type Transition string

const (
	TransitionPublish     Transition = "publish"
	TransitionAccept      Transition = "accept"
	TransitionFund        Transition = "fund"
	TransitionSubmitProof Transition = "submit_proof"
	TransitionConfirm     Transition = "confirm"
	TransitionComplete    Transition = "complete"
	TransitionDispute     Transition = "dispute"
	TransitionRefund      Transition = "refund"
	TransitionCancel      Transition = "cancel"
	TransitionExpire      Transition = "expire"
)

type edge struct {
	from []entity.DealStatus
	to   entity.DealStatus
}

// edges — таблица разрешённых переходов. Всё, чего здесь нет,
// запрещено: статус продвигается только по рёбрам графа.
//
//nolint:gochecknoglobals
var edges = map[Transition]edge{
	TransitionPublish:     {from: []entity.DealStatus{entity.StatusDraft}, to: entity.StatusOpen},
	TransitionAccept:      {from: []entity.DealStatus{entity.StatusOpen}, to: entity.StatusAccepted},
	TransitionFund:        {from: []entity.DealStatus{entity.StatusAccepted}, to: entity.StatusFunded},
	TransitionSubmitProof: {from: []entity.DealStatus{entity.StatusFunded}, to: entity.StatusPurchaseProven},
	TransitionConfirm:     {from: []entity.DealStatus{entity.StatusPurchaseProven}, to: entity.StatusConfirmed},
	TransitionComplete:    {from: []entity.DealStatus{entity.StatusConfirmed}, to: entity.StatusCompleted},
	TransitionDispute:     {from: []entity.DealStatus{entity.StatusPurchaseProven}, to: entity.StatusDisputed},
	TransitionRefund:      {from: []entity.DealStatus{entity.StatusDisputed}, to: entity.StatusRefunded},
	TransitionCancel:      {from: []entity.DealStatus{entity.StatusOpen}, to: entity.StatusCancelled},
	TransitionExpire:      {from: []entity.DealStatus{entity.StatusAccepted, entity.StatusFunded}, to: entity.StatusExpired},
}

// apply продвигает сделку по ребру перехода и дописывает аудит.
// Переход не из разрешённого статуса — InvalidTransition, сделка
// не меняется.
func apply(d *entity.Deal, tr Transition, actor string, now time.Time) error {
	e, ok := edges[tr]
	if !ok {
		return domain.NewError(errcodes.InternalServerError,
			fmt.Sprintf("unknown transition %q", tr))
	}

	allowed := false

	for _, from := range e.from {
		if d.Status == from {
			allowed = true
			break
		}
	}

	if !allowed {
		return domain.NewError(errcodes.InvalidTransition,
			fmt.Sprintf("deal %s: transition %q not allowed from %q", d.ID, tr, d.Status))
	}

	d.Status = e.to
	d.UpdatedAt = now
	d.Audit = append(d.Audit, entity.AuditEntry{
		At:         now,
		Actor:      actor,
		Transition: string(tr),
	})

	return nil
}
