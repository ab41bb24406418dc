package server

import (
	"time"

	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/deal"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/lox"
	"cardbridge/pkg/rest"
)

func newDomainCreateInput(request rest.CreateDeal) deal.CreateInput {
	cart := lox.Map(request.Cart, func(item rest.CartItem) entity.CartItem {
		return entity.CartItem{
			Name:      item.Name,
			UnitPrice: value.NewMoney(item.UnitPriceMinor, item.Currency),
			Quantity:  item.Quantity,
			URL:       item.URL,
			Retailer:  item.Retailer,
		}
	})

	benefits := lox.Map(request.RequiredBenefits, func(tag string) value.BenefitTag {
		return value.BenefitTag(tag)
	})

	return deal.CreateInput{
		Title:            request.Title,
		Description:      request.Description,
		Category:         request.Category,
		Cart:             cart,
		CommissionBps:    request.CommissionBps,
		RequiredBenefits: value.NewBenefitSet(benefits...),
		Urgency:          entity.Urgency(request.Urgency),
	}
}

func (s DealServer) newRESTDeal(d *entity.Deal) rest.Deal {
	cart := lox.Map(d.Cart, func(item entity.CartItem) rest.CartItem {
		return rest.CartItem{
			Name:           item.Name,
			UnitPriceMinor: item.UnitPrice.Amount,
			Currency:       item.UnitPrice.Currency,
			Quantity:       item.Quantity,
			URL:            item.URL,
			Retailer:       item.Retailer,
		}
	})

	benefits := lox.Map(d.Terms.RequiredBenefits.Tags(), func(tag value.BenefitTag) string {
		return string(tag)
	})

	audit := lox.Map(d.Audit, func(a entity.AuditEntry) rest.AuditEntry {
		return rest.AuditEntry{
			At:         a.At.Format(time.RFC3339),
			Actor:      a.Actor,
			Transition: a.Transition,
		}
	})

	out := rest.Deal{
		ID:               d.ID,
		SeekerID:         d.SeekerID,
		CardholderID:     d.CardholderID,
		Title:            d.Title,
		Description:      d.Description,
		Category:         d.Category,
		Status:           d.Status.String(),
		Cart:             cart,
		CommissionBps:    d.Terms.CommissionBps,
		PlatformFeeBps:   d.Terms.PlatformFeeBps,
		RequiredBenefits: benefits,
		Urgency:          string(d.Terms.Urgency),
		Audit:            audit,
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        d.UpdatedAt.Format(time.RFC3339),
	}

	if breakdown, err := s.dealService.Breakdown(d); err == nil {
		out.Breakdown = &rest.Breakdown{
			SubtotalMinor:    breakdown.Subtotal.Amount,
			CommissionMinor:  breakdown.Commission.Amount,
			PlatformFeeMinor: breakdown.PlatformFee.Amount,
			TotalMinor:       breakdown.Total.Amount,
			Currency:         breakdown.Total.Currency,
		}
	}

	if d.Proof != nil {
		out.Proof = &rest.ProofRecord{
			Ref:         d.Proof.Ref,
			SubmittedAt: d.Proof.SubmittedAt.Format(time.RFC3339),
		}
	}

	if !d.Deadline.IsZero() {
		out.Deadline = d.Deadline.Format(time.RFC3339)
	}

	return out
}

func (s DealServer) newRESTEscrowState(dealID string) rest.EscrowState {
	escrow := s.ledger.Balance(dealID, entity.AccountSeekerEscrow)
	commission := s.ledger.Balance(dealID, entity.AccountCardholderCommission)
	fee := s.ledger.Balance(dealID, entity.AccountPlatformFee)

	entries := lox.Map(s.ledger.Entries(dealID), func(e entity.LedgerEntry) rest.LedgerEntry {
		return rest.LedgerEntry{
			ID:          e.ID,
			DealID:      e.DealID,
			Account:     string(e.Account),
			AmountMinor: e.Amount.Amount,
			Currency:    e.Amount.Currency,
			At:          e.At.Format(time.RFC3339),
		}
	})

	return rest.EscrowState{
		DealID:           dealID,
		EscrowMinor:      escrow.Amount,
		CommissionMinor:  commission.Amount,
		PlatformFeeMinor: fee.Amount,
		Currency:         escrow.Currency,
		Entries:          entries,
	}
}
