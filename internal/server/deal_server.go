package server

import (
	"context"
	"fmt"
	"net/http"

	"git.appkode.ru/pub/go/failure"
	"github.com/go-chi/chi/v5"

	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/deal"
	"cardbridge/internal/domain/service/pricing"
	"cardbridge/internal/domain/value"
	"cardbridge/internal/registry"
	"cardbridge/pkg/contextx"
	"cardbridge/pkg/errcodes"
	"cardbridge/pkg/httpx/reply"
	"cardbridge/pkg/httpx/req"
	"cardbridge/pkg/rest"
)

type dealService interface {
	Create(ctx context.Context, seekerID string, in deal.CreateInput) (*entity.Deal, error)
	Accept(ctx context.Context, dealID, cardholderID string) (*entity.Deal, error)
	Fund(ctx context.Context, dealID, actor string) (*entity.Deal, error)
	SubmitProof(ctx context.Context, dealID, actor, proofRef string) (*entity.Deal, error)
	Confirm(ctx context.Context, dealID, actor string) (*entity.Deal, error)
	Dispute(ctx context.Context, dealID, actor string) (*entity.Deal, error)
	Cancel(ctx context.Context, dealID, actor string) (*entity.Deal, error)
	Get(ctx context.Context, dealID string) (*entity.Deal, error)
	ListOpen(ctx context.Context, filter registry.Filter) []*entity.Deal
	List(ctx context.Context, filter registry.Filter) []*entity.Deal
	Breakdown(d *entity.Deal) (pricing.Breakdown, error)
}

type escrowLedger interface {
	Balance(dealID string, account entity.LedgerAccount) value.Money
	Entries(dealID string) []entity.LedgerEntry
}

type DealServer struct {
	dealService dealService
	ledger      escrowLedger
}

func NewDealServer(dealService dealService, ledger escrowLedger) DealServer {
	return DealServer{
		dealService: dealService,
		ledger:      ledger,
	}
}

func (s DealServer) postV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	var request rest.CreateDeal

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	created, err := s.dealService.Create(ctx, actor, newDomainCreateInput(request))
	if err != nil {
		return asTransportError(fmt.Errorf("dealService.Create: %w", err))
	}

	reply.JSON(ctx, w, http.StatusCreated, s.newRESTDeal(created))

	return nil
}

func (s DealServer) getV1Deals(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	filter := registry.Filter{
		Seeker:  r.URL.Query().Get("seeker"),
		Benefit: value.BenefitTag(r.URL.Query().Get("benefit")),
	}

	var deals []*entity.Deal

	// Без явного статуса отдаём витрину открытых сделок.
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = entity.DealStatus(status)
		if !filter.Status.Valid() {
			return failure.NewInvalidArgumentError(
				"unknown status "+status,
				failure.WithCode(errcodes.ValidationError),
			)
		}

		deals = s.dealService.List(ctx, filter)
	} else {
		deals = s.dealService.ListOpen(ctx, filter)
	}

	items := make([]rest.Deal, 0, len(deals))
	for _, d := range deals {
		items = append(items, s.newRESTDeal(d))
	}

	reply.JSON(ctx, w, http.StatusOK, rest.DealList{Items: items})

	return nil
}

func (s DealServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	found, err := s.dealService.Get(ctx, dealID(r))
	if err != nil {
		return asTransportError(fmt.Errorf("dealService.Get: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTDeal(found))

	return nil
}

func (s DealServer) getV1DealEscrow(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id := dealID(r)

	// Сделка обязана существовать, пустой леджер без сделки — 404.
	if _, err := s.dealService.Get(ctx, id); err != nil {
		return asTransportError(fmt.Errorf("dealService.Get: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTEscrowState(id))

	return nil
}

func (s DealServer) postV1DealAccept(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.dealService.Accept)
}

func (s DealServer) postV1DealFund(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.dealService.Fund)
}

func (s DealServer) postV1DealProof(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	var request rest.SubmitProof

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	updated, err := s.dealService.SubmitProof(ctx, dealID(r), actor, request.ProofRef)
	if err != nil {
		return asTransportError(fmt.Errorf("dealService.SubmitProof: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTDeal(updated))

	return nil
}

func (s DealServer) postV1DealConfirm(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.dealService.Confirm)
}

func (s DealServer) postV1DealDispute(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.dealService.Dispute)
}

func (s DealServer) postV1DealCancel(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.dealService.Cancel)
}

// transition — общий обработчик переходов без тела запроса.
func (s DealServer) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, dealID, actor string) (*entity.Deal, error),
) error {
	ctx := r.Context()

	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	updated, err := op(ctx, dealID(r), actor)
	if err != nil {
		return asTransportError(err)
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTDeal(updated))

	return nil
}

func dealID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func actorFromContext(ctx context.Context) (string, error) {
	userID, err := contextx.UserIDFromContext(ctx)
	if err != nil {
		return "", failure.NewUnauthorizedErrorFromError(
			fmt.Errorf("contextx.UserIDFromContext: %w", err),
			failure.WithCode(errcodes.MissingActor),
		)
	}

	return userID.String(), nil
}
