package deal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/pricing"
	"cardbridge/internal/domain/value"
	"cardbridge/internal/registry"
	"cardbridge/pkg/errcodes"
	"cardbridge/pkg/logx"
)

// ActorScheduler — идентичность планировщика в аудите принудительных
// переходов. Пользователи аутентифицируются снаружи, планировщик — нет.
const ActorScheduler = "scheduler"

// Registry — хранилище сделок с посделочной эксклюзивной секцией.
type Registry interface {
	Put(deal *entity.Deal) error
	Get(id string) (*entity.Deal, error)
	Update(id string, fn func(deal *entity.Deal) error) (*entity.Deal, error)
	ListOpen(filter registry.Filter) []*entity.Deal
	List(filter registry.Filter) []*entity.Deal
	Expirable(now time.Time) []string
}

// Ledger — журнал проводок по счетам сделок.
type Ledger interface {
	Post(entries ...entity.LedgerEntry) error
	Balance(dealID string, account entity.LedgerAccount) value.Money
}

// Eligibility решает, может ли держатель карты взять сделку.
type Eligibility interface {
	Check(ctx context.Context, cardholderID string, required value.BenefitSet) (*entity.CardholderProfile, error)
}

// Journal — упреждающая запись: сделка и проводки фиксируются в
// хранилище до подтверждения операции вызывающему, чтобы рестарт
// восстановил реестр и леджер реплеем.
type Journal interface {
	Record(ctx context.Context, deal *entity.Deal, entries []entity.LedgerEntry) error
}

// NopJournal — журнал-заглушка для тестов и запуска без БД.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *entity.Deal, []entity.LedgerEntry) error { return nil }

// ExpiryScheduler ставит отложенную задачу на дедлайн сделки.
// Ошибки планирования не фатальны: страховкой служит периодический
// обход Expirable.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, dealID string, at time.Time) error
}

// Policy — платформенные параметры жизненного цикла.
type Policy struct {
	PlatformFeeBps int64
	FundingWindow  time.Duration
	ConfirmWindow  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PlatformFeeBps: 250,
		FundingWindow:  12 * time.Hour,
		ConfirmWindow:  72 * time.Hour,
	}
}

// Service — движок жизненного цикла сделки. Все мутации идут через
// эксклюзивную секцию реестра: проводка леджера, смена статуса и
// упреждающая запись коммитятся вместе либо не коммитятся вовсе.
// Походы во внешние сервисы выполняются вне секции.
type Service struct {
	registry    Registry
	ledger      Ledger
	eligibility Eligibility
	journal     Journal
	scheduler   ExpiryScheduler
	events      chan<- Event
	policy      Policy
	now         func() time.Time
}

func NewService(reg Registry, led Ledger, elig Eligibility) *Service {
	return &Service{
		registry:    reg,
		ledger:      led,
		eligibility: elig,
		journal:     NopJournal{},
		policy:      DefaultPolicy(),
		now:         time.Now,
	}
}

func (s *Service) WithJournal(journal Journal) *Service {
	s.journal = journal
	return s
}

func (s *Service) WithScheduler(scheduler ExpiryScheduler) *Service {
	s.scheduler = scheduler
	return s
}

func (s *Service) WithEvents(events chan<- Event) *Service {
	s.events = events
	return s
}

func (s *Service) WithPolicy(policy Policy) *Service {
	s.policy = policy
	return s
}

// WithClock подменяет источник времени (для детерминированных тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput — заявка на сделку от заказчика.
type CreateInput struct {
	Title            string
	Description      string
	Category         string
	Cart             []entity.CartItem
	CommissionBps    int64
	RequiredBenefits value.BenefitSet
	Urgency          entity.Urgency
}

// Create создаёт и публикует сделку. Условия валидируются расчётом
// детализации: некорректные корзина или ставки — InvalidTerms, сделка
// не создаётся. Ставка сбора платформы фиксирована политикой, клиент
// её не выбирает.
func (s *Service) Create(ctx context.Context, seekerID string, in CreateInput) (*entity.Deal, error) {
	if seekerID == "" {
		return nil, domain.NewError(errcodes.MissingActor, "seeker id is empty")
	}

	urgency := in.Urgency
	if urgency == "" {
		urgency = entity.UrgencyNormal
	}

	if !urgency.Valid() {
		return nil, domain.NewError(errcodes.InvalidTerms,
			fmt.Sprintf("unknown urgency %q", in.Urgency))
	}

	terms := entity.DealTerms{
		CommissionBps:    in.CommissionBps,
		PlatformFeeBps:   s.policy.PlatformFeeBps,
		RequiredBenefits: in.RequiredBenefits.Clone(),
		Urgency:          urgency,
	}

	if _, err := pricing.ComputeBreakdown(in.Cart, terms.CommissionBps, terms.PlatformFeeBps); err != nil {
		return nil, err
	}

	now := s.now()

	deal := &entity.Deal{
		ID:          xid.New().String(),
		SeekerID:    seekerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Cart:        append([]entity.CartItem(nil), in.Cart...),
		Terms:       terms,
		Status:      entity.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := apply(deal, TransitionPublish, seekerID, now); err != nil {
		return nil, err
	}

	if err := s.journal.Record(ctx, deal, nil); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "journal record")
	}

	if err := s.registry.Put(deal); err != nil {
		return nil, err
	}

	s.emit(EventDealOpened, deal)

	return deal, nil
}

// Accept — единственный конкурентный переход: несколько держателей
// могут взять одну сделку одновременно, победитель ровно один.
// Проигравшие получают DealNoLongerAvailable. Профиль резолвится до
// входа в секцию сделки: внешний вызов не держит чужие сделки.
func (s *Service) Accept(ctx context.Context, dealID, cardholderID string) (*entity.Deal, error) {
	snapshot, err := s.registry.Get(dealID)
	if err != nil {
		return nil, err
	}

	if snapshot.Status != entity.StatusOpen {
		return nil, s.noLongerAvailable(dealID)
	}

	// Требуемые привилегии неизменны после публикации, поэтому
	// проверка по снапшоту корректна.
	if _, err := s.eligibility.Check(ctx, cardholderID, snapshot.Terms.RequiredBenefits); err != nil {
		return nil, err
	}

	now := s.now()
	deadline := now.Add(s.policy.FundingWindow)

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.Status != entity.StatusOpen {
			return s.noLongerAvailable(dealID)
		}

		if err := apply(deal, TransitionAccept, cardholderID, now); err != nil {
			return err
		}

		deal.CardholderID = cardholderID
		deal.Deadline = deadline

		return s.commit(ctx, deal, nil)
	})
	if err != nil {
		return nil, err
	}

	s.scheduleExpiry(ctx, dealID, deadline)
	s.emit(EventDealAccepted, updated)

	return updated, nil
}

// Fund — заказчик вносит полную стоимость в эскроу. Кредит эскроу,
// смена статуса и упреждающая запись коммитятся вместе.
func (s *Service) Fund(ctx context.Context, dealID, actor string) (*entity.Deal, error) {
	now := s.now()

	var deadline time.Time

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.SeekerID != actor {
			return domain.NewError(errcodes.NotAuthorized, "only the seeker funds the deal")
		}

		if err := apply(deal, TransitionFund, actor, now); err != nil {
			return err
		}

		breakdown, err := s.breakdown(deal)
		if err != nil {
			return err
		}

		deadline = now.Add(deal.Terms.Urgency.Window())
		deal.Deadline = deadline

		entries := []entity.LedgerEntry{
			s.entry(deal.ID, entity.AccountSeekerEscrow, breakdown.Total, now),
		}

		return s.commit(ctx, deal, entries)
	})
	if err != nil {
		return nil, err
	}

	s.scheduleExpiry(ctx, dealID, deadline)
	s.emit(EventEscrowFunded, updated)

	return updated, nil
}

// SubmitProof — исполнитель прикладывает референс подтверждения
// покупки. Сами байты живут во внешнем хранилище.
func (s *Service) SubmitProof(ctx context.Context, dealID, actor, proofRef string) (*entity.Deal, error) {
	if proofRef == "" {
		return nil, domain.NewError(errcodes.ValidationError, "proof reference is empty")
	}

	now := s.now()
	deadline := now.Add(s.policy.ConfirmWindow)

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.CardholderID != actor {
			return domain.NewError(errcodes.NotAuthorized, "only the accepted cardholder submits proof")
		}

		if err := apply(deal, TransitionSubmitProof, actor, now); err != nil {
			return err
		}

		deal.Proof = &entity.ProofRecord{Ref: proofRef, SubmittedAt: now}
		deal.Deadline = deadline

		return s.commit(ctx, deal, nil)
	})
	if err != nil {
		return nil, err
	}

	s.scheduleExpiry(ctx, dealID, deadline)
	s.emit(EventProofSubmitted, updated)

	return updated, nil
}

// Confirm — заказчик подтверждает получение. Релиз средств и выход в
// Completed происходят в той же секции: сделка никогда не наблюдается
// застрявшей в Confirmed, единственный путь выплаты — этот.
func (s *Service) Confirm(ctx context.Context, dealID, actor string) (*entity.Deal, error) {
	now := s.now()

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.SeekerID != actor {
			return domain.NewError(errcodes.NotAuthorized, "only the seeker confirms receipt")
		}

		if err := apply(deal, TransitionConfirm, actor, now); err != nil {
			return err
		}

		breakdown, err := s.breakdown(deal)
		if err != nil {
			return err
		}

		entries := []entity.LedgerEntry{
			s.entry(deal.ID, entity.AccountSeekerEscrow, breakdown.Total.Neg(), now),
			s.entry(deal.ID, entity.AccountCardholderCommission, breakdown.Commission, now),
			s.entry(deal.ID, entity.AccountPlatformFee, breakdown.PlatformFee, now),
		}

		if err := apply(deal, TransitionComplete, actor, now); err != nil {
			return err
		}

		deal.Deadline = time.Time{}

		return s.commit(ctx, deal, entries)
	})
	if err != nil {
		return nil, err
	}

	s.emit(EventFundsReleased, updated)

	return updated, nil
}

// Dispute — заказчик оспаривает покупку (или дедлайн подтверждения
// истёк и спор поднимает планировщик). Дедлайн обнуляется в "сейчас":
// возврат проведёт ближайший проход планировщика.
func (s *Service) Dispute(ctx context.Context, dealID, actor string) (*entity.Deal, error) {
	now := s.now()

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.SeekerID != actor && actor != ActorScheduler {
			return domain.NewError(errcodes.NotAuthorized, "only the seeker raises a dispute")
		}

		if err := apply(deal, TransitionDispute, actor, now); err != nil {
			return err
		}

		deal.Deadline = now

		return s.commit(ctx, deal, nil)
	})
	if err != nil {
		return nil, err
	}

	s.emit(EventDisputeRaised, updated)

	return updated, nil
}

// Refund — возврат эскроу заказчику по спору: единственный путь
// возврата, взаимоисключающий с релизом по построению графа.
// Фактический перевод на внешний счёт делает платёжный провайдер,
// леджер фиксирует сторнирующий дебет.
func (s *Service) Refund(ctx context.Context, dealID, actor string) (*entity.Deal, error) {
	now := s.now()

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.SeekerID != actor && actor != ActorScheduler {
			return domain.NewError(errcodes.NotAuthorized, "refund is driven by the scheduler or the seeker")
		}

		if err := apply(deal, TransitionRefund, actor, now); err != nil {
			return err
		}

		breakdown, err := s.breakdown(deal)
		if err != nil {
			return err
		}

		deal.Deadline = time.Time{}

		entries := []entity.LedgerEntry{
			s.entry(deal.ID, entity.AccountSeekerEscrow, breakdown.Total.Neg(), now),
		}

		return s.commit(ctx, deal, entries)
	})
	if err != nil {
		return nil, err
	}

	s.emit(EventEscrowRefunded, updated)

	return updated, nil
}

// Cancel — заказчик снимает неакцептованную сделку. Средств ещё нет,
// поэтому переход всегда разрешён из Open.
func (s *Service) Cancel(ctx context.Context, dealID, actor string) (*entity.Deal, error) {
	now := s.now()

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.SeekerID != actor {
			return domain.NewError(errcodes.NotAuthorized, "only the seeker cancels the deal")
		}

		if err := apply(deal, TransitionCancel, actor, now); err != nil {
			return err
		}

		return s.commit(ctx, deal, nil)
	})
	if err != nil {
		return nil, err
	}

	s.emit(EventDealCancelled, updated)

	return updated, nil
}

// errSkipExpiry — внутренний маркер "истечение не требуется".
var errSkipExpiry = errors.New("expiry not due")

// Expire — принудительный переход по истёкшему дедлайну. Идемпотентен:
// терминальная сделка или ещё не истёкший дедлайн — тихий no-op, так
// что повторная доставка задачи планировщика безвредна. Эскроу никогда
// не бросается: выход из Funded и позже обязательно проходит через
// релиз или возврат.
func (s *Service) Expire(ctx context.Context, dealID string) (*entity.Deal, error) {
	now := s.now()

	var event EventType

	updated, err := s.registry.Update(dealID, func(deal *entity.Deal) error {
		if deal.Status.Terminal() {
			return errSkipExpiry
		}

		if deal.Deadline.IsZero() || now.Before(deal.Deadline) {
			return errSkipExpiry
		}

		switch deal.Status {
		case entity.StatusAccepted:
			// Эскроу ещё не профинансирован, движения средств нет.
			if err := apply(deal, TransitionExpire, ActorScheduler, now); err != nil {
				return err
			}

			event = EventDealExpired

			return s.commit(ctx, deal, nil)

		case entity.StatusFunded:
			if err := apply(deal, TransitionExpire, ActorScheduler, now); err != nil {
				return err
			}

			breakdown, err := s.breakdown(deal)
			if err != nil {
				return err
			}

			entries := []entity.LedgerEntry{
				s.entry(deal.ID, entity.AccountSeekerEscrow, breakdown.Total.Neg(), now),
			}

			event = EventDealExpired

			return s.commit(ctx, deal, entries)

		case entity.StatusPurchaseProven:
			// Окно подтверждения истекло: дефолтный исход — спор.
			if err := apply(deal, TransitionDispute, ActorScheduler, now); err != nil {
				return err
			}

			deal.Deadline = now
			event = EventDisputeRaised

			return s.commit(ctx, deal, nil)

		case entity.StatusDisputed:
			if err := apply(deal, TransitionRefund, ActorScheduler, now); err != nil {
				return err
			}

			breakdown, err := s.breakdown(deal)
			if err != nil {
				return err
			}

			deal.Deadline = time.Time{}

			entries := []entity.LedgerEntry{
				s.entry(deal.ID, entity.AccountSeekerEscrow, breakdown.Total.Neg(), now),
			}

			event = EventEscrowRefunded

			return s.commit(ctx, deal, entries)

		default:
			return errSkipExpiry
		}
	})
	if err != nil {
		if errors.Is(err, errSkipExpiry) {
			return s.registry.Get(dealID)
		}

		return nil, err
	}

	s.emit(event, updated)

	return updated, nil
}

// SweepExpired обходит сделки с истёкшим дедлайном и применяет
// принудительные переходы. Ошибка по одной сделке не прерывает обход:
// переходы идемпотентны и будут повторены следующим проходом.
func (s *Service) SweepExpired(ctx context.Context) int {
	ids := s.registry.Expirable(s.now())

	expired := 0

	for _, id := range ids {
		if _, err := s.Expire(ctx, id); err != nil {
			logger(ctx).Error("forced transition failed",
				logx.Error(err), slog.String("deal_id", id))
			continue
		}

		expired++
	}

	return expired
}

// Get возвращает снапшот сделки.
func (s *Service) Get(_ context.Context, dealID string) (*entity.Deal, error) {
	return s.registry.Get(dealID)
}

// ListOpen — открытые сделки для дискавери держателей.
func (s *Service) ListOpen(_ context.Context, filter registry.Filter) []*entity.Deal {
	return s.registry.ListOpen(filter)
}

// List — сделки по произвольному фильтру (статус, заказчик,
// привилегия).
func (s *Service) List(_ context.Context, filter registry.Filter) []*entity.Deal {
	return s.registry.List(filter)
}

// Breakdown пересчитывает детализацию стоимости сделки. Детализация
// не хранится: условия неизменны, расчёт детерминирован.
func (s *Service) Breakdown(deal *entity.Deal) (pricing.Breakdown, error) {
	return s.breakdown(deal)
}

// commit фиксирует операцию: проводка в леджер, затем упреждающая
// запись. Если запись в журнал не удалась, проводка сторнируется
// (журнал леджера только дописывается) и операция отменяется целиком.
func (s *Service) commit(ctx context.Context, deal *entity.Deal, entries []entity.LedgerEntry) error {
	if len(entries) > 0 {
		if err := s.ledger.Post(entries...); err != nil {
			return err
		}
	}

	if err := s.journal.Record(ctx, deal, entries); err != nil {
		if len(entries) > 0 {
			s.reverse(deal.ID, entries)
		}

		return domain.WrapError(err, errcodes.InternalServerError, "journal record")
	}

	return nil
}

func (s *Service) reverse(dealID string, entries []entity.LedgerEntry) {
	reversals := make([]entity.LedgerEntry, 0, len(entries))

	now := s.now()
	for _, e := range entries {
		reversals = append(reversals, s.entry(dealID, e.Account, e.Amount.Neg(), now))
	}

	// Сторно не может нарушить баланс: оно в точности гасит только
	// что проведённую операцию.
	_ = s.ledger.Post(reversals...)
}

func (s *Service) breakdown(deal *entity.Deal) (pricing.Breakdown, error) {
	breakdown, err := pricing.ComputeBreakdown(deal.Cart, deal.Terms.CommissionBps, deal.Terms.PlatformFeeBps)
	if err != nil {
		// Условия валидировались при создании, сюда попадать не должно.
		return pricing.Breakdown{}, domain.WrapError(err, errcodes.InternalServerError, "recompute breakdown")
	}

	return breakdown, nil
}

func (s *Service) entry(dealID string, account entity.LedgerAccount, amount value.Money, at time.Time) entity.LedgerEntry {
	return entity.LedgerEntry{
		ID:      xid.New().String(),
		DealID:  dealID,
		Account: account,
		Amount:  amount,
		At:      at,
	}
}

func (s *Service) noLongerAvailable(dealID string) error {
	registry.AcceptConflict()

	return domain.NewError(errcodes.DealNoLongerAvailable,
		fmt.Sprintf("deal %s is no longer available", dealID))
}

func (s *Service) scheduleExpiry(ctx context.Context, dealID string, at time.Time) {
	if s.scheduler == nil || at.IsZero() {
		return
	}

	if err := s.scheduler.ScheduleExpiry(ctx, dealID, at); err != nil {
		// Не фатально: страхует периодический SweepExpired.
		logger(ctx).Error("schedule expiry failed", logx.Error(err), slog.String("deal_id", dealID))
	}
}

func (s *Service) emit(event EventType, deal *entity.Deal) {
	if s.events == nil || event == "" {
		return
	}

	select {
	case s.events <- Event{Type: event, Deal: *deal.Clone(), At: s.now()}:
	default:
		// Нотификации не должны блокировать переходы.
	}
}
