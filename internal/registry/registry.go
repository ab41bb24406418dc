package registry

import (
	"sync"
	"time"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

// Filter — параметры поиска сделок для дискавери.
type Filter struct {
	Status  entity.DealStatus
	Seeker  string
	Benefit value.BenefitTag
}

// slot — ячейка сделки. Мьютекс ячейки — единица взаимного
// исключения: все переходы одной сделки строго упорядочены, сделки
// с разными id обрабатываются полностью параллельно.
type slot struct {
	mu   sync.Mutex
	deal *entity.Deal
}

// Registry — потокобезопасное хранилище сделок с вторичными индексами
// по статусу, заказчику, исполнителю и требуемым привилегиям.
// Индексы закрыты RWMutex: чтения дискавери не блокируют переходы
// других сделок.
type Registry struct {
	mu           sync.RWMutex
	slots        map[string]*slot
	byStatus     map[entity.DealStatus]map[string]struct{}
	bySeeker     map[string]map[string]struct{}
	byCardholder map[string]map[string]struct{}
	byBenefit    map[value.BenefitTag]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		slots:        make(map[string]*slot),
		byStatus:     make(map[entity.DealStatus]map[string]struct{}),
		bySeeker:     make(map[string]map[string]struct{}),
		byCardholder: make(map[string]map[string]struct{}),
		byBenefit:    make(map[value.BenefitTag]map[string]struct{}),
	}
}

// Put регистрирует новую сделку. Повторная регистрация того же id —
// ошибка: сделка существует в реестре ровно один раз.
func (r *Registry) Put(deal *entity.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[deal.ID]; exists {
		return domain.NewError(errcodes.InternalServerError, "deal already registered: "+deal.ID)
	}

	clone := deal.Clone()
	r.slots[deal.ID] = &slot{deal: clone}
	r.indexLocked(clone)

	return nil
}

// Get возвращает снапшот сделки.
func (r *Registry) Get(id string) (*entity.Deal, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deal.Clone(), nil
}

// Update выполняет fn под эксклюзивной секцией сделки. fn получает
// глубокую копию: при ошибке копия выбрасывается и сделка остаётся
// нетронутой, при успехе копия становится текущей версией и индексы
// перестраиваются. Возвращается снапшот новой версии.
func (r *Registry) Update(id string, fn func(deal *entity.Deal) error) (*entity.Deal, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.deal.Clone()
	if err := fn(clone); err != nil {
		return nil, err
	}

	old := s.deal
	clone.UpdatedAt = latest(clone.UpdatedAt, old.UpdatedAt)
	s.deal = clone

	r.mu.Lock()
	r.unindexLocked(old)
	r.indexLocked(clone)
	r.mu.Unlock()

	if old.Status != clone.Status {
		dealTransitions.WithLabelValues(old.Status.String(), clone.Status.String()).Inc()
	}

	return clone.Clone(), nil
}

// List возвращает снапшоты сделок по фильтру, без гарантий порядка.
func (r *Registry) List(filter Filter) []*entity.Deal {
	ids := r.matchIDs(filter)

	deals := make([]*entity.Deal, 0, len(ids))

	for _, id := range ids {
		deal, err := r.Get(id)
		if err != nil {
			continue // гонка с удалением не ошибка для листинга
		}

		deals = append(deals, deal)
	}

	return deals
}

// ListOpen — открытые сделки, опционально сужение по привилегии
// и заказчику.
func (r *Registry) ListOpen(filter Filter) []*entity.Deal {
	filter.Status = entity.StatusOpen
	return r.List(filter)
}

// Expirable возвращает id нетерминальных сделок с истёкшим дедлайном.
// Open не возвращается никогда: неакцептованная сделка не истекает.
func (r *Registry) Expirable(now time.Time) []string {
	r.mu.RLock()

	candidates := make([]*slot, 0, len(r.slots))
	for _, s := range r.slots {
		candidates = append(candidates, s)
	}

	r.mu.RUnlock()

	var ids []string

	for _, s := range candidates {
		s.mu.Lock()
		deal := s.deal

		if !deal.Status.Terminal() &&
			deal.Status != entity.StatusOpen &&
			deal.Status != entity.StatusDraft &&
			!deal.Deadline.IsZero() &&
			deal.Deadline.Before(now) {
			ids = append(ids, deal.ID)
		}

		s.mu.Unlock()
	}

	return ids
}

// Snapshot возвращает все сделки (для реплик и отладочных выгрузок).
func (r *Registry) Snapshot() []*entity.Deal {
	return r.List(Filter{})
}

func (r *Registry) slot(id string) (*slot, error) {
	r.mu.RLock()
	s, ok := r.slots[id]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.NewError(errcodes.DealNotFound, "deal not found: "+id)
	}

	return s, nil
}

func (r *Registry) matchIDs(filter Filter) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Сужаем по самому селективному из заданных индексов, остальные
	// условия проверяются по снапшоту при чтении ячейки.
	var candidate map[string]struct{}

	switch {
	case filter.Benefit != "":
		candidate = r.byBenefit[filter.Benefit]
	case filter.Seeker != "":
		candidate = r.bySeeker[filter.Seeker]
	case filter.Status != "":
		candidate = r.byStatus[filter.Status]
	default:
		ids := make([]string, 0, len(r.slots))
		for id := range r.slots {
			ids = append(ids, id)
		}

		return ids
	}

	ids := make([]string, 0, len(candidate))

	for id := range candidate {
		if filter.Status != "" && !r.inIndexLocked(r.byStatus[filter.Status], id) {
			continue
		}

		if filter.Seeker != "" && !r.inIndexLocked(r.bySeeker[filter.Seeker], id) {
			continue
		}

		if filter.Benefit != "" && !r.inIndexLocked(r.byBenefit[filter.Benefit], id) {
			continue
		}

		ids = append(ids, id)
	}

	return ids
}

func (r *Registry) inIndexLocked(index map[string]struct{}, id string) bool {
	_, ok := index[id]
	return ok
}

func (r *Registry) indexLocked(deal *entity.Deal) {
	addIndex(r.byStatus, deal.Status, deal.ID)
	addIndex(r.bySeeker, deal.SeekerID, deal.ID)

	if deal.CardholderID != "" {
		addIndex(r.byCardholder, deal.CardholderID, deal.ID)
	}

	for tag := range deal.Terms.RequiredBenefits {
		addIndex(r.byBenefit, tag, deal.ID)
	}

	if deal.Status == entity.StatusOpen {
		dealsOpen.Inc()
	}
}

func (r *Registry) unindexLocked(deal *entity.Deal) {
	removeIndex(r.byStatus, deal.Status, deal.ID)
	removeIndex(r.bySeeker, deal.SeekerID, deal.ID)

	if deal.CardholderID != "" {
		removeIndex(r.byCardholder, deal.CardholderID, deal.ID)
	}

	for tag := range deal.Terms.RequiredBenefits {
		removeIndex(r.byBenefit, tag, deal.ID)
	}

	if deal.Status == entity.StatusOpen {
		dealsOpen.Dec()
	}
}

func addIndex[K comparable](index map[K]map[string]struct{}, key K, id string) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(map[string]struct{})
		index[key] = bucket
	}

	bucket[id] = struct{}{}
}

func removeIndex[K comparable](index map[K]map[string]struct{}, key K, id string) {
	if bucket, ok := index[key]; ok {
		delete(bucket, id)

		if len(bucket) == 0 {
			delete(index, key)
		}
	}
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}
