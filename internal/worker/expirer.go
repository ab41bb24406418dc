package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardbridge/internal/domain/entity"
)

// DealService — срез движка сделок, нужный воркеру.
type DealService interface {
	Expire(ctx context.Context, dealID string) (*entity.Deal, error)
	SweepExpired(ctx context.Context) int
}

// Expirer периодически обходит сделки с истёкшим дедлайном и
// применяет принудительные переходы. Точечные asynq-задачи срабатывают
// в момент дедлайна, обход страхует их от потери.
type Expirer struct {
	deals    DealService
	interval time.Duration

	// Control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
}

func NewExpirer(deals DealService) *Expirer {
	return &Expirer{
		deals:    deals,
		interval: time.Minute,
	}
}

func (w *Expirer) WithInterval(interval time.Duration) *Expirer {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

func (w *Expirer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("expirer is already running")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Expirer stopped with error: %v\n", err)
		}
	}()

	return nil
}

func (w *Expirer) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning возвращает текущий статус
func (w *Expirer) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *Expirer) Run(ctx context.Context) error {
	logger(ctx).Info("deal expirer started", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).Info("deal expirer stopped")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Expirer) sweep(ctx context.Context) {
	expired := w.deals.SweepExpired(ctx)
	if expired > 0 {
		logger(ctx).Info("sweep cycle completed", slog.Int("expired", expired))
	}
}
