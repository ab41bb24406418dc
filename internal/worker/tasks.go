package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"cardbridge/internal/domain"
	"cardbridge/pkg/errcodes"
	"cardbridge/pkg/logx"
)

const (
	// TypeDealExpire — точечная задача на дедлайн конкретной сделки.
	TypeDealExpire = "deal:expire"
	// TypeDealSweep — периодический обход всех просроченных сделок.
	TypeDealSweep = "deal:sweep"
)

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

type expirePayload struct {
	DealID string `json:"deal_id"`
}

// AsynqScheduler ставит отложенные задачи истечения через asynq.
// Очередь переживает рестарт процесса: Redis хранит задачу до
// наступления дедлайна.
type AsynqScheduler struct {
	client *asynq.Client
	queue  string
}

func NewAsynqScheduler(client *asynq.Client) *AsynqScheduler {
	return &AsynqScheduler{client: client, queue: "default"}
}

func (s *AsynqScheduler) WithQueue(queue string) *AsynqScheduler {
	s.queue = queue
	return s
}

// ScheduleExpiry ставит задачу истечения на момент дедлайна. Повторное
// планирование той же сделки безопасно: обработчик идемпотентен.
func (s *AsynqScheduler) ScheduleExpiry(ctx context.Context, dealID string, at time.Time) error {
	payload, err := json.Marshal(expirePayload{DealID: dealID})
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal payload")
	}

	task := asynq.NewTask(TypeDealExpire, payload)

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue(s.queue),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to enqueue expiry task")
	}

	return nil
}

// HandleExpireTask — обработчик точечной задачи истечения.
// Переход идемпотентен, поэтому ретраи asynq безвредны.
func (e *Expirer) HandleExpireTask(ctx context.Context, task *asynq.Task) error {
	var payload expirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Битая задача не станет лучше от ретрая.
		logger(ctx).Error("malformed expire payload", logx.Error(err))
		return nil
	}

	if _, err := e.deals.Expire(ctx, payload.DealID); err != nil {
		if domain.HasCode(err, errcodes.DealNotFound) {
			// Сделка не дожила до реплея, задача устарела.
			return nil
		}

		return err
	}

	logger(ctx).Info("expiry task processed", slog.String("deal_id", payload.DealID))

	return nil
}

// HandleSweepTask — обработчик периодического обхода. Подстраховывает
// точечные задачи: потерянная или не поставленная задача истечения
// будет добрана ближайшим обходом.
func (e *Expirer) HandleSweepTask(ctx context.Context, _ *asynq.Task) error {
	expired := e.deals.SweepExpired(ctx)
	if expired > 0 {
		logger(ctx).Info("sweep task processed", slog.Int("expired", expired))
	}

	return nil
}
