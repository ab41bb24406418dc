package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/pkg/errcodes"
)

type stubDealService struct {
	sweeps    int32
	expired   int32
	expireErr error
}

func (s *stubDealService) Expire(context.Context, string) (*entity.Deal, error) {
	if s.expireErr != nil {
		return nil, s.expireErr
	}

	atomic.AddInt32(&s.expired, 1)

	return &entity.Deal{Status: entity.StatusExpired}, nil
}

func (s *stubDealService) SweepExpired(context.Context) int {
	atomic.AddInt32(&s.sweeps, 1)
	return 1
}

func TestExpirerStartStop(t *testing.T) {
	svc := &stubDealService{}
	w := NewExpirer(svc).WithInterval(5 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	require.Error(t, w.Start(context.Background()), "double start is rejected")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&svc.sweeps) >= 2
	}, time.Second, time.Millisecond)

	w.Stop()
	assert.False(t, w.IsRunning())

	// Повторный Stop безвреден.
	w.Stop()
}

func TestHandleExpireTask(t *testing.T) {
	svc := &stubDealService{}
	w := NewExpirer(svc)

	task := asynq.NewTask(TypeDealExpire, []byte(`{"deal_id":"d1"}`))

	require.NoError(t, w.HandleExpireTask(context.Background(), task))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.expired))
}

func TestHandleExpireTaskMalformedPayload(t *testing.T) {
	svc := &stubDealService{}
	w := NewExpirer(svc)

	task := asynq.NewTask(TypeDealExpire, []byte(`not json`))

	require.NoError(t, w.HandleExpireTask(context.Background(), task),
		"malformed payload must not be retried")
	assert.Zero(t, atomic.LoadInt32(&svc.expired))
}

func TestHandleExpireTaskUnknownDeal(t *testing.T) {
	svc := &stubDealService{expireErr: domain.NewError(errcodes.DealNotFound, "gone")}
	w := NewExpirer(svc)

	task := asynq.NewTask(TypeDealExpire, []byte(`{"deal_id":"gone"}`))

	require.NoError(t, w.HandleExpireTask(context.Background(), task),
		"stale task for a missing deal is dropped")
}

func TestHandleSweepTask(t *testing.T) {
	svc := &stubDealService{}
	w := NewExpirer(svc)

	require.NoError(t, w.HandleSweepTask(context.Background(), asynq.NewTask(TypeDealSweep, nil)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.sweeps))
}
