package deal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/pkg/errcodes"
)

func TestApplyHappyPath(t *testing.T) {
	d := &entity.Deal{ID: "d1", Status: entity.StatusDraft}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	steps := []struct {
		tr    Transition
		actor string
		want  entity.DealStatus
	}{
		{TransitionPublish, "seeker", entity.StatusOpen},
		{TransitionAccept, "holder", entity.StatusAccepted},
		{TransitionFund, "seeker", entity.StatusFunded},
		{TransitionSubmitProof, "holder", entity.StatusPurchaseProven},
		{TransitionConfirm, "seeker", entity.StatusConfirmed},
		{TransitionComplete, "seeker", entity.StatusCompleted},
	}

	for _, step := range steps {
		require.NoError(t, apply(d, step.tr, step.actor, now))
		assert.Equal(t, step.want, d.Status)
	}

	require.Len(t, d.Audit, len(steps))
	assert.Equal(t, "accept", d.Audit[1].Transition)
	assert.Equal(t, "holder", d.Audit[1].Actor)
	assert.Equal(t, now, d.Audit[1].At)
}

func TestApplyRejectsWrongSourceStatus(t *testing.T) {
	cases := []struct {
		name string
		from entity.DealStatus
		tr   Transition
	}{
		{"fund before accept", entity.StatusOpen, TransitionFund},
		{"accept twice", entity.StatusAccepted, TransitionAccept},
		{"confirm without proof", entity.StatusFunded, TransitionConfirm},
		{"cancel after accept", entity.StatusAccepted, TransitionCancel},
		{"dispute before proof", entity.StatusFunded, TransitionDispute},
		{"refund without dispute", entity.StatusFunded, TransitionRefund},
		{"expire open", entity.StatusOpen, TransitionExpire},
		{"expire completed", entity.StatusCompleted, TransitionExpire},
		{"any from terminal", entity.StatusRefunded, TransitionFund},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &entity.Deal{ID: "d1", Status: tc.from}

			err := apply(d, tc.tr, "actor", time.Now())
			require.Error(t, err)
			assert.True(t, domain.HasCode(err, errcodes.InvalidTransition))
			assert.Equal(t, tc.from, d.Status, "rejected transition must not mutate the deal")
			assert.Empty(t, d.Audit)
		})
	}
}

func TestApplyUnknownTransition(t *testing.T) {
	d := &entity.Deal{ID: "d1", Status: entity.StatusOpen}

	err := apply(d, Transition("teleport"), "actor", time.Now())
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, errcodes.InternalServerError))
}
