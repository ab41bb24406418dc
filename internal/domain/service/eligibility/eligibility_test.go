package eligibility_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/eligibility"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

func TestIsEligible(t *testing.T) {
	rq := require.New(t)

	amex := value.NewBenefitSet("amex-platinum", "lounge-access", "hotel-elite")

	rq.True(eligibility.IsEligible(value.NewBenefitSet(), amex))
	rq.True(eligibility.IsEligible(value.NewBenefitSet(), value.NewBenefitSet()))
	rq.True(eligibility.IsEligible(value.NewBenefitSet("amex-platinum"), amex))
	rq.True(eligibility.IsEligible(value.NewBenefitSet("amex-platinum", "lounge-access"), amex))
	rq.False(eligibility.IsEligible(value.NewBenefitSet("costco-executive"), amex))
	rq.False(eligibility.IsEligible(value.NewBenefitSet("amex-platinum", "costco-executive"), amex))
	rq.False(eligibility.IsEligible(value.NewBenefitSet("amex-platinum"), value.NewBenefitSet()))
}

type stubProfileSource struct {
	profiles map[string]entity.CardholderProfile
	calls    int
}

func (s *stubProfileSource) ProfileByID(_ context.Context, id string) (*entity.CardholderProfile, error) {
	s.calls++

	profile, ok := s.profiles[id]
	if !ok {
		return nil, domain.NewError(errcodes.NotFound, "profile not found")
	}

	return &profile, nil
}

func TestServiceCheck(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	source := &stubProfileSource{profiles: map[string]entity.CardholderProfile{
		"ch-1": {ID: "ch-1", Benefits: value.NewBenefitSet("apple-card", "employee-discount"), Active: true},
		"ch-2": {ID: "ch-2", Benefits: value.NewBenefitSet("best-buy-elite"), Active: false},
		"ch-3": {ID: "ch-3", Benefits: value.NewBenefitSet(), Active: true},
	}}

	svc := eligibility.NewService(source)

	profile, err := svc.Check(ctx, "ch-1", value.NewBenefitSet("apple-card"))
	rq.NoError(err)
	rq.Equal("ch-1", profile.ID)

	// Пустые требования проходят даже для пустого набора привилегий.
	_, err = svc.Check(ctx, "ch-3", value.NewBenefitSet())
	rq.NoError(err)

	_, err = svc.Check(ctx, "ch-1", value.NewBenefitSet("costco-executive"))
	rq.True(domain.HasCode(err, errcodes.CardholderNotEligible))

	_, err = svc.Check(ctx, "ch-2", value.NewBenefitSet())
	rq.True(domain.HasCode(err, errcodes.CardholderInactive))

	_, err = svc.Check(ctx, "missing", value.NewBenefitSet())
	rq.True(domain.HasCode(err, errcodes.CardholderNotFound))

	_, err = svc.Check(ctx, "", value.NewBenefitSet())
	rq.True(domain.HasCode(err, errcodes.MissingActor))
}

func TestServiceCachesProfiles(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	source := &stubProfileSource{profiles: map[string]entity.CardholderProfile{
		"ch-1": {ID: "ch-1", Benefits: value.NewBenefitSet("apple-card"), Active: true},
	}}

	svc := eligibility.NewService(source)

	for range 5 {
		_, err := svc.Resolve(ctx, "ch-1")
		rq.NoError(err)
	}

	rq.Equal(1, source.calls)
}
