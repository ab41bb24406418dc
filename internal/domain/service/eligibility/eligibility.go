package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
)

const (
	profileCacheTTL     = 5 * time.Minute
	profileCacheCleanup = 10 * time.Minute
)

// IsEligible — чистый предикат соответствия: покрывают ли привилегии
// держателя требования сделки. Пустые требования проходят всегда.
func IsEligible(required, held value.BenefitSet) bool {
	return held.Covers(required)
}

// ProfileSource — внешний сервис аккаунтов, владеющий профилями
// держателей карт.
type ProfileSource interface {
	ProfileByID(ctx context.Context, cardholderID string) (*entity.CardholderProfile, error)
}

// Service резолвит профиль держателя и проверяет его против требований
// сделки. Профили кэшируются с TTL, чтобы поход во внешний сервис не
// попадал в критическую секцию сделки.
type Service struct {
	source   ProfileSource
	profiles *cache.Cache
}

func NewService(source ProfileSource) *Service {
	return &Service{
		source:   source,
		profiles: cache.New(profileCacheTTL, profileCacheCleanup),
	}
}

func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	s.profiles = cache.New(ttl, profileCacheCleanup)
	return s
}

// Resolve возвращает профиль держателя: из кэша либо от внешнего
// сервиса. Неактивный профиль — это ошибка, такие держатели не
// участвуют в сделках.
func (s *Service) Resolve(ctx context.Context, cardholderID string) (*entity.CardholderProfile, error) {
	if cardholderID == "" {
		return nil, domain.NewError(errcodes.MissingActor, "cardholder id is empty")
	}

	if cached, found := s.profiles.Get(cardholderID); found {
		profile := cached.(entity.CardholderProfile)
		return s.checkActive(&profile)
	}

	profile, err := s.source.ProfileByID(ctx, cardholderID)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.CardholderNotFound,
			fmt.Sprintf("resolve cardholder %s", cardholderID))
	}

	s.profiles.Set(cardholderID, *profile, cache.DefaultExpiration)

	return s.checkActive(profile)
}

// Check резолвит профиль и сверяет его привилегии с требованиями.
func (s *Service) Check(ctx context.Context, cardholderID string, required value.BenefitSet) (*entity.CardholderProfile, error) {
	profile, err := s.Resolve(ctx, cardholderID)
	if err != nil {
		return nil, err
	}

	if !IsEligible(required, profile.Benefits) {
		return nil, domain.NewError(errcodes.CardholderNotEligible,
			fmt.Sprintf("cardholder %s does not hold required benefits", cardholderID))
	}

	return profile, nil
}

func (s *Service) checkActive(profile *entity.CardholderProfile) (*entity.CardholderProfile, error) {
	if !profile.Active {
		return nil, domain.NewError(errcodes.CardholderInactive,
			fmt.Sprintf("cardholder %s is inactive", profile.ID))
	}

	return profile, nil
}
