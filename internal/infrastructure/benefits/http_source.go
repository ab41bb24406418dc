// Package benefits — клиент сервиса профилей держателей карт.
// Привилегии карты живут во внешней системе эмитента, ядро тянет их
// по HTTP и кэширует на стороне eligibility.
package benefits

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cardbridge/internal/domain"
	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/value"
	"cardbridge/pkg/errcodes"
	"cardbridge/pkg/httpx"
)

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPSource резолвит профиль держателя через HTTP API сервиса
// профилей. Реализует eligibility.ProfileSource.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: httpx.NewLoggingRoundTripper(http.DefaultTransport),
		},
	}
}

func (s *HTTPSource) WithClient(client *http.Client) *HTTPSource {
	s.client = client
	return s
}

type profileResponse struct {
	ID       string   `json:"id"`
	Benefits []string `json:"benefits"`
	Active   bool     `json:"active"`
}

// ProfileByID возвращает профиль держателя по идентификатору.
func (s *HTTPSource) ProfileByID(ctx context.Context, cardholderID string) (*entity.CardholderProfile, error) {
	endpoint := fmt.Sprintf("%s/v1/cardholders/%s", s.baseURL, url.PathEscape(cardholderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to build request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "profile service request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.NewError(errcodes.CardholderNotFound, "cardholder not found: "+cardholderID)
	default:
		return nil, domain.NewError(errcodes.InternalServerError,
			fmt.Sprintf("profile service returned %d", resp.StatusCode))
	}

	var payload profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to decode profile")
	}

	tags := make([]value.BenefitTag, 0, len(payload.Benefits))
	for _, b := range payload.Benefits {
		tags = append(tags, value.BenefitTag(b))
	}

	return &entity.CardholderProfile{
		ID:       payload.ID,
		Benefits: value.NewBenefitSet(tags...),
		Active:   payload.Active,
	}, nil
}
