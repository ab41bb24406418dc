package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbridge/internal/domain/entity"
	"cardbridge/internal/domain/service/deal"
	"cardbridge/internal/domain/service/ledger"
	"cardbridge/internal/domain/value"
	"cardbridge/internal/registry"
	"cardbridge/internal/server"
	"cardbridge/pkg/middlewarex"
	"cardbridge/pkg/rest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

type allowAllEligibility struct{}

func (allowAllEligibility) Check(_ context.Context, cardholderID string, _ value.BenefitSet) (*entity.CardholderProfile, error) {
	return &entity.CardholderProfile{ID: cardholderID, Active: true}, nil
}

func newTestRouter(t *testing.T) (chi.Router, *deal.Service) {
	t.Helper()

	led := ledger.New()
	svc := deal.NewService(registry.New(), led, allowAllEligibility{})

	r := chi.NewRouter()
	r.Use(middlewarex.UserID)
	server.NewServer(server.NewDealServer(svc, led)).RegisterRoutes(r)

	return r, svc
}

func doRequest(t *testing.T, router chi.Router, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

const createBody = `{
	"title": "noise cancelling headphones",
	"cart": [{"name": "headphones", "unitPriceMinor": 99999, "currency": "USD", "quantity": 1}],
	"commissionBps": 500,
	"requiredBenefits": ["purchase_protection"],
	"urgency": "normal"
}`

func createDeal(t *testing.T, router chi.Router) rest.Deal {
	t.Helper()

	rec := doRequest(t, router, http.MethodPost, "/v1/deals", "seeker-1", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created rest.Deal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	return created
}

func TestPostV1Deal(t *testing.T) {
	router, _ := newTestRouter(t)

	created := createDeal(t, router)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "seeker-1", created.SeekerID)
	assert.Equal(t, int64(250), created.PlatformFeeBps)
	require.NotNil(t, created.Breakdown)
	assert.Equal(t, int64(107_499), created.Breakdown.TotalMinor)
	assert.Equal(t, "USD", created.Breakdown.Currency)
}

func TestPostV1DealWithoutIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/deals", "", createBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostV1DealValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/deals", "seeker-1",
		`{"title": "x", "cart": [], "commissionBps": 500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/v1/deals", "seeker-1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	created := createDeal(t, router)
	base := "/v1/deals/" + created.ID

	rec := doRequest(t, router, http.MethodPost, base+"/accept", "holder-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, base+"/fund", "seeker-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, base+"/proof", "holder-1", `{"proofRef": "s3://proofs/abc"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, base+"/confirm", "seeker-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var final rest.Deal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, "completed", final.Status)
	require.NotNil(t, final.Proof)
	assert.Equal(t, "s3://proofs/abc", final.Proof.Ref)

	rec = doRequest(t, router, http.MethodGet, base+"/escrow", "seeker-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var escrow rest.EscrowState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &escrow))
	assert.Equal(t, int64(0), escrow.EscrowMinor)
	assert.Equal(t, int64(5_000), escrow.CommissionMinor)
	assert.Equal(t, int64(2_500), escrow.PlatformFeeMinor)
	assert.NotEmpty(t, escrow.Entries)
}

func TestTransitionConflictsMapTo409(t *testing.T) {
	router, _ := newTestRouter(t)

	created := createDeal(t, router)
	base := "/v1/deals/" + created.ID

	rec := doRequest(t, router, http.MethodPost, base+"/accept", "holder-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, base+"/accept", "holder-2", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "second accept loses the race")

	rec = doRequest(t, router, http.MethodPost, base+"/confirm", "seeker-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "confirm before proof is an invalid transition")
}

func TestForbiddenActions(t *testing.T) {
	router, _ := newTestRouter(t)

	created := createDeal(t, router)
	base := "/v1/deals/" + created.ID

	rec := doRequest(t, router, http.MethodPost, base+"/cancel", "someone-else", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetV1DealNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/deals/missing", "seeker-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetV1DealsFilter(t *testing.T) {
	router, _ := newTestRouter(t)

	created := createDeal(t, router)

	rec := doRequest(t, router, http.MethodGet, "/v1/deals?benefit=purchase_protection", "holder-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list rest.DealList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	rec = doRequest(t, router, http.MethodGet, "/v1/deals?benefit=lounge_access", "holder-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items)

	rec = doRequest(t, router, http.MethodGet, "/v1/deals?status=bogus", "holder-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
