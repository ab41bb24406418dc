package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbridge/pkg/rest"
	"cardbridge/pkg/tests"
)

// Прогон жизненного цикла через полноценный HTTP-клиент: роуты,
// заголовок идентичности и формат ответов как их видит потребитель API.
func TestAPIClientLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	ts := httptest.NewServer(router)
	defer ts.Close()

	client := tests.NewAPIClient(ts.URL, nil)
	ctx := context.Background()

	asUser := func(id string) http.Header {
		h := http.Header{}
		h.Set("X-User-Id", id)
		return h
	}

	var created rest.Deal
	var apiErr rest.Error

	resp, err := client.PostJSON(ctx, "/v1/deals", asUser("seeker-1"), createBody, &created, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)

	base := "/v1/deals/" + created.ID

	var updated rest.Deal

	resp, err = client.Post(ctx, base+"/accept", asUser("holder-1"), nil, &updated, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", updated.Status)

	resp, err = client.Post(ctx, base+"/fund", asUser("seeker-1"), nil, &updated, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "funded", updated.Status)
	assert.NotEmpty(t, updated.Deadline)

	resp, err = client.Post(ctx, base+"/proof", asUser("holder-1"),
		rest.SubmitProof{ProofRef: "s3://proofs/abc"}, &updated, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "purchase_proven", updated.Status)

	resp, err = client.Post(ctx, base+"/confirm", asUser("seeker-1"), nil, &updated, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", updated.Status)

	var escrow rest.EscrowState

	resp, err = client.Get(ctx, base+"/escrow", asUser("seeker-1"), &escrow, &apiErr)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(0), escrow.EscrowMinor)
	assert.Len(t, escrow.Entries, 4, "funding credit plus three release entries")

	// Ошибочный переход отдаёт типизированный код.
	resp, err = client.Post(ctx, base+"/confirm", asUser("seeker-1"), nil, &updated, &apiErr)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, rest.ErrorCode("InvalidTransition"), apiErr.Code)
}
