package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStatusAndUpdate(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	ts := newTestServer(t, "", "")

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/keys", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeJSON[map[string]bool](t, rec)
	assert.Equal(t, map[string]bool{"openrouter": false}, status)

	body := strings.NewReader(`{"keys":{"openrouter":"sk-or-123"}}`)
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/keys", body))
	require.Equal(t, http.StatusOK, rec.Code)
	status = decodeJSON[map[string]bool](t, rec)
	assert.True(t, status["openrouter"])

	// The response never carries key material.
	assert.NotContains(t, rec.Body.String(), "sk-or-123")

	// Clearing falls back to the (empty) environment.
	body = strings.NewReader(`{"keys":{"openrouter":""}}`)
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/keys", body))
	require.Equal(t, http.StatusOK, rec.Code)
	status = decodeJSON[map[string]bool](t, rec)
	assert.False(t, status["openrouter"])
}

func TestKeyUpdateInvalidBody(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, "", "")

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/keys", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
