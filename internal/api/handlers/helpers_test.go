package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/services/mocks"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/stretchr/testify/require"
)

func setupSessions(t *testing.T) (*service.SessionRegistry, *mocks.GuestBackend, *mocks.AuthBackend) {
	t.Helper()

	guest := mocks.NewGuestBackend(t)
	auth := mocks.NewAuthBackend(t)

	return service.NewSessionRegistry(guest, auth, service.NewLineNormalizer()), guest, auth
}

// decodeData unmarshals the envelope's data field into dest.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success, rr.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dest))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) *response.ErrorResponse {
	t.Helper()

	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, rr.Body.String())

	return resp.Error
}
