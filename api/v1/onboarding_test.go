package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
)

func TestOnboardingRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api, err := SetupOnboardingAPI(nil, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(api.Close)

	tokens := auth.NewTokenManager("secret", "portal", time.Hour)
	router := gin.New()
	RegisterOnboardingRoutes(router.Group("/api/v1"), api, tokens)

	token, err := tokens.Issue("tenant-1", auth.RoleUser)
	require.NoError(t, err)

	call := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/v1/auth/ping", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/api/v1/onboarding/existing", nil).Code)

	w := call(http.MethodPost, "/api/v1/onboarding", map[string]any{
		"assistant_goals":     map[string]any{"goals": []string{"Book appointments"}},
		"complete_onboarding": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(http.MethodGet, "/api/v1/onboarding/existing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status_onboarding":"pending_onboarding"`)

	// Plain requests to the websocket route are refused by the upgrader
	assert.Equal(t, http.StatusBadRequest, call(http.MethodGet, "/api/v1/notifications/ws", nil).Code)
}
