package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
)

func TestLogAction_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(logger.New(&buf, "info", "production"))

	var requestID string
	h := middleware.RequestLifecycle(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = middleware.RequestIDFromContext(r.Context())
		al.LogUserChange(r.Context(), "admin-1", ActionStatusChange, "u-7", "active->suspended")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/v1/users/u-7/status", nil))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "audit", record["msg"])
	assert.Equal(t, "audit", record["log_type"])
	assert.Equal(t, ActionStatusChange, record["action"])
	assert.Equal(t, "admin-1", record["actor_id"])
	assert.Equal(t, "u-7", record["resource_id"])
	assert.Equal(t, requestID, record["request_id"])
	assert.NotEmpty(t, requestID)
}
