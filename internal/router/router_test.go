package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/handler"
	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
	"github.com/aryan0dhankhar/propertyhub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
	"github.com/aryan0dhankhar/propertyhub/internal/testsupport"
)

type harness struct {
	t       *testing.T
	handler http.Handler
	store   *testsupport.MemoryStore
	runner  *testsupport.Runner
	tokens  *auth.TokenManager
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	log := logger.Discard()
	store := testsupport.NewMemoryStore()
	runner := testsupport.NewRunner(store)
	tokens, err := auth.NewTokenManager("router-test-secret", "propertyhub")
	require.NoError(t, err)

	principals := service.NewPrincipalCache(runner, store, time.Minute)
	authService := service.NewAuthService(service.AuthDeps{
		DB:       runner,
		Repos:    store,
		Hasher:   testsupport.FastHasher,
		Tokens:   tokens,
		TokenTTL: 30 * time.Minute,
		Logger:   log,
	})
	users := service.NewUserService(runner, store, testsupport.FastHasher, nil, nil, principals, log)
	properties := service.NewPropertyService(runner, store, nil, nil, log)

	deps := Deps{
		Logger:     log,
		Tokens:     tokens,
		Principals: principals,
		Auth:       handler.NewAuthHandler(authService, log),
		Users:      handler.NewUserHandler(users, log),
		Properties: handler.NewPropertyHandler(properties, log),
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"database": func(context.Context) error { return store.Err },
		}, log),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{t: t, handler: New(deps), store: store, runner: runner, tokens: tokens}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	var res service.LoginResult
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.AccessToken
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	d, _ := body["detail"].(string)
	return d
}

func assertLifecycleHeaders(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	id := rec.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err, "X-Request-ID must be a UUID")

	elapsed, err := strconv.ParseFloat(rec.Header().Get("X-Process-Time"), 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 0.0)
	return id
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	u := testsupport.SeedUser(t, h.store, "user@example.com", "correct123", domain.RoleTenant, domain.StatusActive)
	testsupport.SeedUser(t, h.store, "suspended@example.com", "correct123", domain.RoleTenant, domain.StatusSuspended)

	t.Run("success", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "correct123"})
		require.Equal(t, http.StatusOK, rec.Code)
		assertLifecycleHeaders(t, rec)

		var res struct {
			AccessToken string         `json:"access_token"`
			TokenType   string         `json:"token_type"`
			ExpiresIn   int            `json:"expires_in"`
			User        map[string]any `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "bearer", res.TokenType)
		assert.Equal(t, 1800, res.ExpiresIn)
		assert.Equal(t, u.ID, res.User["id"])
		assert.NotContains(t, res.User, "hashed_password")

		claims, err := h.tokens.ValidateToken(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect email or password", detail(t, rec))
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assertLifecycleHeaders(t, rec)
	})

	t.Run("suspended", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "suspended@example.com", "password": "correct123"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Account is not active", detail(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("email=x"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assertLifecycleHeaders(t, rec)
	})
}

func TestPersistenceFailureAnswersUniform500(t *testing.T) {
	h := newHarness(t)
	h.store.Err = errors.New("pq: connection reset by peer")

	rec := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "correct123"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	id := assertLifecycleHeaders(t, rec)
	assert.Equal(t, `{"detail":"Internal server error","request_id":"`+id+`"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestRequestIDsAreServerGenerated(t *testing.T) {
	h := newHarness(t)

	seen := map[string]bool{}
	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "client-supplied")
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)

		id := assertLifecycleHeaders(t, rec)
		assert.NotEqual(t, "client-supplied", id)
		seen[id] = true
	}
	assert.Len(t, seen, 5)
}

func TestAuthenticatedRoutes(t *testing.T) {
	h := newHarness(t)
	tenant := testsupport.SeedUser(t, h.store, "tenant@example.com", "TenantPass1", domain.RoleTenant, domain.StatusActive)
	testsupport.SeedUser(t, h.store, "admin@example.com", "AdminPass1", domain.RoleAdmin, domain.StatusActive)

	rec := h.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", detail(t, rec))

	rec = h.do(http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tenantToken := h.login("tenant@example.com", "TenantPass1")
	rec = h.do(http.MethodGet, "/api/v1/users/me", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, tenant.ID, me.ID)

	rec = h.do(http.MethodGet, "/api/v1/users", tenantToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions", detail(t, rec))

	adminToken := h.login("admin@example.com", "AdminPass1")
	rec = h.do(http.MethodGet, "/api/v1/users?status=active", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)

	rec = h.do(http.MethodGet, "/api/v1/users?limit=abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuspensionRevokesOutstandingTokens(t *testing.T) {
	h := newHarness(t)
	tenant := testsupport.SeedUser(t, h.store, "tenant@example.com", "TenantPass1", domain.RoleTenant, domain.StatusActive)
	testsupport.SeedUser(t, h.store, "admin@example.com", "AdminPass1", domain.RoleAdmin, domain.StatusActive)

	tenantToken := h.login("tenant@example.com", "TenantPass1")
	adminToken := h.login("admin@example.com", "AdminPass1")
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/users/me", tenantToken, nil).Code)

	rec := h.do(http.MethodPatch, "/api/v1/users/"+tenant.ID+"/status", adminToken, map[string]string{"status": "suspended"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/v1/users/me", tenantToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "tenant@example.com", "password": "TenantPass1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account is not active", detail(t, rec))
}

func TestChangePasswordRoute(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedUser(t, h.store, "tenant@example.com", "TenantPass1", domain.RoleTenant, domain.StatusActive)
	token := h.login("tenant@example.com", "TenantPass1")

	rec := h.do(http.MethodPost, "/api/v1/auth/change-password", token,
		map[string]string{"current_password": "TenantPass1", "new_password": "Rotated123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	h.login("tenant@example.com", "Rotated123")
}

func TestPropertyRoutes(t *testing.T) {
	h := newHarness(t)
	landlord := testsupport.SeedUser(t, h.store, "landlord@example.com", "Landlord123", domain.RoleLandlord, domain.StatusActive)
	testsupport.SeedUser(t, h.store, "tenant@example.com", "TenantPass1", domain.RoleTenant, domain.StatusActive)

	landlordToken := h.login("landlord@example.com", "Landlord123")
	tenantToken := h.login("tenant@example.com", "TenantPass1")

	listing := map[string]any{
		"name":               "Maple Court 4B",
		"property_type":      "apartment",
		"address_line":       "12 Maple Court",
		"city":               "Springfield",
		"bedrooms":           2,
		"bathrooms":          1.5,
		"monthly_rent_cents": 145000,
	}

	rec := h.do(http.MethodPost, "/api/v1/properties", landlordToken, listing)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Property
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, landlord.ID, created.OwnerID)

	rec = h.do(http.MethodPost, "/api/v1/properties", tenantToken, listing)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/properties?available=true", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.Property
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = h.do(http.MethodGet, "/api/v1/properties/"+created.ID, tenantToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/properties/"+uuid.NewString(), tenantToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Property not found", detail(t, rec))
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	h := newHarness(t, func(d *Deps) { d.Limiter = limiter })

	body := map[string]string{"email": "nobody@example.com", "password": "whatever1"}
	for range 2 {
		rec := h.do(http.MethodPost, "/api/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := h.do(http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code, "only auth routes are limited")
}

func TestOperationalEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.store.Err = errors.New("database is down")
	rec = h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")

	rec = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "propertyhub_http_requests_total")

	rec = h.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertLifecycleHeaders(t, rec)
}
