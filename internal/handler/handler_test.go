package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
)

func TestFunc_ClassifiedErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{domain.Invalid("name is required"), http.StatusBadRequest, "name is required"},
		{domain.ErrEmailTaken, http.StatusConflict, "Email already registered"},
		{domain.ErrForbidden, http.StatusForbidden, "Not enough permissions"},
		{domain.ErrAuthenticationFailed, http.StatusUnauthorized, "Incorrect email or password"},
		{domain.ErrTooManyAttempts, http.StatusTooManyRequests, domain.ErrTooManyAttempts.Message},
	}

	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			h := Func(func(http.ResponseWriter, *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, `{"detail":"`+tt.detail+`"}`, rec.Body.String())
		})
	}
}

func TestFunc_UnauthorizedSetsChallenge(t *testing.T) {
	h := Func(func(http.ResponseWriter, *http.Request) error { return domain.ErrNotAuthenticated })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestFunc_UnclassifiedErrorsBecomeFaults(t *testing.T) {
	leak := errors.New("pq: password authentication failed for user \"app\"")
	persistence := domain.WrapError(domain.ErrCodePersistence, "get user", leak)

	for _, err := range []error{leak, persistence} {
		h := middleware.RequestLifecycle(logger.Discard())(
			Func(func(http.ResponseWriter, *http.Request) error { return err }),
		)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		id := rec.Header().Get(middleware.HeaderRequestID)
		assert.Equal(t, `{"detail":"Internal server error","request_id":"`+id+`"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "pq:")
	}
}

func TestFunc_UnclassifiedWithoutLifecycle(t *testing.T) {
	h := Func(func(http.ResponseWriter, *http.Request) error { return errors.New("boom") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"x"}`))
	require.NoError(t, decodeJSON(r, &v))
	assert.Equal(t, "x", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.True(t, domain.IsDomainError(decodeJSON(r, &v), domain.ErrCodeInvalid))

	rec := httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"`+strings.Repeat("a", 64)+`"}`))
	r.Body = http.MaxBytesReader(rec, r.Body, 16)
	err := decodeJSON(r, &v)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Contains(t, err.Error(), "16 bytes")
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&offset=-1&page=x", nil)

	n, err := queryInt(r, "limit")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = queryInt(r, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = queryInt(r, "offset")
	assert.Error(t, err)
	_, err = queryInt(r, "page")
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	var dbErr error
	h := NewHealthHandler(map[string]Check{
		"database": func(context.Context) error { return dbErr },
		"redis":    func(context.Context) error { return nil },
	}, logger.Discard())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok","redis":"ok"}}`, rec.Body.String())

	dbErr = errors.New("dial tcp: connection refused")
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"database":"error: dial tcp: connection refused","redis":"ok"}}`, rec.Body.String())
}
