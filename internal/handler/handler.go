package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
)

// Func is an http.Handler that reports failures by returning them. Classified
// domain errors become 4xx {"detail"} responses; anything else is recorded
// as a request fault and answered with the uniform 500 body.
type Func func(w http.ResponseWriter, r *http.Request) error

func (f Func) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		writeError(w, r, err)
	}
}

var statusByCode = map[domain.ErrorCode]int{
	domain.ErrCodeNotFound:        http.StatusNotFound,
	domain.ErrCodeInvalid:         http.StatusBadRequest,
	domain.ErrCodeConflict:        http.StatusConflict,
	domain.ErrCodeForbidden:       http.StatusForbidden,
	domain.ErrCodeUnauthorized:    http.StatusUnauthorized,
	domain.ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var dErr *domain.Error
	status, classified := 0, false
	if errors.As(err, &dErr) {
		status, classified = statusByCode[dErr.Code]
	}

	if !classified {
		if !middleware.RecordFault(r.Context(), err) {
			middleware.LoggerFromContext(r.Context()).Error("unhandled request error", slog.String("error", err.Error()))
			middleware.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", "60")
	}
	middleware.WriteDetail(w, status, dErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Invalid("request body exceeds %d bytes", maxErr.Limit)
		}
		return domain.Invalid("invalid request body")
	}
	return nil
}

func actorFrom(r *http.Request) (domain.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return domain.Actor{}, domain.ErrNotAuthenticated
	}
	return actor, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}
