package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Check
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. Every named check must pass
// for the service to report ready.
func NewHealthHandler(checks map[string]Check, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// ReadinessResponse lists each dependency as "ok" or the error it returned.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health answers 200 while the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every check in parallel and answers 503 if any of them fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(h.checks))
		failed  bool
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := "ok"
			if err := check(ctx); err != nil {
				outcome = "error: " + err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = outcome
			failed = failed || outcome != "ok"
		}()
	}
	wg.Wait()

	resp := ReadinessResponse{Status: "ready", Checks: results}
	code := http.StatusOK
	if failed {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", slog.Any("checks", results))
	}
	_ = writeJSON(w, code, resp)
}
