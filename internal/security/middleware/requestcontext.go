package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderProcessTime = "X-Process-Time"
)

type contextKey int

const (
	requestInfoKey contextKey = iota
	loggerKey
	claimsKey
)

// RequestInfo describes one in-flight request. It lives only in the request
// context.
type RequestInfo struct {
	ID         string
	Start      time.Time
	Method     string
	Path       string
	ClientAddr string
	UserAgent  string

	mu    sync.Mutex
	route string
	fault error
	stack []byte
}

// Route returns the matched route pattern, or "unmatched".
func (i *RequestInfo) Route() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.route == "" {
		return "unmatched"
	}
	return i.route
}

func (i *RequestInfo) recordFault(err error, stack []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fault != nil {
		return
	}
	i.fault = err
	i.stack = stack
}

func (i *RequestInfo) faulted() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stack, i.fault
}

// CompletionHook observes every finished request, including failed ones.
type CompletionHook func(info *RequestInfo, status int, duration time.Duration)

// RequestLifecycle is the outermost middleware. It assigns a correlation id,
// logs the start and the end of every request, stamps X-Request-ID and
// X-Process-Time on the response, and converts panics and recorded faults into
// a uniform 500 body that never carries internal error text.
func RequestLifecycle(log *slog.Logger, hooks ...CompletionHook) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &RequestInfo{
				ID:         uuid.NewString(),
				Start:      time.Now(),
				Method:     r.Method,
				Path:       r.URL.Path,
				ClientAddr: clientAddr(r),
				UserAgent:  r.UserAgent(),
			}
			reqLog := log.With(slog.String("request_id", info.ID))

			ctx := context.WithValue(r.Context(), requestInfoKey, info)
			ctx = context.WithValue(ctx, loggerKey, reqLog)

			reqLog.Info("request started",
				slog.String("method", info.Method),
				slog.String("path", info.Path),
				slog.String("client_addr", info.ClientAddr),
				slog.String("user_agent", info.UserAgent),
			)

			bw := &barrierWriter{ResponseWriter: w, info: info}

			defer func() {
				p := recover()
				duration := time.Since(info.Start)
				if isAbort(p) {
					// The handler gave up on the connection; net/http drops it
					// without logging when the panic reaches the server.
					reqLog.Debug("request aborted",
						slog.String("method", info.Method),
						slog.String("path", info.Path),
						slog.Duration("duration", duration),
					)
					panic(p)
				}
				if p != nil {
					info.recordFault(fmt.Errorf("panic: %v", p), debug.Stack())
				}

				if stack, fault := info.faulted(); fault != nil {
					if !bw.wroteHeader {
						writeInternalError(bw, info.ID)
					}
					reqLog.Error("request failed",
						slog.String("method", info.Method),
						slog.String("path", info.Path),
						slog.Int("status", bw.status),
						slog.Duration("duration", duration),
						slog.String("error", fault.Error()),
						slog.String("stack", string(stack)),
					)
				} else {
					if !bw.wroteHeader {
						bw.WriteHeader(http.StatusOK)
					}
					reqLog.Info("request completed",
						slog.String("method", info.Method),
						slog.String("path", info.Path),
						slog.Int("status", bw.status),
						slog.Duration("duration", duration),
					)
				}

				for _, hook := range hooks {
					hook(info, bw.status, duration)
				}
			}()

			next.ServeHTTP(bw, r.WithContext(ctx))
		})
	}
}

func isAbort(p any) bool {
	err, ok := p.(error)
	return ok && errors.Is(err, http.ErrAbortHandler)
}

// RecordFault marks the request as failed with an unclassified error. The
// lifecycle middleware logs err and answers with the uniform 500 body. It
// reports false when ctx does not belong to a request wrapped by
// RequestLifecycle.
func RecordFault(ctx context.Context, err error) bool {
	info, ok := ctx.Value(requestInfoKey).(*RequestInfo)
	if !ok || err == nil {
		return false
	}
	info.recordFault(err, debug.Stack())
	return true
}

// RequestInfoFromContext returns the request's lifecycle record.
func RequestInfoFromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(*RequestInfo)
	return info, ok
}

// RequestIDFromContext returns the correlation id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	if info, ok := RequestInfoFromContext(ctx); ok {
		return info.ID
	}
	return ""
}

// LoggerFromContext returns the request-scoped logger carrying request_id.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// SetRoute records the matched route pattern for completion hooks.
func SetRoute(ctx context.Context, pattern string) {
	if info, ok := RequestInfoFromContext(ctx); ok {
		info.mu.Lock()
		info.route = pattern
		info.mu.Unlock()
	}
}

type internalErrorBody struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

func writeInternalError(w http.ResponseWriter, requestID string) {
	body, _ := json.Marshal(internalErrorBody{Detail: "Internal server error", RequestID: requestID})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(body)
}

// barrierWriter stamps the correlation headers right before the status line.
type barrierWriter struct {
	http.ResponseWriter
	info        *RequestInfo
	status      int
	wroteHeader bool
}

func (w *barrierWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code

	h := w.ResponseWriter.Header()
	h.Set(HeaderRequestID, w.info.ID)
	h.Set(HeaderProcessTime, strconv.FormatFloat(time.Since(w.info.Start).Seconds(), 'f', 6, 64))
	w.ResponseWriter.WriteHeader(code)
}

func (w *barrierWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *barrierWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
