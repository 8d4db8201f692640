package metrics

import (
	"strconv"
	"time"

	"github.com/aryan0dhankhar/propertyhub/internal/security/middleware"
)

// HTTPCompletionHook instruments requests with Prometheus metrics. It is
// registered on the lifecycle middleware so requests that end in the uniform
// 500 are counted with their final status.
func HTTPCompletionHook() middleware.CompletionHook {
	return func(info *middleware.RequestInfo, status int, duration time.Duration) {
		ObserveHTTPRequest(info.Method, info.Route(), strconv.Itoa(status), duration)
	}
}
