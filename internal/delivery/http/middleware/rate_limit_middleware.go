package middleware

import (
	"net/http"

	"lifeline-plus/pkg/metrics"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
)

// NewRateLimit throttles per client IP. rate uses the limiter format,
// e.g. "10-M" for ten requests a minute.
func NewRateLimit(store limiter.Store, rate string, m *metrics.Metrics) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}

	mw := stdlib.NewMiddleware(
		limiter.New(store, parsed),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			m.RateLimited(routeTemplate(r))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Too many requests, try again later"}`))
		}),
	)

	return mw.Handler, nil
}
