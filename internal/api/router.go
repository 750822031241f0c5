package api

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/middleware"
)

// RouterOptions wires the optional collaborators of the router. A nil
// Validator disables authentication and rate limiting.
type RouterOptions struct {
	Validator      KeyValidator
	Limiter        *ratelimit.Limiter
	Analytics      *analytics.Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	CORS           CORSConfig
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler.
//
//	POST /api/v1/process           full pipeline
//	POST /api/v1/redact            redaction only
//	POST /api/v1/documents         queue for the worker
//	GET  /api/v1/results           stored results (limit, offset, redacted)
//	GET  /api/v1/results/{id}      one stored result
//	GET  /api/v1/cache/stats       result cache statistics
//	POST /api/v1/cache/invalidate  drop cached results
//	GET  /api/v1/analytics         aggregated processing statistics
//	GET  /api/v1/analytics/history persisted snapshots
//	GET  /health/live, /health/ready
//
// Middleware, outermost first:
//
//	Recover → RequestID → Metrics → CORS → Auth → RateLimit → Timeout → mux
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	mux.HandleFunc("POST /api/v1/process", h.Process)
	mux.HandleFunc("POST /api/v1/redact", h.Redact)
	mux.HandleFunc("POST /api/v1/documents", h.Submit)
	mux.HandleFunc("GET /api/v1/results", h.ListResults)
	mux.HandleFunc("GET /api/v1/results/{id}", h.GetResult)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if opts.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", opts.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", opts.Analytics.History)
	}

	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	}
	if opts.Validator != nil {
		if opts.Limiter != nil {
			chain = RateLimit(opts.Limiter)(chain)
		}
		chain = Auth(opts.Validator)(chain)
	}
	if opts.CORS.AllowOrigins != nil {
		chain = CORS(opts.CORS)(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = pkgmw.RequestID(chain)
	chain = pkgmw.Recover(chain)
	return chain
}
