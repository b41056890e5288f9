package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "warish/pkg/domain-errors"
	"warish/pkg/platform/httputil"
	"warish/pkg/requestcontext"
)

// Metrics counts throttling decisions.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics registers the rate limit metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warish_ratelimit_decisions_total",
			Help: "Rate limit checks on public routes by class and decision",
		}, []string{"class", "decision"}),
	}
}

func (m *Metrics) observe(class, decision string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(class, decision).Inc()
}

type Middleware struct {
	store    Store
	logger   *slog.Logger
	metrics  *Metrics
	limit    int
	window   time.Duration
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// New allows limit requests per client address per window on each class.
func New(store Store, logger *slog.Logger, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit <= 0 || m.window <= 0 {
		m.disabled = true
	}
	if m.disabled {
		logger.Info("public rate limiting disabled")
	}
	return m
}

// Limit throttles requests of the given class by client address. A failing
// store lets the request through.
func (m *Middleware) Limit(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := clientIP(r)
			res, err := m.store.Allow(ctx, class+":"+ip, m.limit, m.window)
			if err != nil {
				m.metrics.observe(class, "error")
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", class,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				m.metrics.observe(class, "rejected")
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}
			m.metrics.observe(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// rewritten from forwarding headers when the server sits behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
