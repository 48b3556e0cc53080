package handlers

import (
	"math"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"lautcoach/internal/auth"
	"lautcoach/internal/observe"
	"lautcoach/internal/security"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier auth.Verifier
	limiter  *security.RateLimiter
	metrics  *observe.Metrics
}

// NewMiddleware creates a new middleware instance. limiter may be nil to
// disable throttling.
func NewMiddleware(verifier auth.Verifier, limiter *security.RateLimiter, metrics *observe.Metrics) *Middleware {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Middleware{verifier: verifier, limiter: limiter, metrics: metrics}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", "bearer token rejected", err)
			return
		}
		user, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", "token verification failed", err)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

// OptionalAuth attaches the user when a valid token is present and serves
// the request anonymously otherwise.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			next(w, r)
			return
		}
		user, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			observe.Logger(r.Context()).DebugContext(r.Context(), "ignoring invalid token on public route", "error", err)
			next(w, r)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

// RateLimit throttles requests per user, or per client address when the
// request is anonymous. It must run inside RequireAuth to see the user.
func (m *Middleware) RateLimit(route string, next http.HandlerFunc) http.HandlerFunc {
	if m.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + security.GetClientIP(r)
		if u := auth.UserFrom(r.Context()); u != nil {
			key = "user:" + u.ID
		}
		ok, wait := m.limiter.Allow(key)
		if !ok {
			m.metrics.RateLimited.Add(r.Context(), 1, metric.WithAttributes(attribute.String("route", route)))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			respondWithError(w, r, http.StatusTooManyRequests, "Too many requests", "", nil)
			return
		}
		next(w, r)
	}
}
