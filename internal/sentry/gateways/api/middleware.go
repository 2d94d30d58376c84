package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-client limiter table.
const maxTrackedClients = 4096

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"remote":      clientIP(r),
			"duration_ms": time.Since(start).Milliseconds(),
		}, "http request")
	})
}

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

// newClientLimiter returns nil when perSecond is 0, which disables limiting.
func newClientLimiter(perSecond float64, burst int) (*clientLimiter, error) {
	if perSecond <= 0 {
		return nil, nil
	}
	if burst < 1 {
		burst = 1
	}
	clients, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		return nil, fmt.Errorf("api: rate limiter: %w", err)
	}
	return &clientLimiter{limit: rate.Limit(perSecond), burst: burst, clients: clients}, nil
}

func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.clients.Get(client)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(client, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respondWithError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks the bearer token against the configured bcrypt hash.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == "" {
			respondWithError(w, "admin API is disabled", http.StatusForbidden)
			return
		}
		token, ok := bearerToken(r)
		if !ok || bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)) != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="url-sentry"`)
			respondWithError(w, "invalid admin token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
