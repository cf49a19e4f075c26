package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/registration/internal/config"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierAdmin  RateLimitTier = "admin"
)

// Idle client buckets are dropped after clientTTL, checked at most once per
// sweepInterval.
const (
	clientTTL     = 15 * time.Minute
	sweepInterval = 5 * time.Minute
)

type rateLimitKey string

const rateLimitTierKey rateLimitKey = "rateLimitTier"

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

// RateLimit applies a per-client token bucket for the tier found in the
// request context (public by default). A limit of zero disables the tier.
// The tier must be set before this middleware runs.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	tiers := map[RateLimitTier]*tierLimiter{
		TierPublic: newTierLimiter(cfg.PublicPerMinute),
		TierAdmin:  newTierLimiter(cfg.AdminPerMinute),
	}
	proxies := parseTrustedProxies(cfg.TrustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			tier := TierPublic
			if value, ok := r.Context().Value(rateLimitTierKey).(RateLimitTier); ok {
				tier = value
			}

			if tl := tiers[tier]; tl != nil && !tl.allow(clientKey(r, proxies), time.Now()) {
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tierLimiter holds one bucket per client for a single tier. A nil
// tierLimiter allows everything.
type tierLimiter struct {
	every     rate.Limit
	burst     int
	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newTierLimiter(perMinute int) *tierLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &tierLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clients: make(map[string]*clientBucket),
	}
}

func (t *tierLimiter) allow(client string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) > sweepInterval {
		for key, b := range t.clients {
			if now.Sub(b.lastSeen) > clientTTL {
				delete(t.clients, key)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.every, t.burst)}
		t.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

type trustedProxies []*net.IPNet

// parseTrustedProxies skips entries that are not valid CIDRs.
func parseTrustedProxies(cidrs []string) trustedProxies {
	var nets trustedProxies
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func (p trustedProxies) contains(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// clientKey identifies the client. Forwarding headers are honoured only when
// the connection comes from a trusted proxy.
func clientKey(r *http.Request, proxies trustedProxies) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !proxies.contains(remote) {
		return remote
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remote
}
