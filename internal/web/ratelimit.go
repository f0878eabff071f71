package web

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultLimiterIdle = 10 * time.Minute

// clientBucket - токены одного клиента и момент его последнего запроса.
type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов по ключу клиента.
// Клиенты, не присылавшие запросов дольше idle, удаляются при очередной чистке.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	nextSweep time.Time
	now       func() time.Time
}

// NewRateLimiter создаёт ограничитель. При rps <= 0 ограничение выключено.
func NewRateLimiter(rps float64, burst int, idle time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = defaultLimiterIdle
	}
	// Удалённый клиент возвращается с полным запасом, поэтому хранить его нужно не меньше времени восстановления burst.
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &RateLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

func (rl *RateLimiter) enabled() bool {
	return rl != nil && rl.limit > 0
}

// Allow списывает один токен клиента key и сообщает, уложился ли запрос в лимит.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !now.Before(rl.nextSweep) {
		rl.sweep(now)
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{tokens: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.tokens.AllowN(now, 1)
}

// sweep удаляет простаивающих клиентов. Вызывается под mu не чаще раза в idle.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.idle {
			delete(rl.buckets, key)
		}
	}
	rl.nextSweep = now.Add(rl.idle)
}

// Len возвращает число отслеживаемых клиентов.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware отклоняет запросы сверх лимита с кодом 429.
// Ключ клиента берётся из RemoteAddr; заголовки прокси учитываются только если
// перед ним стоит middleware.RealIP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.Allow(key) {
			slog.Warn("rate limit exceeded", "client", key, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey - адрес клиента без порта.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
