package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// PhoneRateLimit caps requests per phone number (or client IP when the body has no
// phone) to maxPerMin per minute. name separates the counters of different routes.
// Counters live in Redis when cache is set, otherwise in process memory.
func PhoneRateLimit(cache *redis.Client, name string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	var counter windowCounter = newMemoryCounter()
	if cache != nil {
		counter = &redisCounter{cache: cache}
	}
	prefix := "rl:" + name + ":"

	return func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.Phone)
		if subject == "" {
			subject = c.IP()
		}

		count, err := counter.incr(c.UserContext(), prefix+subject)
		if err != nil {
			return c.Next() // fail open on cache errors
		}
		if count > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

type windowCounter interface {
	incr(ctx context.Context, key string) (int64, error)
}

type redisCounter struct {
	cache *redis.Client
}

func (r *redisCounter) incr(ctx context.Context, key string) (int64, error) {
	cnt, err := r.cache.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if cnt == 1 {
		r.cache.Expire(ctx, key, rateLimitWindow)
	}
	return cnt, nil
}

type window struct {
	count   int64
	resetAt time.Time
}

// memoryCounter keeps fixed windows in process. Expired windows are swept at
// most once per window length.
type memoryCounter struct {
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{windows: map[string]*window{}, now: time.Now}
}

func (m *memoryCounter) incr(_ context.Context, key string) (int64, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.After(m.nextSweep) {
		for k, w := range m.windows {
			if now.After(w.resetAt) {
				delete(m.windows, k)
			}
		}
		m.nextSweep = now.Add(rateLimitWindow)
	}
	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rateLimitWindow)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}
