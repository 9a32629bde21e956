// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateKeyPrefix namespaces shared rate limit counters in Valkey.
const rateKeyPrefix = "ratelimit:"

// RateLimiter caps calls to the expensive asset endpoints (uploads, AI
// images, background removal) per visitor, or per client IP when no visitor
// is known.
//
// With a Valkey client the budget is a fixed window shared by every
// replica. Without one, or while Valkey is failing, each process enforces
// its own sliding window.
type RateLimiter struct {
	limit  int
	window time.Duration
	valkey *redis.Client
	local  *slidingWindow
}

// NewRateLimiter allows limit calls per window. valkey may be nil.
func NewRateLimiter(limit int, window time.Duration, valkey *redis.Client) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		valkey: valkey,
		local:  newSlidingWindow(limit, window),
	}
}

// Stop terminates the background sweep of the local window.
func (rl *RateLimiter) Stop() {
	rl.local.stop()
}

// Middleware answers 429 with a Retry-After header once the caller's
// budget is spent.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(r.Context(), callerKey(r))
		if !ok {
			w.Header().Set("Retry-After", retryAfter(wait))
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take records one call for key and reports whether it is within budget,
// along with how long until the budget refills.
func (rl *RateLimiter) take(ctx context.Context, key string) (bool, time.Duration) {
	if rl.valkey != nil {
		ok, wait, err := rl.takeShared(ctx, key)
		if err == nil {
			return ok, wait
		}
		slog.Warn("shared rate limit unavailable, using local window", "error", err, "key", key)
	}
	return rl.local.take(key, time.Now()), rl.window
}

// takeShared counts the call in the current fixed window in Valkey.
func (rl *RateLimiter) takeShared(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	slot := now.UnixNano() / int64(rl.window)
	counter := fmt.Sprintf("%s%s:%d", rateKeyPrefix, key, slot)

	pipe := rl.valkey.TxPipeline()
	incr := pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("count %s: %w", counter, err)
	}

	wait := time.Duration((slot+1)*int64(rl.window) - now.UnixNano())
	return incr.Val() <= int64(rl.limit), wait, nil
}

// callerKey identifies who a call is charged to.
func callerKey(r *http.Request) string {
	if v := VisitorFromCtx(r.Context()); v != nil {
		return "visitor:" + v.ID.String()
	}
	return "ip:" + clientIP(r)
}

// retryAfter renders d as whole seconds, at least one.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// slidingWindow is the per-process limiter. Hits per key are kept in
// arrival order.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time

	done    chan struct{}
	stopped sync.Once
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	sw := &slidingWindow{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		done:   make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				sw.sweep(now)
			case <-sw.done:
				return
			}
		}
	}()
	return sw
}

func (sw *slidingWindow) take(key string, now time.Time) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	hits := since(sw.hits[key], now.Add(-sw.window))
	if len(hits) >= sw.limit {
		sw.hits[key] = hits
		return false
	}
	sw.hits[key] = append(hits, now)
	return true
}

// sweep forgets keys with no hit inside the window ending at now.
func (sw *slidingWindow) sweep(now time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-sw.window)
	for key, hits := range sw.hits {
		if len(since(hits, cutoff)) == 0 {
			delete(sw.hits, key)
		}
	}
}

func (sw *slidingWindow) stop() {
	sw.stopped.Do(func() { close(sw.done) })
}

// since drops the leading hits at or before cutoff.
func since(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// clientIP extracts the client's IP address, preferring the proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
