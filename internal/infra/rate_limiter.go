package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
// Thread-safe and suitable for concurrent API calls.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
// maxRequests: maximum burst size
// perSecond: refill rate (requests per second)
func NewRateLimiter(maxRequests int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(maxRequests),
		maxTokens:  float64(maxRequests),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is canceled.
// Returns immediately if a token is available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// TryAcquire attempts to acquire a token without blocking.
// Returns true if a token was acquired, false otherwise.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time.
// Must be called with mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate

	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	r.lastRefill = now
}

// Binance USDT-M futures limits are weight-based; these limiters stay
// well under the 1200 weight/minute budget for a single-account CLI.
var (
	binanceOrderLimiter  *RateLimiter
	binanceMarketLimiter *RateLimiter
	rateLimiterOnce      sync.Once
)

// GetOrderLimiter returns the rate limiter for order endpoints.
// Limit: 10 requests/second with burst of 5.
func GetOrderLimiter() *RateLimiter {
	rateLimiterOnce.Do(initBinanceLimiters)
	return binanceOrderLimiter
}

// GetMarketLimiter returns the rate limiter for market data endpoints.
// Limit: 20 requests/second with burst of 10.
func GetMarketLimiter() *RateLimiter {
	rateLimiterOnce.Do(initBinanceLimiters)
	return binanceMarketLimiter
}

func initBinanceLimiters() {
	// Conservative limits to avoid IP bans
	binanceOrderLimiter = NewRateLimiter(5, 10)
	binanceMarketLimiter = NewRateLimiter(10, 20)
}
