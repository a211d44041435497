package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterPool manages per-model and per-provider token buckets.
// A request waits on its provider limiter (when one is configured) and then on its model limiter.
type RateLimiterPool struct {
	limiters     map[string]*rate.Limiter
	rates        map[string]int
	providerRPM  map[string]int
	burstPercent int
	mu           sync.Mutex
}

// NewRateLimiterPool creates a new rate limiter pool.
// providerRPM maps provider names to a shared requests-per-minute cap; burstPercent sizes their bucket.
func NewRateLimiterPool(providerRPM map[string]int, burstPercent int) *RateLimiterPool {
	if burstPercent <= 0 {
		burstPercent = 15
	}
	return &RateLimiterPool{
		limiters:     make(map[string]*rate.Limiter),
		rates:        make(map[string]int),
		providerRPM:  providerRPM,
		burstPercent: burstPercent,
	}
}

// GetOrCreate returns an existing rate limiter or creates a new one.
// If a limiter exists with a different rate the existing one is kept.
func (p *RateLimiterPool) GetOrCreate(key string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getOrCreateLocked(key, requestsPerMinute, max(1, requestsPerMinute/5))
}

func (p *RateLimiterPool) getOrCreateLocked(key string, requestsPerMinute, burst int) *rate.Limiter {
	if limiter, exists := p.limiters[key]; exists {
		if existing := p.rates[key]; existing != requestsPerMinute {
			slog.Warn("Rate limiter already exists with different rate, using existing rate",
				"key", key,
				"existing_rpm", existing,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	rps := float64(requestsPerMinute) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[key] = limiter
	p.rates[key] = requestsPerMinute

	slog.Debug("Created rate limiter", "key", key, "rpm", requestsPerMinute, "rps", rps, "burst", burst)
	return limiter
}

func (p *RateLimiterPool) providerLimiter(provider string) *rate.Limiter {
	rpm, ok := p.providerRPM[provider]
	if !ok || rpm <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	burst := max(1, rpm*p.burstPercent/100)
	return p.getOrCreateLocked("provider:"+provider, rpm, burst)
}

// Wait blocks until both the provider and the model limiter allow the next request.
// It returns how long the caller was held.
func (p *RateLimiterPool) Wait(ctx context.Context, provider, modelID string, requestsPerMinute int) (time.Duration, error) {
	start := time.Now()
	if limiter := p.providerLimiter(provider); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return time.Since(start), err
		}
	}
	if err := p.GetOrCreate(modelID, requestsPerMinute).Wait(ctx); err != nil {
		return time.Since(start), err
	}
	return time.Since(start), nil
}
