package worker

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits remote sources per host. Local files are never
// limited.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given source
func (l *Limiter) Wait(ctx context.Context, source string) error {
	host, err := sourceHost(source)
	if err != nil {
		return err
	}
	if host == "" {
		return nil
	}
	return l.getLimiter(host).Wait(ctx)
}

// Allow checks if a fetch is allowed without waiting
func (l *Limiter) Allow(source string) bool {
	host, err := sourceHost(source)
	if err != nil {
		return false
	}
	if host == "" {
		return true
	}
	return l.getLimiter(host).Allow()
}

// getLimiter returns the rate limiter for a host
func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter

	return limiter
}

// SetHostRate sets a custom rate limit for a specific host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// sourceHost returns the host of an http(s) source, or "" for anything
// read locally
func sourceHost(source string) (string, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil
	}
	return parsed.Host, nil
}

// WaitWithDelay waits for rate limit and adds an additional delay
func (l *Limiter) WaitWithDelay(ctx context.Context, source string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, source); err != nil {
		return err
	}

	if additionalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(additionalDelay):
		}
	}

	return nil
}
