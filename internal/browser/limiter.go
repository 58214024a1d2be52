package browser

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter rate-limits per hostname so polling waits stay polite.
type hostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

func newHostLimiter(reqPerSec float64, burst int) *hostLimiter {
	return &hostLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(reqPerSec),
		b: burst,
	}
}

func (hl *hostLimiter) waitHost(ctx context.Context, host string) error {
	if host == "" {
		host = "_"
	}
	hl.mu.Lock()
	lim, ok := hl.m[host]
	if !ok {
		lim = rate.NewLimiter(hl.r, hl.b)
		hl.m[host] = lim
	}
	hl.mu.Unlock()
	return lim.Wait(ctx)
}
