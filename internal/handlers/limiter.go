package handlers

import (
	"sync"

	"golang.org/x/time/rate"
)

// guildLimiter hands out one token bucket per guild for the commands that
// hit the audio server or Spotify.
type guildLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newGuildLimiter(perSecond float64, burst int) *guildLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &guildLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (g *guildLimiter) Allow(guildID string) bool {
	g.mu.Lock()
	l, ok := g.limiters[guildID]
	if !ok {
		l = rate.NewLimiter(g.limit, g.burst)
		g.limiters[guildID] = l
	}
	g.mu.Unlock()
	return l.Allow()
}

func (g *guildLimiter) Forget(guildID string) {
	g.mu.Lock()
	delete(g.limiters, guildID)
	g.mu.Unlock()
}
