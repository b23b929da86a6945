// Package limits implements the broker's admission control: a hard
// connection cap plus a CPU brake (ResourceGuard), and per-connection
// frame-rate limiting. Grounded on the teacher's ResourceGuard/RateLimiter
// pair, simplified for a single-process broker with no Kafka/broadcast
// concerns of its own.
package limits

import "golang.org/x/time/rate"

// FrameLimiterConfig configures the token bucket handed to each accepted
// connection to bound how many frames per second it may submit.
type FrameLimiterConfig struct {
	RatePerSecond float64
	Burst         int
}

// NewConnectionLimiter builds a fresh per-connection token bucket from cfg.
// Each connection gets its own *rate.Limiter so one abusive client cannot
// starve the rest — the same reasoning the teacher's RateLimiter documents
// for choosing per-client buckets over a single global one.
func NewConnectionLimiter(cfg FrameLimiterConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
}
