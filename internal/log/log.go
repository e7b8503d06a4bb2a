// Package log configures the process-wide logrus logger and provides a
// per-failure-class rate limiter, grounded on the teacher's pkg/logger
// (SetLogrus) and on golang.org/x/time/rate, generalizing the teacher's
// single global LogBuffer into the "one structured line per distinct
// failure class, rate-limited" contract spec.md section 7 requires.
package log

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config mirrors the "quiet" configuration input in spec.md section 6.
type Config struct {
	Level string
	Quiet bool
}

// DefaultConfig returns sensible defaults: info level, not quiet.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Setup installs c globally. Called once at process startup by cmd/.
func Setup(c Config) error {
	level := c.Level
	if c.Quiet {
		level = "warn"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log: invalid level %q: %w", c.Level, err)
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// RateLimiter emits at most one structured log line per failure class per
// window, dropping repeats without counting them, matching spec.md section 7's
// "rate-limit repeats" requirement. Construct with NewRateLimiter.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// defaultWindow is how often a given failure class may log once more.
const defaultWindow = 10 * time.Second

// NewRateLimiter returns a limiter allowing one log line per class every
// defaultWindow.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Every(defaultWindow),
		burst:    1,
	}
}

// Allow reports whether a failure of the given class should be logged now.
func (c *RateLimiter) Allow(class string) bool {
	c.mu.Lock()
	l, ok := c.limiters[class]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[class] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

// Failure logs a single structured line for a given failure class if the
// rate limiter admits it; repeats within the window are dropped silently.
func Failure(limiter *RateLimiter, class string, fields logrus.Fields, err error) {
	if !limiter.Allow(class) {
		return
	}
	entry := logrus.WithFields(fields).WithField("failure_class", class)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("failure")
}
