// Package collectors feeds runtime state into the metrics registry.
package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/videobridge/capturehal/internal/metrics"
)

// SessionStats is the view of the session the collector polls.
type SessionStats interface {
	ActiveWorkers() int
	EventsDropped() uint64
}

// SessionCollector periodically samples session gauges.
type SessionCollector struct {
	stats    SessionStats
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSessionCollector creates a collector sampling once per second.
func NewSessionCollector(stats SessionStats) *SessionCollector {
	return &SessionCollector{
		stats:    stats,
		interval: time.Second,
	}
}

// Start begins sampling.
func (c *SessionCollector) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run()
}

// Stop halts sampling and waits for the goroutine to exit.
func (c *SessionCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *SessionCollector) run() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *SessionCollector) sample() {
	metrics.SetActiveWorkers(c.stats.ActiveWorkers())
	metrics.SetDroppedEvents(c.stats.EventsDropped())
}
