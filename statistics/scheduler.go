/*
scheduler.go - Periodic statistics refresh

PURPOSE:
  Keeps the team work-to-leave ratio warm so that staff requests hit the
  cache, and evicts expired entries from the in-process cache.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - A failed refresh is logged; the next tick tries again
  - Stop waits for an in-flight run to finish

USAGE:
  s := NewScheduler(engine, c, log)
  s.CheckInterval = time.Hour
  s.Start()
  defer s.Stop()

SEE ALSO:
  - engine.go: RefreshTeamRatio
  - cache/memory.go: Sweep
*/
package statistics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/cache"
)

// Sweeper is implemented by caches that need explicit eviction.
type Sweeper interface {
	Sweep() int
	Len() int
}

// Scheduler refreshes cached statistics in the background.
type Scheduler struct {
	Engine        *Engine
	Cache         cache.Cache
	CheckInterval time.Duration
	Enabled       bool

	log    *logrus.Entry
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates an enabled scheduler with an hourly interval.
func NewScheduler(engine *Engine, c cache.Cache, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		Engine:        engine,
		Cache:         c,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log.WithField("component", "stats-scheduler"),
	}
}

// Start begins the refresh loop. A disabled scheduler or a non-positive
// interval leaves it idle.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.log.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.log.WithField("interval", s.CheckInterval.String()).Info("scheduler started")
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one refresh synchronously.
func (s *Scheduler) RunNow(ctx context.Context) {
	start := time.Now()

	if sw, ok := s.Cache.(Sweeper); ok {
		if n := sw.Sweep(); n > 0 {
			s.log.WithFields(logrus.Fields{
				"evicted": n,
				"entries": sw.Len(),
			}).Debug("swept expired cache entries")
		}
	}

	r, err := s.Engine.RefreshTeamRatio(ctx)
	if err != nil {
		s.log.WithError(err).Error("team ratio refresh failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"working": r.Working.String(),
		"leaving": r.Leaving.String(),
		"took":    time.Since(start).String(),
	}).Debug("team ratio refreshed")
}
