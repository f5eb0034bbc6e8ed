package store

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ecamargo/wabot/pkg/logger"
)

const (
	// sweepSchedule matches the cache TTL: stale entries are collected
	// every ten minutes.
	sweepSchedule = "*/10 * * * *"
	// counterResetSchedule starts a new per-chat rate window at midnight.
	counterResetSchedule = "0 0 * * *"
)

// Janitor runs the periodic housekeeping tasks: the advisory cache sweep and
// the daily message-counter reset.
type Janitor struct {
	cache    *Cache
	counters *Counters
	gron     *gronx.Gronx
}

func NewJanitor(cache *Cache, counters *Counters) *Janitor {
	return &Janitor{
		cache:    cache,
		counters: counters,
		gron:     gronx.New(),
	}
}

// Run blocks until ctx is cancelled, waking once a minute to evaluate the
// schedules.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.tick(now.Truncate(time.Minute))
		}
	}
}

func (j *Janitor) tick(now time.Time) {
	if due, err := j.gron.IsDue(sweepSchedule, now); err == nil && due {
		if removed := j.cache.Sweep(); removed > 0 {
			logger.DebugCF("store", "Swept stale cache entries",
				map[string]interface{}{"removed": removed})
		}
	}
	if due, err := j.gron.IsDue(counterResetSchedule, now); err == nil && due {
		j.counters.Reset()
		logger.DebugC("store", "Reset per-chat message counters")
	}
}
