// resource_stats.go implements the ResourceStats background job, which
// periodically counts active and pending resources into the resources gauge
// so the moderation backlog is visible on dashboards without querying the
// store on every scrape.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/store"
	"github.com/resourcehub/resourcehub/internal/telemetry"
)

// DefaultStatsInterval is used when the configured interval is not positive.
const DefaultStatsInterval = time.Minute

// Counter counts rows matching a filter.
type Counter interface {
	Count(ctx context.Context, f store.Filters) (int, error)
}

// ResourceStats samples resource counts on an interval.
type ResourceStats struct {
	counter  Counter
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewResourceStats creates the job.
func NewResourceStats(counter Counter, interval time.Duration) *ResourceStats {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &ResourceStats{
		counter:  counter,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs an initial sample immediately, then repeats on the interval
// until ctx is cancelled or Stop is called.
func (j *ResourceStats) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("resource stats job started", "interval", j.interval)
	j.sample(ctx)

	for {
		select {
		case <-ticker.C:
			j.sample(ctx)
		case <-j.stopChan:
			slog.Info("resource stats job stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit. It is safe to call more than once.
func (j *ResourceStats) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// sample counts both states concurrently and updates the gauge. A failed
// count leaves the previous values in place.
func (j *ResourceStats) sample(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()

	var active, pending int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = j.counter.Count(gctx, store.Where(store.Eq(models.ColIsActive, true)))
		return err
	})
	g.Go(func() (err error) {
		pending, err = j.counter.Count(gctx, store.Where(store.Eq(models.ColIsActive, false)))
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Warn("resource stats job: count failed", "error", err)
		return
	}

	telemetry.ResourcesGauge.WithLabelValues(telemetry.StateActive).Set(float64(active))
	telemetry.ResourcesGauge.WithLabelValues(telemetry.StatePending).Set(float64(pending))
}
