// Package jobs holds the scheduled background work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-review-api/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RatingReconciler recomputes every restaurant's rating.
type RatingReconciler interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// Sweeper deletes stored files that no record references.
type Sweeper interface {
	Sweep(ctx context.Context, referenced []string, minAge time.Duration) (int, error)
}

// RefSource lists image references that must survive a sweep.
type RefSource func(ctx context.Context) ([]string, error)

// Maintenance repairs drifted ratings and removes orphaned uploads.
type Maintenance struct {
	Ratings RatingReconciler
	// Sweeper is nil when images are not stored locally.
	Sweeper Sweeper
	Refs    []RefSource
	MinAge  time.Duration
	Timeout time.Duration
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

// RunOnce performs a single maintenance pass.
func (m *Maintenance) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	recomputed, err := m.Ratings.RecomputeAll(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("recompute ratings: %w", err))
	}

	swept := 0
	if m.Sweeper != nil {
		swept, err = m.sweep(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep uploads: %w", err))
		}
	}

	err = errors.Join(errs...)
	m.Metrics.MaintenanceRun(err == nil)
	entry := m.Log.WithFields(logrus.Fields{
		"restaurants_recomputed": recomputed,
		"orphans_removed":        swept,
		"duration":               time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("maintenance run failed")
	} else {
		entry.Info("maintenance run finished")
	}
	return err
}

func (m *Maintenance) sweep(ctx context.Context) (int, error) {
	var referenced []string
	for _, src := range m.Refs {
		refs, err := src(ctx)
		if err != nil {
			// Without the full set every unlisted file would look orphaned.
			return 0, err
		}
		referenced = append(referenced, refs...)
	}
	return m.Sweeper.Sweep(ctx, referenced, m.MinAge)
}

// Register schedules RunOnce on c using a standard cron spec or descriptor.
func (m *Maintenance) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		timeout := m.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = m.RunOnce(ctx)
	})
}

// NewScheduler returns a cron that skips a run while the previous one is
// still going and logs through log.
func NewScheduler(log logrus.FieldLogger) *cron.Cron {
	logger := cron.PrintfLogger(log)
	return cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
}
