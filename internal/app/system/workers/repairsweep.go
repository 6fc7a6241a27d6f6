// internal/app/system/workers/repairsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/projecthub/internal/app/provisioning"
	"github.com/dalemusser/projecthub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// CourseRepairer reconciles the groups of every active course.
type CourseRepairer interface {
	RepairActiveCourses(ctx context.Context) (provisioning.RepairResult, error)
}

// RepairSweep is a background worker that periodically runs group
// reconciliation across active courses, so inconsistencies left by
// failed writes are fixed even when nobody reads the group.
type RepairSweep struct {
	repairer CourseRepairer
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewRepairSweep creates a sweep that runs every interval.
func NewRepairSweep(repairer CourseRepairer, logger *zap.Logger, interval time.Duration) *RepairSweep {
	return &RepairSweep{
		repairer: repairer,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *RepairSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("repair sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for the current sweep to
// finish. Stop is safe to call more than once.
func (w *RepairSweep) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("repair sweep worker stopped")
	})
}

func (w *RepairSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RepairSweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
	defer cancel()

	// stop cancels a sweep in progress
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.RunOnce(ctx)
}

// RunOnce performs a single sweep and returns its result.
func (w *RepairSweep) RunOnce(ctx context.Context) provisioning.RepairResult {
	res, err := w.repairer.RepairActiveCourses(ctx)
	if err != nil {
		w.log.Error("repair sweep failed", zap.Error(err))
		return res
	}

	switch {
	case res.Failed > 0:
		w.log.Warn("repair sweep left groups inconsistent",
			zap.Int("checked", res.Checked),
			zap.Int("repaired", res.Repaired),
			zap.Int("failed", res.Failed))
	case res.Repaired > 0:
		w.log.Info("repair sweep fixed groups",
			zap.Int("checked", res.Checked),
			zap.Int("repaired", res.Repaired))
	default:
		w.log.Debug("repair sweep found nothing to fix", zap.Int("checked", res.Checked))
	}
	return res
}
