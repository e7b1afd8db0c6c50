// Package scheduler drives the periodic poll cycle: a ticker fires at the
// configured interval, eligible exchangers are fanned out to a bounded
// worker pool, and interval changes from the settings surface take effect
// on the next firing.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coolmon/pkg/models"
)

// PollTask identifies one device poll to execute.
type PollTask struct {
	ExchangerID int64
	IP          string
}

// Poller is the polling side the scheduler dispatches into.
type Poller interface {
	ListActive(ctx context.Context) ([]*models.HeatExchanger, error)
	PollExchanger(ctx context.Context, exchangerID int64, ip string) error
}

// Settings is the subset of system settings the cycle consults.
type Settings interface {
	MonitoringEnabled(ctx context.Context) bool
	PollIntervalSeconds(ctx context.Context) int
}

// Scheduler owns the poll ticker and the worker pool.
type Scheduler struct {
	poller   Poller
	settings Settings

	interval    time.Duration
	reschedule  chan time.Duration
	tasks       chan PollTask
	workerCount int

	wg      sync.WaitGroup
	stopMu  sync.RWMutex
	stopped bool
}

// New builds a scheduler with a bounded task queue. intervalSeconds is the
// starting cadence; the persisted settings value overrides it once Run
// starts.
func New(poller Poller, settings Settings, intervalSeconds, workerCount, queueSize int) *Scheduler {
	if intervalSeconds <= 0 {
		intervalSeconds = 30
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Scheduler{
		poller:      poller,
		settings:    settings,
		interval:    time.Duration(intervalSeconds) * time.Second,
		reschedule:  make(chan time.Duration, 1),
		tasks:       make(chan PollTask, queueSize),
		workerCount: workerCount,
	}
}

// Run starts the workers and the ticker loop. It blocks until ctx is
// cancelled, then drains in-flight polls before returning.
func (scheduler *Scheduler) Run(ctx context.Context) {
	if stored := scheduler.settings.PollIntervalSeconds(ctx); stored > 0 {
		scheduler.interval = time.Duration(stored) * time.Second
	}

	slog.Info("Starting poll scheduler", "component", "Scheduler",
		"interval", scheduler.interval, "workers", scheduler.workerCount)

	for i := 0; i < scheduler.workerCount; i++ {
		scheduler.wg.Add(1)
		go scheduler.worker(ctx, i)
	}

	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()

	// First cycle fires immediately rather than one interval in.
	scheduler.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler shutting down, draining workers", "component", "Scheduler")
			scheduler.stopMu.Lock()
			scheduler.stopped = true
			scheduler.stopMu.Unlock()
			close(scheduler.tasks)
			scheduler.wg.Wait()
			slog.Info("Scheduler stopped", "component", "Scheduler")
			return

		case next := <-scheduler.reschedule:
			if next != scheduler.interval {
				slog.Info("Poll interval changed", "component", "Scheduler",
					"old", scheduler.interval, "new", next)
				scheduler.interval = next
				ticker.Reset(next)
			}

		case <-ticker.C:
			scheduler.dispatch(ctx)
		}
	}
}

// Reschedule requests a new poll cadence. The change applies from the next
// firing; the current tick is never interrupted.
func (scheduler *Scheduler) Reschedule(intervalSeconds int) {
	if intervalSeconds <= 0 {
		return
	}
	next := time.Duration(intervalSeconds) * time.Second

	// Keep only the latest pending request.
	select {
	case <-scheduler.reschedule:
	default:
	}
	scheduler.reschedule <- next
}

// PollNow enqueues a single out-of-band poll, ahead of the next tick.
func (scheduler *Scheduler) PollNow(exchangerID int64, ip string) {
	if !scheduler.enqueue(PollTask{ExchangerID: exchangerID, IP: ip}) {
		slog.Warn("Poll queue full, dropping immediate poll", "component", "Scheduler",
			"exchanger_id", exchangerID)
	}
}

// enqueue offers a task to the pool without blocking. It refuses after
// shutdown has started so late callers cannot hit the closed channel.
func (scheduler *Scheduler) enqueue(task PollTask) bool {
	scheduler.stopMu.RLock()
	defer scheduler.stopMu.RUnlock()
	if scheduler.stopped {
		return false
	}
	select {
	case scheduler.tasks <- task:
		return true
	default:
		return false
	}
}

// dispatch queues one poll per active exchanger for the current cycle.
func (scheduler *Scheduler) dispatch(ctx context.Context) {
	if !scheduler.settings.MonitoringEnabled(ctx) {
		slog.Debug("Monitoring disabled, skipping cycle", "component", "Scheduler")
		return
	}

	targets, err := scheduler.poller.ListActive(ctx)
	if err != nil {
		slog.Error("Failed to list active exchangers", "component", "Scheduler", "error", err)
		return
	}
	if len(targets) == 0 {
		return
	}

	queued := 0
	for _, target := range targets {
		if scheduler.enqueue(PollTask{ExchangerID: target.ID, IP: target.RscmIP}) {
			queued++
		} else {
			slog.Warn("Poll queue full, exchanger skipped this cycle", "component", "Scheduler",
				"exchanger_id", target.ID)
		}
	}
	slog.Info("Poll cycle dispatched", "component", "Scheduler", "queued", queued, "active", len(targets))
}

// worker executes queued polls until the task channel closes. A failed
// poll is logged and never stops the worker.
func (scheduler *Scheduler) worker(ctx context.Context, id int) {
	defer scheduler.wg.Done()

	for task := range scheduler.tasks {
		if err := scheduler.poller.PollExchanger(ctx, task.ExchangerID, task.IP); err != nil {
			slog.Warn("Poll failed", "component", "Scheduler", "worker", id,
				"exchanger_id", task.ExchangerID, "error", err)
		}
	}
}
