/*
auditor.go - Background schedule audit

PURPOSE:
  Periodically verifies that every persisted depreciation schedule still
  matches the one generated from its asset, and optionally repairs drift
  by resyncing. The last run is kept for the audit endpoint.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Checks once immediately on Start
  - Repair mode calls Registry.Resync only when discrepancies were found
  - An interval of zero disables the auditor

USAGE:
  auditor := NewScheduleAuditor(registry, 24*time.Hour, log)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: VerifySchedules / ResyncSchedules (manual equivalents)
  - depreciation/registry.go: Verify, Resync
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abacus/asset-engine/depreciation"
)

// AuditRun records one pass of the auditor.
type AuditRun struct {
	StartedAt     time.Time                  `json:"started_at"`
	CompletedAt   time.Time                  `json:"completed_at"`
	Discrepancies []depreciation.Discrepancy `json:"discrepancies"`
	Repaired      int                        `json:"repaired"`
	Error         string                     `json:"error,omitempty"`
}

// ScheduleAuditor verifies schedules on a ticker.
type ScheduleAuditor struct {
	Registry *depreciation.Registry
	Interval time.Duration
	Repair   bool

	log    logrus.FieldLogger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *AuditRun
}

func NewScheduleAuditor(registry *depreciation.Registry, interval time.Duration, log logrus.FieldLogger) *ScheduleAuditor {
	return &ScheduleAuditor{
		Registry: registry,
		Interval: interval,
		log:      log.WithField("component", "auditor"),
	}
}

// Start launches the audit loop. Calling Start twice is a no-op.
func (a *ScheduleAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Interval <= 0 {
		a.log.Info("schedule audit disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker, a.stop)

	a.log.WithFields(logrus.Fields{"interval": a.Interval, "repair": a.Repair}).Info("schedule audit started")
}

// Stop ends the loop and waits for an in-flight run to finish.
func (a *ScheduleAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.log.Info("schedule audit stopped")
}

func (a *ScheduleAuditor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer a.wg.Done()

	a.RunNow(context.Background())
	for {
		select {
		case <-ticker.C:
			a.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one audit synchronously and records it.
func (a *ScheduleAuditor) RunNow(ctx context.Context) AuditRun {
	run := AuditRun{StartedAt: time.Now(), Discrepancies: []depreciation.Discrepancy{}}

	found, err := a.Registry.Verify(ctx)
	switch {
	case err != nil:
		run.Error = err.Error()
		a.log.WithError(err).Error("schedule audit failed")
	case len(found) > 0:
		run.Discrepancies = found
		if a.Repair {
			n, err := a.Registry.Resync(ctx)
			if err != nil {
				run.Error = err.Error()
				a.log.WithError(err).Error("schedule repair failed")
			} else {
				run.Repaired = n
			}
		}
		a.log.WithFields(logrus.Fields{"assets": len(found), "repaired": run.Repaired}).Warn("schedule audit found drift")
	default:
		a.log.Debug("schedule audit clean")
	}

	run.CompletedAt = time.Now()
	a.lastMu.Lock()
	a.last = &run
	a.lastMu.Unlock()
	return run
}

// LastRun returns the most recent audit, if any.
func (a *ScheduleAuditor) LastRun() (AuditRun, bool) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	if a.last == nil {
		return AuditRun{}, false
	}
	return *a.last, true
}
