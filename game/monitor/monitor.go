package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/service"
)

var logger = logrus.WithField("component", "monitor")

// Sweeper is the part of the game service the monitor drives.
type Sweeper interface {
	Probe(ctx context.Context) service.ProbeReport
	Prune(ctx context.Context, now time.Time) int
}

// Monitor runs the liveness probe sweep followed by the grace sweep on a
// fixed cadence.
type Monitor struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
}

// New creates a monitor ticking every interval.
func New(sweeper Sweeper, interval time.Duration) *Monitor {
	return &Monitor{sweeper: sweeper, interval: interval, now: time.Now}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.WithField("interval", m.interval).Info("monitor started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one probe sweep and one grace sweep. A panic in either is
// logged and does not stop the monitor.
func (m *Monitor) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("monitor tick failed")
		}
	}()

	report := m.sweeper.Probe(ctx)
	pruned := m.sweeper.Prune(ctx, m.now())

	entry := logger.WithFields(logrus.Fields{"probed": report.Probed, "expired": len(report.Expired), "pruned": pruned})
	if len(report.Expired) > 0 || pruned > 0 {
		entry.Info("monitor sweep")
		return
	}
	entry.Debug("monitor sweep")
}
