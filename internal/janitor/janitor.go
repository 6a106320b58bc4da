// Package janitor schedules the time-window sweeps that keep the shared
// in-memory state bounded on an idle process: fingerprint entries, cooldown
// entries, and rate-limiter windows all age out on their own schedule
// instead of waiting for the next event to touch them.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pantheon-bots/pantheon/internal/orchestrator"
)

// cooldownRetention is how long a cooldown entry may outlive its last use.
// Generously above any sane cooldown_seconds value so a sweep can never
// cancel a live cooldown.
const cooldownRetention = time.Hour

// Janitor owns the sweep schedule.
type Janitor struct {
	cron      *cron.Cron
	ledger    *orchestrator.Ledger
	cooldowns *orchestrator.CooldownMap
	limiter   *orchestrator.CallLimiter
}

// New creates a Janitor sweeping the given shared structures.
func New(ledger *orchestrator.Ledger, cooldowns *orchestrator.CooldownMap, limiter *orchestrator.CallLimiter) *Janitor {
	return &Janitor{
		cron:      cron.New(),
		ledger:    ledger,
		cooldowns: cooldowns,
		limiter:   limiter,
	}
}

// Start runs the sweeps until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc("@every 30s", j.sweep); err != nil {
		return fmt.Errorf("janitor: schedule sweep: %w", err)
	}
	j.cron.Start()
	slog.Info("janitor: started")

	<-ctx.Done()
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	slog.Info("janitor: stopped")
	return ctx.Err()
}

func (j *Janitor) sweep() {
	fp := j.ledger.Sweep()
	cd := j.cooldowns.Sweep(cooldownRetention)
	rl := j.limiter.Sweep()
	if fp+cd+rl > 0 {
		slog.Debug("janitor: swept", "fingerprints", fp, "cooldowns", cd, "rate_entries", rl)
	}
}
