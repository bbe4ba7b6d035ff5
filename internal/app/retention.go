package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"trackrelay/internal/config"
	logx "trackrelay/pkg/logx"
)

const (
	defaultRetention     = 30 * 24 * time.Hour
	defaultPruneSchedule = "@daily"
)

// setupRetention schedules history pruning when storage is enabled.
func (a *App) setupRetention() error {
	if a.store == nil || a.cfg.Storage == nil {
		return nil
	}
	retention, err := config.ParseDurationOrDefault("storage.retention", a.cfg.Storage.Retention, defaultRetention)
	if err != nil {
		return err
	}
	schedule := a.cfg.Storage.PruneSchedule
	if schedule == "" {
		schedule = defaultPruneSchedule
	}

	log := a.log.With(logx.String("comp", "retention"))
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cutoff := time.Now().Add(-retention)
		removed, err := a.store.PruneBefore(ctx, cutoff)
		if err != nil {
			log.Warn("history prune failed", logx.Err(err))
			return
		}
		if removed > 0 {
			log.Info("history pruned", logx.Int("removed", removed), logx.Time("cutoff", cutoff))
		}
	})
	if err != nil {
		return fmt.Errorf("storage.prune_schedule: %w", err)
	}
	a.cron = c
	return nil
}
