package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes aged journal entries on a cron schedule.
type Pruner struct {
	journal   *Journal
	retention time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewPruner creates a pruner keeping entries for retentionDays.
func NewPruner(j *Journal, retentionDays int, logger *slog.Logger) *Pruner {
	if retentionDays <= 0 {
		retentionDays = 14
	}
	return &Pruner{
		journal:   j,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules pruning with the given cron expression and runs one
// prune immediately so a long-stopped agent catches up on startup.
func (p *Pruner) Start(ctx context.Context, schedule string) error {
	if _, err := p.cron.AddFunc(schedule, func() { p.prune(ctx) }); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	go p.prune(ctx)

	p.logger.Info("journal pruner started",
		slog.String("schedule", schedule),
		slog.Duration("retention", p.retention),
	)
	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.journal.Prune(ctx, cutoff)
	if err != nil {
		p.logger.WarnContext(ctx, "journal prune failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if deleted > 0 {
		p.logger.InfoContext(ctx, "journal pruned",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
