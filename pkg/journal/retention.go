package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures a Pruner.
type RetentionConfig struct {
	// Days is how long records are kept. Zero keeps them forever.
	Days int

	// PruneSchedule is a standard cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	PruneSchedule string

	// Now is the clock (default: time.Now).
	Now func() time.Time
}

// Pruner deletes records that are older than the retention period.
type Pruner struct {
	storage Storage
	config  RetentionConfig
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner.
func NewPruner(storage Storage, cfg RetentionConfig, logger *slog.Logger) *Pruner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "journal.retention"),
		cron:    cron.New(),
	}
}

// Prune deletes expired records and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.Days <= 0 {
		return 0, nil
	}

	cutoff := p.config.Now().AddDate(0, 0, -p.config.Days)
	deleted, err := p.storage.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal [retention_days=%d]: %w", p.config.Days, err)
	}

	if deleted > 0 {
		p.logger.Info("journal pruned",
			"deleted_count", deleted,
			"retention_days", p.config.Days,
			"cutoff_time", cutoff,
		)
	} else {
		p.logger.Debug("no journal records pruned", "retention_days", p.config.Days)
	}
	return deleted, nil
}

// Start schedules Prune on the configured cron expression until ctx is
// cancelled or Stop is called. An empty schedule does nothing.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.PruneSchedule == "" || p.config.Days <= 0 {
		p.logger.Info("journal prune schedule not configured, skipping scheduler")
		return nil
	}
	if p.running {
		return fmt.Errorf("journal pruner already running")
	}

	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.PruneSchedule, err)
	}
	if _, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled journal pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("journal retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.Days,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("journal retention scheduler stopped")
}

// NextRun returns the next scheduled pruning time, or nil when the
// scheduler is not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
