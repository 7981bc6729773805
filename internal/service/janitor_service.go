package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepBatchSize = 500

type orphanLister interface {
	ListOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
	Delete(ctx context.Context, key string) error
}

type filePathChecker interface {
	FilePathsExist(ctx context.Context, paths []string) (map[string]bool, error)
}

// Janitor periodically removes stored files that no resource row references,
// left behind when a process dies between writing a file and inserting its row.
type Janitor struct {
	files    orphanLister
	repo     filePathChecker
	ttl      time.Duration
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewJanitor constructs a Janitor running on a cron schedule such as "@every 6h".
func NewJanitor(files orphanLister, repo filePathChecker, schedule string, ttl time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@every 6h"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Janitor{files: files, repo: repo, ttl: ttl, schedule: schedule, logger: logger}
}

// Start registers the sweep and starts the scheduler.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("orphan sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule orphan sweep %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("orphan sweeper scheduled", zap.String("schedule", j.schedule), zap.Duration("ttl", j.ttl))
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// Sweep deletes unreferenced files older than the TTL and returns how many
// were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	keys, err := j.files.ListOlderThan(ctx, j.ttl)
	if err != nil {
		return 0, fmt.Errorf("list stored files: %w", err)
	}
	removed := 0
	for start := 0; start < len(keys); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		referenced, err := j.repo.FilePathsExist(ctx, batch)
		if err != nil {
			return removed, fmt.Errorf("check referenced files: %w", err)
		}
		for _, key := range batch {
			if referenced[key] {
				continue
			}
			if err := j.files.Delete(ctx, key); err != nil {
				j.logger.Warn("failed to delete orphaned file", zap.String("key", key), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		j.logger.Info("orphaned files removed", zap.Int("count", removed))
	}
	return removed, nil
}
