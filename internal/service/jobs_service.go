package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/pkg/jobs"
)

// Background job types.
const (
	JobTypeDownloadIncrement = "download.increment"
	JobTypeStorageDelete     = "storage.delete"
)

// DownloadIncrementPayload identifies the resource whose counter to bump.
type DownloadIncrementPayload struct {
	ResourceID string
}

// StorageDeletePayload names a storage key to remove.
type StorageDeletePayload struct {
	Key string
}

type downloadCounter interface {
	IncrementDownloads(ctx context.Context, id string) error
}

type fileDeleter interface {
	Delete(ctx context.Context, key string) error
}

// RegisterJobHandlers binds every background job type to its handler.
func RegisterJobHandlers(router *jobs.Router, counter downloadCounter, files fileDeleter, metrics *MetricsService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	router.Handle(JobTypeDownloadIncrement, instrumentJob(metrics, func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(DownloadIncrementPayload)
		if !ok || payload.ResourceID == "" {
			return fmt.Errorf("invalid %s payload %T", job.Type, job.Payload)
		}
		return counter.IncrementDownloads(ctx, payload.ResourceID)
	}))
	router.Handle(JobTypeStorageDelete, instrumentJob(metrics, func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(StorageDeletePayload)
		if !ok || payload.Key == "" {
			return fmt.Errorf("invalid %s payload %T", job.Type, job.Payload)
		}
		if err := files.Delete(ctx, payload.Key); err != nil {
			return err
		}
		logger.Info("deferred file delete completed", zap.String("key", payload.Key), zap.Int("attempt", job.Attempt))
		return nil
	}))
}

func instrumentJob(metrics *MetricsService, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		err := h(ctx, job)
		if err != nil {
			metrics.RecordJobFailure(job.Type)
		}
		return err
	}
}
