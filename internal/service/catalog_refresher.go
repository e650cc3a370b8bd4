package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
)

// JobTypeCatalogInvalidate drops cached catalog entries after a seat count changes.
const JobTypeCatalogInvalidate = "catalog.invalidate"

type catalogCache interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CatalogRefresher invalidates the course catalog cache off the request path.
type CatalogRefresher struct {
	cache  catalogCache
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewCatalogRefresher builds the refresher and its worker queue. The queue
// must be started before invalidations run asynchronously.
func NewCatalogRefresher(cache catalogCache, cfg jobs.QueueConfig) *CatalogRefresher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &CatalogRefresher{cache: cache, logger: logger}
	r.queue = jobs.NewQueue("catalog", r.handle, cfg)
	return r
}

// Start launches the workers.
func (r *CatalogRefresher) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop waits for running invalidations to finish.
func (r *CatalogRefresher) Stop() {
	r.queue.Stop()
}

// Invalidate schedules a cache flush for the course. When the queue cannot
// take the job the flush runs inline.
func (r *CatalogRefresher) Invalidate(courseCode string) {
	job := jobs.Job{Type: JobTypeCatalogInvalidate, Payload: courseCode}
	if err := r.queue.Enqueue(job); err != nil {
		r.logger.Warn("catalog invalidation not queued, running inline", zap.String("course_code", courseCode), zap.Error(err))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.handle(ctx, job); err != nil {
			r.logger.Error("catalog invalidation failed", zap.String("course_code", courseCode), zap.Error(err))
		}
	}
}

func (r *CatalogRefresher) handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeCatalogInvalidate {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	if err := r.cache.Invalidate(ctx, CatalogCachePattern); err != nil {
		return err
	}
	r.logger.Debug("catalog cache invalidated", zap.Any("course_code", job.Payload), zap.String("job_id", job.ID))
	return nil
}
