package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
)

// JobCacheInvalidate is the queue job type that clears cached aggregate views.
const JobCacheInvalidate = "cache.invalidate"

// CacheInvalidator drops cached aggregate views.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// EventCounter counts consumed events by action.
type EventCounter interface {
	IncGradeEvent(action string)
}

// InvalidationConsumer turns grade change events into cache invalidation jobs so the
// subscriber goroutine never blocks on Redis.
type InvalidationConsumer struct {
	queue       *jobs.Queue
	invalidator CacheInvalidator
	counter     EventCounter
	logger      *zap.Logger
}

// NewInvalidationConsumer registers the invalidation job handler on queue. Call it
// before the queue is started.
func NewInvalidationConsumer(queue *jobs.Queue, invalidator CacheInvalidator, counter EventCounter, logger *zap.Logger) *InvalidationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &InvalidationConsumer{queue: queue, invalidator: invalidator, counter: counter, logger: logger}
	queue.Handle(JobCacheInvalidate, c.runJob)
	return c
}

// Handle is an events.Handler.
func (c *InvalidationConsumer) Handle(_ context.Context, event models.GradeChangedEvent) error {
	if c.counter != nil {
		c.counter.IncGradeEvent(string(event.Action))
	}
	return c.queue.Enqueue(jobs.Job{Type: JobCacheInvalidate, Payload: event})
}

func (c *InvalidationConsumer) runJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.GradeChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := c.invalidator.InvalidateCache(ctx); err != nil {
		return err
	}
	c.logger.Debug("analytics cache invalidated", zap.String("event_id", event.ID), zap.String("action", string(event.Action)))
	return nil
}
