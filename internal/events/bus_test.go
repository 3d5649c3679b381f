package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/jobs"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) InvalidateCache(context.Context) error {
	c.calls.Add(1)
	return nil
}

type actionCounter struct {
	mu      sync.Mutex
	actions []string
}

func (a *actionCounter) IncGradeEvent(action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func TestBusDeliversEventsInProcess(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{Topic: "test.grades"}, zap.NewNop())
	require.NoError(t, err)
	defer bus.Close()
	assert.Equal(t, "gochannel", bus.Transport())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.GradeChangedEvent, 1)
	require.NoError(t, bus.Consume(ctx, func(_ context.Context, ev models.GradeChangedEvent) error {
		received <- ev
		return nil
	}))

	class := int64(10)
	require.NoError(t, bus.PublishGradeChanged(ctx, models.GradeChangedEvent{Action: models.GradeClassPurged, ClassID: &class, Affected: 3}))

	select {
	case ev := <-received:
		assert.Equal(t, models.GradeClassPurged, ev.Action)
		assert.NotEmpty(t, ev.ID)
		require.NotNil(t, ev.ClassID)
		assert.Equal(t, int64(10), *ev.ClassID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestInvalidationConsumerClearsCache(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{}, zap.NewNop())
	require.NoError(t, err)
	defer bus.Close()

	queue := jobs.NewQueue("test", jobs.QueueConfig{Workers: 1})
	invalidator := &countingInvalidator{}
	counter := &actionCounter{}
	consumer := NewInvalidationConsumer(queue, invalidator, counter, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	require.NoError(t, bus.Consume(ctx, consumer.Handle))

	require.NoError(t, bus.PublishGradeChanged(ctx, models.GradeChangedEvent{Action: models.GradeCreated, RecordID: "r1"}))
	require.NoError(t, bus.PublishGradeChanged(ctx, models.GradeChangedEvent{Action: models.GradeDeleted, RecordID: "r1"}))

	require.Eventually(t, func() bool { return invalidator.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.ElementsMatch(t, []string{"created", "deleted"}, counter.actions)
}

func TestInvalidationConsumerRejectsWhenQueueStopped(t *testing.T) {
	queue := jobs.NewQueue("idle", jobs.QueueConfig{})
	consumer := NewInvalidationConsumer(queue, &countingInvalidator{}, nil, nil)

	err := consumer.Handle(context.Background(), models.GradeChangedEvent{Action: models.GradeCreated})
	assert.Error(t, err)
}
