package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/pkg/logger"
	"github.com/jwalitptl/healthcare-records/pkg/metrics"
)

type recordingBroker struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	return b.err
}

func (b *recordingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("unsupported")
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.channels...)
}

func event(eventType string) model.Event {
	return model.Event{ID: uuid.New(), Type: eventType, CreatedAt: time.Now()}
}

func TestPublisher_PublishesQueuedEvents(t *testing.T) {
	broker := &recordingBroker{}
	m := metrics.ForTests()
	p := NewPublisher(broker, DefaultPublisherConfig(), logger.Nop(), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.True(t, p.Enqueue(event(model.EventRecordAdded)))
	require.True(t, p.Enqueue(event(model.EventProviderAuthorized)))

	assert.Eventually(t, func() bool {
		return len(broker.published()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{model.EventRecordAdded, model.EventProviderAuthorized}, broker.published())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues(model.EventRecordAdded, "success")))

	cancel()
	<-done
}

func TestPublisher_FailuresAreCounted(t *testing.T) {
	broker := &recordingBroker{err: errors.New("down")}
	m := metrics.ForTests()
	p := NewPublisher(broker, DefaultPublisherConfig(), logger.Nop(), m)

	err := p.publish(context.Background(), event(model.EventRecordAdded))
	assert.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues(model.EventRecordAdded, "error")))
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	m := metrics.ForTests()
	p := NewPublisher(&recordingBroker{}, PublisherConfig{QueueSize: 1, PublishTimeout: time.Second}, logger.Nop(), m)

	assert.True(t, p.Enqueue(event(model.EventRecordAdded)))
	assert.False(t, p.Enqueue(event(model.EventRecordAdded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsDropped))
}

func TestPublisher_DrainsOnShutdown(t *testing.T) {
	broker := &recordingBroker{}
	p := NewPublisher(broker, DefaultPublisherConfig(), logger.Nop(), metrics.ForTests())

	p.Enqueue(event(model.EventRecordAdded))
	p.Enqueue(event(model.EventRecordAdded))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)

	assert.Len(t, broker.published(), 2)
}

func TestNewPublisher_InvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewPublisher(&recordingBroker{}, PublisherConfig{}, logger.Nop(), metrics.ForTests())
	})
}
