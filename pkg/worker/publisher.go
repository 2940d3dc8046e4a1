package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/pkg/logger"
	"github.com/jwalitptl/healthcare-records/pkg/messaging"
	"github.com/jwalitptl/healthcare-records/pkg/metrics"
)

type PublisherConfig struct {
	QueueSize      int
	PublishTimeout time.Duration
	// Time allowed to flush queued events after Start's context is cancelled.
	DrainTimeout time.Duration
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QueueSize:      256,
		PublishTimeout: 5 * time.Second,
		DrainTimeout:   5 * time.Second,
	}
}

// Publisher hands events to the broker off the request path.
type Publisher struct {
	broker  messaging.Broker
	queue   chan model.Event
	config  PublisherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPublisher(
	broker messaging.Broker,
	config PublisherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Publisher {
	if config.QueueSize <= 0 {
		panic("QueueSize must be greater than 0")
	}
	if config.PublishTimeout <= 0 {
		panic("PublishTimeout must be greater than 0")
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = config.PublishTimeout
	}

	return &Publisher{
		broker:  broker,
		queue:   make(chan model.Event, config.QueueSize),
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Enqueue never blocks. It reports false when the event was dropped.
func (p *Publisher) Enqueue(event model.Event) bool {
	select {
	case p.queue <- event:
		return true
	default:
		p.metrics.EventsDropped.Inc()
		p.logger.Warn("Event queue full, dropping event",
			"event_id", event.ID.String(),
			"event_type", event.Type)
		return false
	}
}

func (p *Publisher) Start(ctx context.Context) {
	p.logger.Info("Starting event publisher")

	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info("Shutting down event publisher")
			return
		case event := <-p.queue:
			if err := p.publish(ctx, event); err != nil {
				p.logger.Error(err, "Failed to publish event",
					"event_id", event.ID.String(),
					"event_type", event.Type)
			}
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.DrainTimeout)
	defer cancel()

	for {
		select {
		case event := <-p.queue:
			if err := p.publish(ctx, event); err != nil {
				p.logger.Error(err, "Failed to publish event during shutdown",
					"event_id", event.ID.String(),
					"event_type", event.Type)
			}
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, event model.Event) error {
	timer := prometheus.NewTimer(p.metrics.PublishLatency)
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.broker.Publish(ctx, event.Type, event); err != nil {
		p.metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	p.metrics.EventsPublished.WithLabelValues(event.Type, "success").Inc()
	return nil
}
