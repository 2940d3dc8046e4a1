package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

// ErrSubscribeUnsupported is returned by brokers that cannot deliver messages back.
var ErrSubscribeUnsupported = errors.New("broker does not support subscriptions")

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// LogBroker writes every message to the log. Used when no Redis URL is configured.
type LogBroker struct {
	logger *zerolog.Logger
}

func NewLogBroker(logger *zerolog.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.logger.Info().
		Str("channel", channel).
		RawJSON("message", payload).
		Msg("event published")
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, ErrSubscribeUnsupported
}

func (b *LogBroker) Close() error {
	return nil
}
