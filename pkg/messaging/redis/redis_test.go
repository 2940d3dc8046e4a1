package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisBroker_InvalidURL(t *testing.T) {
	zl := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "not a url"}, &zl)
	assert.Error(t, err)
}

func TestNewRedisBroker_Unreachable(t *testing.T) {
	zl := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "redis://127.0.0.1:1/0", MaxRetries: -1}, &zl)
	assert.Error(t, err)
}

func TestPublish_BreakerOpens(t *testing.T) {
	zl := zerolog.Nop()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	b := newRedisBroker(client, Config{FailureThreshold: 2, OpenTimeout: time.Minute}, &zl)
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := b.Publish(ctx, "record.added", map[string]string{"patientID": "7"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())
	err := b.Publish(ctx, "record.added", map[string]string{"patientID": "7"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestPublish_MarshalError(t *testing.T) {
	zl := zerolog.Nop()
	b := newRedisBroker(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), Config{}, &zl)
	defer b.Close()

	err := b.Publish(context.Background(), "x", make(chan int))
	assert.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
