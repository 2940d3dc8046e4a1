package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthcare-records/pkg/messaging"
)

type chanBroker struct {
	messaging.Broker
	channels map[string]chan []byte
}

func (b *chanBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return b.channels[channel], nil
}

func TestFollow_PrintsEveryChannel(t *testing.T) {
	added := make(chan []byte, 1)
	authorized := make(chan []byte, 1)
	added <- []byte(`{"type":"record.added"}`)
	authorized <- []byte(`{"type":"provider.authorized"}`)
	close(added)
	close(authorized)

	broker := &chanBroker{channels: map[string]chan []byte{
		"record.added":        added,
		"provider.authorized": authorized,
	}}

	var out bytes.Buffer
	err := follow(context.Background(), broker, []string{"record.added", "provider.authorized"}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.ElementsMatch(t, []string{`{"type":"record.added"}`, `{"type":"provider.authorized"}`}, lines)
}

func TestFollow_LogBrokerCannotSubscribe(t *testing.T) {
	logger := zerolog.Nop()
	err := follow(context.Background(), messaging.NewLogBroker(&logger), []string{"record.added"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, messaging.ErrSubscribeUnsupported)
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, map[string]string{"prompt": "ok"}))
	assert.Equal(t, "{\n  \"prompt\": \"ok\"\n}\n", out.String())
}
