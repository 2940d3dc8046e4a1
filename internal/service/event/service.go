package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthcare-records/internal/model"
)

// Queue accepts events for asynchronous delivery.
type Queue interface {
	Enqueue(event model.Event) bool
}

type Service struct {
	queue Queue
}

func NewService(queue Queue) *Service {
	return &Service{queue: queue}
}

func (s *Service) Emit(ctx context.Context, eventType, txHash, account string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := model.Event{
		ID:        uuid.New(),
		Type:      eventType,
		TxHash:    txHash,
		Account:   account,
		Payload:   payloadJSON,
		CreatedAt: time.Now().UTC(),
	}

	if !s.queue.Enqueue(event) {
		return fmt.Errorf("event queue full, dropped %s", eventType)
	}
	return nil
}
