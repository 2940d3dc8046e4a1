package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventRecordAdded        = "record.added"
	EventProviderAuthorized = "provider.authorized"
)

// Event is published after a state-changing call is confirmed.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	TxHash    string          `json:"txHash"`
	Account   string          `json:"account"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

type RecordAddedPayload struct {
	PatientID   string `json:"patientID"`
	PatientName string `json:"patientName"`
	Diagnosis   string `json:"diagnosis"`
	Treatment   string `json:"treatment"`
}

type ProviderAuthorizedPayload struct {
	ProviderAddress string `json:"providerAddress"`
}
