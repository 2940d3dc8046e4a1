// Package handler holds the HTTP presentation of the wallet session.
package handler

import (
	"context"

	"github.com/jwalitptl/healthcare-records/internal/model"
)

// Session is the set of user actions the presentation layer drives.
type Session interface {
	State() model.SessionState
	Records() []model.Record
	FetchRecords(ctx context.Context, patientID string) ([]model.Record, error)
	AddRecord(ctx context.Context, form model.AddRecordForm) (*model.ActionResult, error)
	AuthorizeProvider(ctx context.Context, providerAddress string) (*model.ActionResult, error)
}

// TransactionLookup finds transactions the session submitted.
type TransactionLookup interface {
	Get(hash string) (*model.Transaction, error)
}
