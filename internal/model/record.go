package model

import (
	"math/big"
	"strings"
	"time"
)

// Record is one patient-record entry as returned by getPatientRecords.
type Record struct {
	RecordID    *big.Int  `json:"recordID"`
	PatientName string    `json:"patientName"`
	Diagnosis   string    `json:"diagnosis"`
	Treatment   string    `json:"treatment"`
	Timestamp   int64     `json:"timestamp"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// MaxTimestamp is the latest block time a Record carries: 9999-12-31T23:59:59Z.
// Larger on-chain values are clamped to it rather than wrapped.
const MaxTimestamp int64 = 253402300799

// NewRecord builds a Record from the raw contract values.
func NewRecord(id *big.Int, patientName, diagnosis, treatment string, timestamp *big.Int) Record {
	var ts int64
	switch {
	case timestamp == nil || timestamp.Sign() <= 0:
	case !timestamp.IsInt64() || timestamp.Int64() > MaxTimestamp:
		ts = MaxTimestamp
	default:
		ts = timestamp.Int64()
	}
	if id == nil {
		id = new(big.Int)
	}
	return Record{
		RecordID:    new(big.Int).Set(id),
		PatientName: patientName,
		Diagnosis:   diagnosis,
		Treatment:   treatment,
		Timestamp:   ts,
		RecordedAt:  time.Unix(ts, 0).UTC(),
	}
}

// SameAddress compares two hex account addresses ignoring case.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
