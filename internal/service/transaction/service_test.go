package transaction

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthcare-records/internal/model"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
)

const hash = "0x00000000000000000000000000000000000000000000000000000000000000ab"

func TestRecordAndGet(t *testing.T) {
	svc := NewService(DefaultConfig())
	svc.Record(model.Transaction{Hash: hash, Method: "addRecord", Status: model.TransactionConfirmed})

	for _, h := range []string{hash, "00000000000000000000000000000000000000000000000000000000000000AB", " " + hash} {
		tx, err := svc.Get(h)
		require.NoError(t, err, h)
		assert.Equal(t, "addRecord", tx.Method)
		assert.Equal(t, model.TransactionConfirmed, tx.Status)
	}
	assert.Equal(t, 1, svc.Count())
}

func TestGet_Missing(t *testing.T) {
	svc := NewService(Config{})

	_, err := svc.Get(hash)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRecord_Expires(t *testing.T) {
	svc := NewService(Config{TTL: 10 * time.Millisecond, CleanupInterval: time.Minute})
	svc.Record(model.Transaction{Hash: hash})

	assert.Eventually(t, func() bool {
		_, err := svc.Get(hash)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRecord_Overwrites(t *testing.T) {
	svc := NewService(DefaultConfig())
	svc.Record(model.Transaction{Hash: hash, Status: model.TransactionConfirmed})
	svc.Record(model.Transaction{Hash: hash, Status: model.TransactionFailed, Error: "reverted"})

	tx, err := svc.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, tx.Status)
}

func TestGet_InvalidHash(t *testing.T) {
	svc := NewService(DefaultConfig())
	svc.Record(model.Transaction{Hash: "0x" + strings.Repeat("0", 64)})

	for _, h := range []string{"", "zzz", "0x01", "0x" + strings.Repeat("z", 64), hash + "00"} {
		_, err := svc.Get(h)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), h)
	}
}
