package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/healthcare-records/internal/model"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
)

type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:             24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// Service remembers the outcome of transactions this process submitted.
type Service struct {
	cache *cache.Cache
}

func NewService(cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Service{cache: cache.New(cfg.TTL, cfg.CleanupInterval)}
}

var errInvalidHash = errors.New("transaction hash must be 32 hex-encoded bytes")

func (s *Service) Record(tx model.Transaction) {
	s.cache.Set(common.HexToHash(tx.Hash).Hex(), tx, cache.DefaultExpiration)
}

// Get looks a transaction up by hash, with or without the 0x prefix.
// Anything that is not a 32-byte hex hash is a validation error.
func (s *Service) Get(hash string) (*model.Transaction, error) {
	k, err := key(hash)
	if err != nil {
		return nil, apperrors.Validation("invalid transaction hash", err)
	}
	if cached, found := s.cache.Get(k); found {
		tx := cached.(model.Transaction)
		return &tx, nil
	}
	return nil, apperrors.NotFound("transaction", nil)
}

func (s *Service) Count() int {
	return s.cache.ItemCount()
}

func key(hash string) (string, error) {
	hash = strings.TrimSpace(hash)
	if !strings.HasPrefix(hash, "0x") && !strings.HasPrefix(hash, "0X") {
		hash = "0x" + hash
	}
	if len(hash) != 2+2*common.HashLength {
		return "", errInvalidHash
	}
	b, err := hexutil.Decode("0x" + hash[2:])
	if err != nil {
		return "", errInvalidHash
	}
	return common.BytesToHash(b).Hex(), nil
}
