// Package contract binds the HealthcareRecords contract interface descriptor to a wallet backend.
package contract

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/internal/wallet"
)

//go:embed abi.json
var abiJSON string

// Remote call surface
const (
	MethodGetOwner          = "getOwner"
	MethodGetPatientRecords = "getPatientRecords"
	MethodAddRecord         = "addRecord"
	MethodAuthorizeProvider = "authorizeProvider"
)

// DefaultAddress is the deployment the front-end was built against.
const DefaultAddress = "0x7E40D49db1460c2D1aCB4a3334f55A0245219cA1"

// DefaultGasLimit is the fixed resource ceiling for addRecord.
const DefaultGasLimit uint64 = 5_000_000

var (
	ErrReverted      = errors.New("transaction reverted")
	ErrInvalidNumber = errors.New("invalid uint256")
	ErrInvalidAddr   = errors.New("invalid address")
	ErrReadOnly      = errors.New("binding has no signer")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Records is the call handle for one deployed contract.
type Records interface {
	Address() common.Address
	GetOwner(ctx context.Context) (common.Address, error)
	GetPatientRecords(ctx context.Context, patientID *big.Int) ([]model.Record, error)
	AddRecord(ctx context.Context, patientID *big.Int, patientName, diagnosis, treatment string) (Transaction, error)
	AuthorizeProvider(ctx context.Context, providerAddress string) (Transaction, error)
}

// Transaction is a submitted state-changing call.
type Transaction interface {
	Hash() common.Hash
	Method() string
	// Wait blocks until the transaction is mined. A reverted receipt is returned with ErrReverted.
	Wait(ctx context.Context) (*types.Receipt, error)
}

// Binder constructs a call handle over a connected wallet backend.
type Binder func(address common.Address, backend wallet.Backend, signer *bind.TransactOpts) (Records, error)

// Options tune the binding.
type Options struct {
	GasLimit       uint64
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
}

// ParseABI parses the embedded interface descriptor.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract abi: %w", err)
	}
	return parsed, nil
}

// ParseUint256 converts user input to a uint256 argument the way an ABI encoder would accept it.
func ParseUint256(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidNumber)
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok || strings.ContainsAny(digits, "+-_") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if n.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %q overflows", ErrInvalidNumber, s)
	}
	return n, nil
}

// ParseAddress validates a hex account address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddr, s)
	}
	return common.HexToAddress(s), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
