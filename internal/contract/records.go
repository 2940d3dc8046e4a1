package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/internal/wallet"
	"github.com/jwalitptl/healthcare-records/pkg/metrics"
)

// rawRecord mirrors HealthcareRecords.Record.
type rawRecord struct {
	RecordID    *big.Int
	PatientName string
	Diagnosis   string
	Treatment   string
	Timestamp   *big.Int
}

type records struct {
	address  common.Address
	contract *bind.BoundContract
	backend  bind.DeployBackend
	signer   *bind.TransactOpts
	opts     Options
	metrics  *metrics.Metrics
}

// NewBinder returns the go-ethereum backed Binder.
func NewBinder(opts Options, m *metrics.Metrics) (Binder, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = DefaultGasLimit
	}

	return func(address common.Address, backend wallet.Backend, signer *bind.TransactOpts) (Records, error) {
		if backend == nil {
			return nil, errors.New("wallet backend is not connected")
		}
		return &records{
			address:  address,
			contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
			backend:  backend,
			signer:   signer,
			opts:     opts,
			metrics:  m,
		}, nil
	}, nil
}

// NewReader binds a read-only handle over any contract caller.
func NewReader(address common.Address, caller bind.ContractCaller, opts Options, m *metrics.Metrics) (Records, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	return &records{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		opts:     opts,
		metrics:  m,
	}, nil
}

func (r *records) Address() common.Address {
	return r.address
}

func (r *records) GetOwner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := r.call(ctx, MethodGetOwner, &out); err != nil {
		return common.Address{}, err
	}

	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return owner, nil
}

func (r *records) GetPatientRecords(ctx context.Context, patientID *big.Int) ([]model.Record, error) {
	var out []interface{}
	if err := r.call(ctx, MethodGetPatientRecords, &out, patientID); err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]rawRecord)).(*[]rawRecord)
	result := make([]model.Record, 0, len(raw))
	for _, rec := range raw {
		result = append(result, model.NewRecord(rec.RecordID, rec.PatientName, rec.Diagnosis, rec.Treatment, rec.Timestamp))
	}
	return result, nil
}

func (r *records) AddRecord(ctx context.Context, patientID *big.Int, patientName, diagnosis, treatment string) (Transaction, error) {
	return r.transact(ctx, MethodAddRecord, r.opts.GasLimit, patientID, patientName, diagnosis, treatment)
}

func (r *records) AuthorizeProvider(ctx context.Context, providerAddress string) (Transaction, error) {
	provider, err := ParseAddress(providerAddress)
	if err != nil {
		r.metrics.RemoteCalls.WithLabelValues(MethodAuthorizeProvider, "invalid").Inc()
		return nil, err
	}
	return r.transact(ctx, MethodAuthorizeProvider, 0, provider)
}

func (r *records) call(ctx context.Context, method string, out *[]interface{}, params ...interface{}) error {
	ctx, cancel := withTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	opts := &bind.CallOpts{Context: ctx}
	if r.signer != nil {
		opts.From = r.signer.From
	}

	start := time.Now()
	err := r.contract.Call(opts, out, method, params...)
	r.metrics.RemoteCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RemoteCalls.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s: %w", method, err)
	}
	r.metrics.RemoteCalls.WithLabelValues(method, "success").Inc()

	if len(*out) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	return nil
}

func (r *records) transact(ctx context.Context, method string, gasLimit uint64, params ...interface{}) (Transaction, error) {
	if r.signer == nil || r.backend == nil {
		return nil, ErrReadOnly
	}

	ctx, cancel := withTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	opts := *r.signer
	opts.Context = ctx
	opts.GasLimit = gasLimit

	start := time.Now()
	tx, err := r.contract.Transact(&opts, method, params...)
	r.metrics.RemoteCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RemoteCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	r.metrics.RemoteCalls.WithLabelValues(method, "submitted").Inc()

	return &pendingTx{
		tx:      tx,
		method:  method,
		backend: r.backend,
		timeout: r.opts.ConfirmTimeout,
		metrics: r.metrics,
	}, nil
}

type pendingTx struct {
	tx      *types.Transaction
	method  string
	backend bind.DeployBackend
	timeout time.Duration
	metrics *metrics.Metrics
}

func (p *pendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *pendingTx) Method() string {
	return p.method
}

func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	timer := time.Now()
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	p.metrics.ConfirmationLatency.WithLabelValues(p.method).Observe(time.Since(timer).Seconds())
	if err != nil {
		p.metrics.Confirmations.WithLabelValues(p.method, "error").Inc()
		return nil, fmt.Errorf("waiting for %s: %w", p.tx.Hash().Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		p.metrics.Confirmations.WithLabelValues(p.method, "reverted").Inc()
		return receipt, fmt.Errorf("%s %s: %w", p.method, p.tx.Hash().Hex(), ErrReverted)
	}

	p.metrics.Confirmations.WithLabelValues(p.method, "success").Inc()
	return receipt, nil
}
