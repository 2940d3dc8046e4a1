// Package session owns the wallet session and the four user actions run against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/singleflight"

	"github.com/jwalitptl/healthcare-records/internal/contract"
	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/internal/wallet"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
	"github.com/jwalitptl/healthcare-records/pkg/logger"
	"github.com/jwalitptl/healthcare-records/pkg/metrics"
	"github.com/jwalitptl/healthcare-records/pkg/validator"
)

const (
	PromptMissingFields = "Please fill out all fields including Patient ID"
	PromptNotOwner      = "Only contract owner can call this function"

	DefaultPlaceholderName = "Alice"
)

var errNotConnected = errors.New("wallet not connected")

// Emitter publishes notifications about confirmed transactions.
type Emitter interface {
	Emit(ctx context.Context, eventType, txHash, account string, payload interface{}) error
}

// TransactionRecorder remembers the outcome of submitted transactions.
type TransactionRecorder interface {
	Record(tx model.Transaction)
}

type Options struct {
	ContractAddress common.Address
	PlaceholderName string
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	Validator       validator.Validator
	Events          Emitter
	Transactions    TransactionRecorder
}

// Service is the single wallet session of the process. Connect populates it once;
// the action methods read it.
type Service struct {
	provider wallet.Provider
	binder   contract.Binder
	opts     Options

	mu      sync.RWMutex
	account common.Address
	handle  contract.Records
	isOwner *bool
	records []model.Record
	// readSeq numbers remote reads as they start; cachedSeq is the read that
	// last filled records. An older read finishing late never replaces a newer one.
	readSeq   uint64
	cachedSeq uint64

	reads    singleflight.Group
	inflight sync.Map
}

func New(provider wallet.Provider, binder contract.Binder, opts Options) *Service {
	if opts.PlaceholderName == "" {
		opts.PlaceholderName = DefaultPlaceholderName
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.ForTests()
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	if (opts.ContractAddress == common.Address{}) {
		opts.ContractAddress = common.HexToAddress(contract.DefaultAddress)
	}

	return &Service{
		provider: provider,
		binder:   binder,
		opts:     opts,
	}
}

// Connect requests account access, binds the contract and reads its owner.
// On any failure the session stays empty.
func (s *Service) Connect(ctx context.Context) error {
	if s.provider == nil {
		err := apperrors.Connection("Error while connecting to wallet", wallet.ErrNoProvider)
		s.opts.Logger.Error(err, "wallet connect failed")
		return err
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = errors.New("wallet granted no accounts")
	}
	if err != nil {
		appErr := apperrors.Connection("Error while connecting to wallet", err)
		s.opts.Logger.Error(appErr, "wallet connect failed")
		return appErr
	}
	account := accounts[0]

	signer, err := s.provider.Signer(ctx, account)
	if err != nil {
		appErr := apperrors.Connection("Error while connecting to wallet", err)
		s.opts.Logger.Error(appErr, "wallet connect failed", "account", account.Hex())
		return appErr
	}

	handle, err := s.binder(s.opts.ContractAddress, s.provider.Backend(), signer)
	if err != nil {
		appErr := apperrors.Connection("Error while binding contract", err)
		s.opts.Logger.Error(appErr, "wallet connect failed", "contract", s.opts.ContractAddress.Hex())
		return appErr
	}

	owner, err := handle.GetOwner(ctx)
	if err != nil {
		appErr := apperrors.Call("Error while reading contract owner", err)
		s.opts.Logger.Error(appErr, "wallet connect failed", "contract", s.opts.ContractAddress.Hex())
		return appErr
	}
	isOwner := model.SameAddress(account.Hex(), owner.Hex())

	s.mu.Lock()
	s.account = account
	s.handle = handle
	s.isOwner = &isOwner
	s.mu.Unlock()

	s.opts.Metrics.SessionConnected.Set(1)
	s.opts.Logger.Info("wallet connected",
		"account", account.Hex(),
		"owner", owner.Hex(),
		"is_owner", isOwner)
	return nil
}

// State returns a snapshot of the session fields.
func (s *Service) State() model.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := model.SessionState{
		Connected: s.handle != nil,
		Contract:  s.opts.ContractAddress.Hex(),
	}
	if s.handle != nil {
		state.Account = s.account.Hex()
		isOwner := *s.isOwner
		state.IsOwner = &isOwner
	}
	return state
}

// Records returns the cached record list from the last successful fetch.
func (s *Service) Records() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// FetchRecords reads the records of patientID and replaces the cache.
// Concurrent fetches for the same patient share one remote call.
func (s *Service) FetchRecords(ctx context.Context, patientID string) ([]model.Record, error) {
	return s.fetch(ctx, patientID, true)
}

func (s *Service) fetch(ctx context.Context, patientID string, coalesce bool) ([]model.Record, error) {
	handle, err := s.connected()
	if err != nil {
		appErr := apperrors.Connection("Error fetching patient records", err)
		s.opts.Logger.Error(appErr, "fetch records failed", "patient_id", patientID)
		return nil, appErr
	}

	id, err := contract.ParseUint256(patientID)
	if err != nil {
		appErr := apperrors.Call("Error fetching patient records", err)
		s.opts.Logger.Error(appErr, "fetch records failed", "patient_id", patientID)
		return nil, appErr
	}

	var (
		records []model.Record
		shared  bool
	)
	if coalesce {
		// The shared read outlives any single caller; each caller still
		// gives up when its own context ends.
		ch := s.reads.DoChan(id.String(), func() (interface{}, error) {
			return s.load(context.WithoutCancel(ctx), handle, id)
		})
		select {
		case res := <-ch:
			err, shared = res.Err, res.Shared
			if err == nil {
				records = res.Val.([]model.Record)
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		records, err = s.load(ctx, handle, id)
	}
	if err != nil {
		appErr := apperrors.Call("Error fetching patient records", err)
		s.opts.Logger.Error(appErr, "fetch records failed", "patient_id", patientID)
		return nil, appErr
	}

	s.opts.Logger.Debug("records fetched",
		"patient_id", id.String(),
		"count", len(records),
		"shared", shared)
	return records, nil
}

// load issues one getPatientRecords call and caches the result unless a read
// that started later has already been cached.
func (s *Service) load(ctx context.Context, handle contract.Records, id *big.Int) ([]model.Record, error) {
	s.mu.Lock()
	s.readSeq++
	seq := s.readSeq
	s.mu.Unlock()

	records, err := handle.GetPatientRecords(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if seq > s.cachedSeq {
		s.records = records
		s.cachedSeq = seq
	}
	s.mu.Unlock()
	return records, nil
}

// AddRecord appends a record for form.PatientID, waits for confirmation and refetches once.
func (s *Service) AddRecord(ctx context.Context, form model.AddRecordForm) (*model.ActionResult, error) {
	if err := s.opts.Validator.Validate(form); err != nil {
		appErr := apperrors.Validation(PromptMissingFields, err)
		s.opts.Logger.Warn("add record rejected", "error", err.Error())
		return nil, appErr
	}

	handle, err := s.connected()
	if err != nil {
		appErr := apperrors.Connection("Error adding records", err)
		s.opts.Logger.Error(appErr, "add record failed", "patient_id", form.PatientID)
		return nil, appErr
	}

	id, err := contract.ParseUint256(form.PatientID)
	if err != nil {
		appErr := apperrors.Transaction("Error adding records", err)
		s.opts.Logger.Error(appErr, "add record failed", "patient_id", form.PatientID)
		return nil, appErr
	}

	release, err := s.acquire(contract.MethodAddRecord)
	if err != nil {
		s.opts.Logger.Warn("add record rejected", "error", err.Error())
		return nil, err
	}
	defer release()

	name := form.PatientName
	if name == "" {
		name = s.opts.PlaceholderName
	}

	tx, err := handle.AddRecord(ctx, id, name, form.Diagnosis, form.Treatment)
	if err != nil {
		appErr := apperrors.Transaction("Error adding records", err)
		s.opts.Logger.Error(appErr, "add record failed", "patient_id", id.String())
		return nil, appErr
	}
	if err := s.confirm(ctx, tx); err != nil {
		appErr := apperrors.Transaction("Error adding records", err)
		s.opts.Logger.Error(appErr, "add record failed",
			"patient_id", id.String(),
			"tx", tx.Hash().Hex())
		return nil, appErr
	}

	result := &model.ActionResult{
		Prompt: fmt.Sprintf("Record added successfully || Patient ID: %s", id.String()),
		TxHash: tx.Hash().Hex(),
	}
	// The refetch must observe the new record, so it never joins an older in-flight read.
	// Its result also wins over any such read that finishes afterwards.
	if records, err := s.fetch(ctx, id.String(), false); err == nil {
		result.Records = records
	}

	s.emit(ctx, model.EventRecordAdded, tx, model.RecordAddedPayload{
		PatientID:   id.String(),
		PatientName: name,
		Diagnosis:   form.Diagnosis,
		Treatment:   form.Treatment,
	})

	s.opts.Logger.Info("record added", "patient_id", id.String(), "tx", tx.Hash().Hex())
	return result, nil
}

// AuthorizeProvider grants providerAddress record-entry rights. Only the owner may call it.
// The address is passed through untouched; malformed input fails at encoding.
func (s *Service) AuthorizeProvider(ctx context.Context, providerAddress string) (*model.ActionResult, error) {
	s.mu.RLock()
	handle := s.handle
	owner := s.isOwner != nil && *s.isOwner
	s.mu.RUnlock()

	if !owner {
		appErr := apperrors.NotOwner(PromptNotOwner)
		s.opts.Logger.Warn("authorize provider rejected",
			"provider", providerAddress,
			"connected", handle != nil)
		return nil, appErr
	}

	release, err := s.acquire(contract.MethodAuthorizeProvider)
	if err != nil {
		s.opts.Logger.Warn("authorize provider rejected", "error", err.Error())
		return nil, err
	}
	defer release()

	tx, err := handle.AuthorizeProvider(ctx, providerAddress)
	if err != nil {
		appErr := apperrors.Transaction("Only contract owner can authorize different providers", err)
		s.opts.Logger.Error(appErr, "authorize provider failed", "provider", providerAddress)
		return nil, appErr
	}
	if err := s.confirm(ctx, tx); err != nil {
		appErr := apperrors.Transaction("Only contract owner can authorize different providers", err)
		s.opts.Logger.Error(appErr, "authorize provider failed",
			"provider", providerAddress,
			"tx", tx.Hash().Hex())
		return nil, appErr
	}

	s.emit(ctx, model.EventProviderAuthorized, tx, model.ProviderAuthorizedPayload{
		ProviderAddress: providerAddress,
	})

	s.opts.Logger.Info("provider authorized", "provider", providerAddress, "tx", tx.Hash().Hex())
	return &model.ActionResult{
		Prompt: fmt.Sprintf("Provider %s authorized successfully", providerAddress),
		TxHash: tx.Hash().Hex(),
	}, nil
}

func (s *Service) connected() (contract.Records, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.handle == nil {
		return nil, errNotConnected
	}
	return s.handle, nil
}

// acquire admits one in-flight write per method.
func (s *Service) acquire(method string) (func(), error) {
	if _, busy := s.inflight.LoadOrStore(method, struct{}{}); busy {
		return nil, apperrors.Busy(method)
	}
	return func() { s.inflight.Delete(method) }, nil
}

func (s *Service) confirm(ctx context.Context, tx contract.Transaction) error {
	receipt, err := tx.Wait(ctx)
	s.recordTransaction(tx, receipt, err)
	return err
}

func (s *Service) recordTransaction(tx contract.Transaction, receipt *types.Receipt, err error) {
	if s.opts.Transactions == nil {
		return
	}

	entry := model.Transaction{
		Hash:      tx.Hash().Hex(),
		Method:    tx.Method(),
		Status:    model.TransactionConfirmed,
		UpdatedAt: time.Now().UTC(),
	}
	if receipt != nil {
		if receipt.BlockNumber != nil {
			entry.BlockNumber = receipt.BlockNumber.Uint64()
		}
		entry.GasUsed = receipt.GasUsed
	}
	if err != nil {
		entry.Status = model.TransactionFailed
		entry.Error = err.Error()
	}
	s.opts.Transactions.Record(entry)
}

func (s *Service) emit(ctx context.Context, eventType string, tx contract.Transaction, payload interface{}) {
	if s.opts.Events == nil {
		return
	}

	s.mu.RLock()
	account := s.account.Hex()
	s.mu.RUnlock()

	if err := s.opts.Events.Emit(ctx, eventType, tx.Hash().Hex(), account, payload); err != nil {
		s.opts.Logger.Error(err, "failed to emit event", "event_type", eventType)
	}
}
