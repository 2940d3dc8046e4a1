package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/healthcare-records/internal/config"
	"github.com/jwalitptl/healthcare-records/internal/contract"
	"github.com/jwalitptl/healthcare-records/internal/service/event"
	"github.com/jwalitptl/healthcare-records/internal/service/session"
	"github.com/jwalitptl/healthcare-records/internal/service/transaction"
	"github.com/jwalitptl/healthcare-records/internal/wallet"
	"github.com/jwalitptl/healthcare-records/pkg/logger"
	"github.com/jwalitptl/healthcare-records/pkg/messaging"
	"github.com/jwalitptl/healthcare-records/pkg/messaging/redis"
	"github.com/jwalitptl/healthcare-records/pkg/metrics"
	"github.com/jwalitptl/healthcare-records/pkg/worker"
)

// app is the wired object graph shared by the server and the one-shot commands.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	provider     wallet.Provider
	broker       messaging.Broker
	publisher    *worker.Publisher
	transactions *transaction.Service
	session      *session.Service
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
		JSON:       cfg.Log.JSON,
	})
	return cfg, log, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("healthcare", registry)

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  m,
	}

	// A missing wallet is not fatal: the session reports it on Connect.
	kp, err := wallet.NewProvider(wallet.Config{
		RPCURL:             cfg.Wallet.RPCURL,
		PrivateKey:         cfg.Wallet.PrivateKey,
		KeystoreFile:       cfg.Wallet.KeystoreFile,
		KeystorePassphrase: cfg.Wallet.KeystorePassphrase,
		ChainID:            cfg.Wallet.ChainID,
	})
	switch {
	case err == nil:
		a.provider = kp
	case errors.Is(err, wallet.ErrNoProvider):
		log.Warn("No wallet provider configured", "reason", err.Error())
	default:
		return nil, err
	}

	binder, err := contract.NewBinder(contract.Options{
		GasLimit:       cfg.Contract.GasLimit,
		CallTimeout:    cfg.Contract.CallTimeout,
		ConfirmTimeout: cfg.Contract.ConfirmTimeout,
	}, m)
	if err != nil {
		return nil, err
	}

	if a.broker, err = newBroker(cfg, log); err != nil {
		return nil, err
	}

	a.publisher = worker.NewPublisher(a.broker, worker.PublisherConfig{
		QueueSize:      cfg.Events.QueueSize,
		PublishTimeout: cfg.Events.PublishTimeout,
		DrainTimeout:   cfg.Events.PublishTimeout,
	}, log, m)

	a.transactions = transaction.NewService(transaction.Config{
		TTL:             cfg.Transactions.TTL,
		CleanupInterval: cfg.Transactions.CleanupInterval,
	})

	a.session = session.New(a.provider, binder, session.Options{
		ContractAddress: common.HexToAddress(cfg.Contract.Address),
		PlaceholderName: cfg.Contract.PlaceholderPatientName,
		Logger:          log,
		Metrics:         m,
		Events:          event.NewService(a.publisher),
		Transactions:    a.transactions,
	})

	return a, nil
}

func newBroker(cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	if cfg.Redis.URL == "" {
		return messaging.NewLogBroker(log.Zerolog()), nil
	}
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:              cfg.Redis.URL,
		MaxRetries:       cfg.Redis.MaxRetries,
		RetryBackoff:     100 * time.Millisecond,
		PoolSize:         cfg.Redis.PoolSize,
		FailureThreshold: cfg.Redis.FailureThreshold,
		OpenTimeout:      cfg.Redis.OpenTimeout,
	}, log.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return broker, nil
}

// startPublisher runs the publisher until the returned stop func is called.
// stop waits for queued events to drain.
func (a *app) startPublisher() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.publisher.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *app) Close() {
	if a.provider != nil {
		a.provider.Close()
	}
	if err := a.broker.Close(); err != nil {
		a.log.Error(err, "Failed to close broker")
	}
}
