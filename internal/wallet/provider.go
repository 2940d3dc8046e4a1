package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrNoProvider is returned when no signing key or RPC endpoint is configured.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrUnknownAccount is returned when a signer is requested for an account the wallet does not hold.
	ErrUnknownAccount = errors.New("account not managed by this wallet")
)

// Backend is the connection handle contract bindings talk through.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Provider is the wallet capability injected into a session.
type Provider interface {
	// RequestAccounts asks the wallet for account access and returns the granted accounts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Signer returns transaction options that sign as account.
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
	// Backend is nil until RequestAccounts succeeded.
	Backend() Backend
	Close()
}

type Config struct {
	RPCURL             string
	PrivateKey         string
	KeystoreFile       string
	KeystorePassphrase string
	ChainID            int64
}

// KeyProvider signs with a single secp256k1 key against a JSON-RPC node.
type KeyProvider struct {
	cfg Config
	key *ecdsa.PrivateKey

	mu      sync.Mutex
	client  *ethclient.Client
	chainID *big.Int
}

// NewProvider loads the configured key. It does not contact the node.
func NewProvider(cfg Config) (*KeyProvider, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("%w: rpc url is not set", ErrNoProvider)
	}

	key, err := LoadKey(cfg)
	if err != nil {
		return nil, err
	}

	return &KeyProvider{cfg: cfg, key: key}, nil
}

// LoadKey reads the signing key from a hex string or an encrypted keystore file.
func LoadKey(cfg Config) (*ecdsa.PrivateKey, error) {
	switch {
	case strings.TrimSpace(cfg.PrivateKey) != "":
		hexKey := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key, nil
	case cfg.KeystoreFile != "":
		keyJSON, err := os.ReadFile(cfg.KeystoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(keyJSON, cfg.KeystorePassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	default:
		return nil, fmt.Errorf("%w: no private key or keystore configured", ErrNoProvider)
	}
}

// Address is the account the key signs for.
func (p *KeyProvider) Address() common.Address {
	return crypto.PubkeyToAddress(p.key.PublicKey)
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		client, err := ethclient.DialContext(ctx, p.cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", p.cfg.RPCURL, err)
		}

		chainID := big.NewInt(p.cfg.ChainID)
		if p.cfg.ChainID == 0 {
			chainID, err = client.ChainID(ctx)
			if err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to read chain id: %w", err)
			}
		}

		p.client = client
		p.chainID = chainID
	}

	return []common.Address{p.Address()}, nil
}

func (p *KeyProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	chainID := p.chainID
	p.mu.Unlock()

	if chainID == nil {
		return nil, errors.New("wallet not connected")
	}
	if account != p.Address() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}

	opts, err := bind.NewKeyedTransactorWithChainID(p.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build signer: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (p *KeyProvider) Backend() Backend {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	return p.client
}

func (p *KeyProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
