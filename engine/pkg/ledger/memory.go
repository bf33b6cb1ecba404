package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type MemoryStoreConfig struct {
	Logger *slog.Logger
}

func (cfg *MemoryStoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// MemoryStore is an in-memory Store, used by the local harness and tests.
// Transact stages writes against a shadow of the balances and applies them
// only on commit, so a failing unit-of-work leaves no observable effect.
type MemoryStore struct {
	log *slog.Logger

	mu        sync.Mutex
	config    *Config
	accounts  map[solana.PublicKey]*TokenAccount
	emissions map[solana.Signature]*Emission
}

func NewMemoryStore(cfg MemoryStoreConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{
		log:       cfg.Logger,
		accounts:  make(map[solana.PublicKey]*TokenAccount),
		emissions: make(map[solana.Signature]*Emission),
	}, nil
}

func (s *MemoryStore) GetConfig(ctx context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, ErrNotInitialized
	}
	cfg := *s.config
	return &cfg, nil
}

func (s *MemoryStore) InitializeConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config != nil {
		return ErrAlreadyInitialized
	}
	s.config = &cfg
	s.log.Debug("ledger/memory: config initialized",
		"treasury", cfg.TreasuryTokenAccount.String(),
		"mint", cfg.TokenMint.String(),
		"price", cfg.PricePerRequest)
	return nil
}

func (s *MemoryStore) GetTokenAccount(ctx context.Context, address solana.PublicKey) (*TokenAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[address]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *MemoryStore) CreateTokenAccount(ctx context.Context, account TokenAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Address]; ok {
		return ErrAccountExists
	}
	copied := account
	s.accounts[account.Address] = &copied
	return nil
}

func (s *MemoryStore) GetEmission(ctx context.Context, signature solana.Signature) (*Emission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emissions[signature]
	if !ok {
		return nil, ErrEmissionNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		balances: make(map[solana.PublicKey]uint64),
		staged:   make(map[solana.Signature]*Emission),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// Commit staged writes.
	for address, balance := range tx.balances {
		s.accounts[address].Balance = balance
	}
	for signature, e := range tx.staged {
		s.emissions[signature] = e
	}
	return nil
}

// memoryTx stages balance updates and emission records against the store.
// The store mutex is held for the lifetime of the transaction.
type memoryTx struct {
	store    *MemoryStore
	balances map[solana.PublicKey]uint64
	staged   map[solana.Signature]*Emission
}

func (tx *memoryTx) balanceOf(account *TokenAccount) uint64 {
	if staged, ok := tx.balances[account.Address]; ok {
		return staged
	}
	return account.Balance
}

func (tx *memoryTx) Transfer(ctx context.Context, from, to, mint solana.PublicKey, amount uint64) error {
	source, ok := tx.store.accounts[from]
	if !ok {
		return ErrAccountNotFound
	}
	dest, ok := tx.store.accounts[to]
	if !ok {
		return ErrAccountNotFound
	}
	if source.Mint != mint || dest.Mint != mint {
		return ErrMintMismatch
	}

	sourceBalance := tx.balanceOf(source)
	if sourceBalance < amount {
		return ErrInsufficientFunds
	}

	tx.balances[from] = sourceBalance - amount
	tx.balances[to] = tx.balanceOf(dest) + amount
	return nil
}

func (tx *memoryTx) RecordEmission(ctx context.Context, e Emission) error {
	if _, ok := tx.store.emissions[e.Signature]; ok {
		return ErrDuplicateSignature
	}
	if _, ok := tx.staged[e.Signature]; ok {
		return ErrDuplicateSignature
	}
	copied := e
	copied.ReturnData = append([]byte(nil), e.ReturnData...)
	tx.staged[e.Signature] = &copied
	return nil
}
