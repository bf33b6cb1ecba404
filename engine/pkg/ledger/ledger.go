// Package ledger persists the program's singleton configuration, token
// account balances, and the emission record of every generation request.
// All payment effects flow through a unit-of-work (Tx) so that the debit,
// the credit, and the emission record commit or roll back together.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotInitialized     = errors.New("program config is not initialized")
	ErrAlreadyInitialized = errors.New("program config is already initialized")
	ErrAccountNotFound    = errors.New("token account not found")
	ErrAccountExists      = errors.New("token account already exists")
	ErrInsufficientFunds  = errors.New("insufficient token balance")
	ErrMintMismatch       = errors.New("token account mint mismatch")
	ErrDuplicateSignature = errors.New("transaction signature already processed")
)

// Config is the program's singleton configuration record. It is created
// once at program initialization and immutable thereafter.
type Config struct {
	TreasuryTokenAccount solana.PublicKey
	TokenMint            solana.PublicKey
	PricePerRequest      uint64
}

func (c *Config) Validate() error {
	if c.TreasuryTokenAccount.IsZero() {
		return errors.New("treasury token account is required")
	}
	if c.TokenMint.IsZero() {
		return errors.New("token mint is required")
	}
	if c.PricePerRequest == 0 {
		return errors.New("price per request must be greater than 0")
	}
	return nil
}

// MarshalBorsh serializes the config in the host platform's account wire
// format.
func (c Config) MarshalBorsh() ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// ConfigFromBorsh deserializes a config account payload.
func ConfigFromBorsh(data []byte) (Config, error) {
	var c Config
	if err := bin.NewBorshDecoder(data).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// TokenAccount is a fungible-token balance account.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Balance uint64
}

// Emission records the output of one successful generation request. The
// signature uniqueness constraint doubles as the replay guard: a request
// whose signature was already recorded fails atomically.
type Emission struct {
	Signature  solana.Signature
	Tag        uint8
	Requester  solana.PublicKey
	Slot       uint64
	ReturnData []byte
	CreatedAt  time.Time
}

// Tx is the unit-of-work covering one generation request. Nothing staged
// through a Tx is observable until the enclosing Transact call returns nil.
type Tx interface {
	// Transfer moves amount base units from one token account to another.
	// Both accounts must exist and carry the given mint, and the source
	// balance must cover the amount.
	Transfer(ctx context.Context, from, to, mint solana.PublicKey, amount uint64) error

	// RecordEmission stores the emission record, failing with
	// ErrDuplicateSignature if the transaction signature was seen before.
	RecordEmission(ctx context.Context, e Emission) error
}

// Store persists program state. Implementations must make Transact atomic:
// either every staged write commits or none do.
type Store interface {
	// GetConfig returns the singleton config, or ErrNotInitialized.
	GetConfig(ctx context.Context) (*Config, error)

	// InitializeConfig creates the singleton config exactly once. A second
	// call fails with ErrAlreadyInitialized and leaves the existing config
	// untouched.
	InitializeConfig(ctx context.Context, cfg Config) error

	// GetTokenAccount returns the account, or ErrAccountNotFound.
	GetTokenAccount(ctx context.Context, address solana.PublicKey) (*TokenAccount, error)

	// CreateTokenAccount creates a token account, failing with
	// ErrAccountExists if the address is taken.
	CreateTokenAccount(ctx context.Context, account TokenAccount) error

	// GetEmission returns the emission recorded for a signature, or
	// ErrEmissionNotFound.
	GetEmission(ctx context.Context, signature solana.Signature) (*Emission, error)

	// Transact runs fn inside a unit-of-work.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ErrEmissionNotFound is returned by GetEmission for unknown signatures.
var ErrEmissionNotFound = errors.New("emission not found")
