package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *PostgresStoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	return nil
}

// PostgresStore is the durable Store. Transact maps the unit-of-work onto
// a single database transaction, so the payment transfer and the emission
// record commit or roll back together.
type PostgresStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg PostgresStoreConfig) (*PostgresStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PostgresStore{
		log:  cfg.Logger,
		pool: cfg.Pool,
	}, nil
}

func (s *PostgresStore) GetConfig(ctx context.Context) (*Config, error) {
	var accountData []byte
	err := s.pool.QueryRow(ctx,
		`SELECT account_data FROM program_config WHERE id`,
	).Scan(&accountData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	cfg, err := ConfigFromBorsh(accountData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config account data: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) InitializeConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	accountData, err := cfg.MarshalBorsh()
	if err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO program_config (id, account_data)
		 VALUES (TRUE, $1)
		 ON CONFLICT (id) DO NOTHING`,
		accountData)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	s.log.Debug("ledger/postgres: config initialized",
		"treasury", cfg.TreasuryTokenAccount.String(),
		"mint", cfg.TokenMint.String(),
		"price", cfg.PricePerRequest)
	return nil
}

func (s *PostgresStore) GetTokenAccount(ctx context.Context, address solana.PublicKey) (*TokenAccount, error) {
	var (
		mint    string
		owner   string
		balance int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT mint, owner_address, balance FROM token_accounts WHERE address = $1`,
		address.String(),
	).Scan(&mint, &owner, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token account: %w", err)
	}

	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mint: %w", err)
	}
	ownerPk, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner: %w", err)
	}

	return &TokenAccount{
		Address: address,
		Mint:    mintPk,
		Owner:   ownerPk,
		Balance: uint64(balance),
	}, nil
}

func (s *PostgresStore) CreateTokenAccount(ctx context.Context, account TokenAccount) error {
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO token_accounts (address, mint, owner_address, balance)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO NOTHING`,
		account.Address.String(), account.Mint.String(), account.Owner.String(), int64(account.Balance))
	if err != nil {
		return fmt.Errorf("failed to insert token account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

func (s *PostgresStore) GetEmission(ctx context.Context, signature solana.Signature) (*Emission, error) {
	e := Emission{Signature: signature}
	var requester string
	var slot int64
	var tag int16
	err := s.pool.QueryRow(ctx,
		`SELECT instruction_tag, requester, slot, return_data, created_at FROM emissions WHERE signature = $1`,
		signature.String(),
	).Scan(&tag, &requester, &slot, &e.ReturnData, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query emission: %w", err)
	}

	requesterPk, err := solana.PublicKeyFromBase58(requester)
	if err != nil {
		return nil, fmt.Errorf("failed to parse requester: %w", err)
	}
	e.Tag = uint8(tag)
	e.Requester = requesterPk
	e.Slot = uint64(slot)
	return &e, nil
}

func (s *PostgresStore) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(ctx, &postgresTx{tx: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Transfer(ctx context.Context, from, to, mint solana.PublicKey, amount uint64) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE token_accounts SET balance = balance - $1, updated_at = now()
		 WHERE address = $2 AND mint = $3 AND balance >= $1`,
		int64(amount), from.String(), mint.String())
	if err != nil {
		return fmt.Errorf("failed to debit source account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return t.classifyFailure(ctx, from, mint, amount)
	}

	ct, err = t.tx.Exec(ctx,
		`UPDATE token_accounts SET balance = balance + $1, updated_at = now()
		 WHERE address = $2 AND mint = $3`,
		int64(amount), to.String(), mint.String())
	if err != nil {
		return fmt.Errorf("failed to credit destination account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return t.classifyFailure(ctx, to, mint, 0)
	}

	return nil
}

// classifyFailure distinguishes why a guarded UPDATE matched no row.
func (t *postgresTx) classifyFailure(ctx context.Context, address, mint solana.PublicKey, amount uint64) error {
	var gotMint string
	var balance int64
	err := t.tx.QueryRow(ctx,
		`SELECT mint, balance FROM token_accounts WHERE address = $1`,
		address.String(),
	).Scan(&gotMint, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect token account: %w", err)
	}
	if gotMint != mint.String() {
		return ErrMintMismatch
	}
	if uint64(balance) < amount {
		return ErrInsufficientFunds
	}
	return fmt.Errorf("transfer on %s failed for an unknown reason", address.String())
}

func (t *postgresTx) RecordEmission(ctx context.Context, e Emission) error {
	ct, err := t.tx.Exec(ctx,
		`INSERT INTO emissions (signature, instruction_tag, requester, slot, return_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (signature) DO NOTHING`,
		e.Signature.String(), int16(e.Tag), e.Requester.String(), int64(e.Slot), e.ReturnData, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert emission: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDuplicateSignature
	}
	return nil
}
