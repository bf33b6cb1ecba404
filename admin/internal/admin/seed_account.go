package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
)

// SeedTokenAccountConfig describes the token account to create.
type SeedTokenAccountConfig struct {
	Address string
	Mint    string
	Owner   string
	Balance uint64
}

// SeedTokenAccount creates a token account row in the ledger, minting the
// given balance out of thin air. Operators use it to fund requesters and to
// create the treasury account before initialization.
func SeedTokenAccount(ctx context.Context, log *slog.Logger, pgCfg PgConfig, cfg SeedTokenAccountConfig) error {
	mint, err := solana.PublicKeyFromBase58(cfg.Mint)
	if err != nil {
		return fmt.Errorf("invalid mint: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(cfg.Owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	var address solana.PublicKey
	if cfg.Address != "" {
		address, err = solana.PublicKeyFromBase58(cfg.Address)
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
	} else {
		address = solana.NewWallet().PublicKey()
	}

	pool, err := ledger.NewPool(ctx, log, pgCfg.ConnStr())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	store, err := ledger.NewPostgresStore(ledger.PostgresStoreConfig{
		Logger: log,
		Pool:   pool,
	})
	if err != nil {
		return err
	}

	if err := store.CreateTokenAccount(ctx, ledger.TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
		Balance: cfg.Balance,
	}); err != nil {
		return fmt.Errorf("failed to create token account: %w", err)
	}

	fmt.Printf("Created token account %s (mint=%s owner=%s balance=%d)\n",
		address.String(), mint.String(), owner.String(), cfg.Balance)
	return nil
}
