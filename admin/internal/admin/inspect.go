package admin

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
)

// ShowConfig prints the persisted program config.
func ShowConfig(ctx context.Context, log *slog.Logger, pgCfg PgConfig) error {
	store, closePool, err := openStore(ctx, log, pgCfg)
	if err != nil {
		return err
	}
	defer closePool()

	cfg, err := store.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	fmt.Printf("Treasury token account: %s\n", cfg.TreasuryTokenAccount.String())
	fmt.Printf("Token mint:             %s\n", cfg.TokenMint.String())
	fmt.Printf("Price per request:      %d\n", cfg.PricePerRequest)
	return nil
}

// ShowEmission prints the emission recorded for a transaction signature.
func ShowEmission(ctx context.Context, log *slog.Logger, pgCfg PgConfig, signature string) error {
	raw, err := base58.Decode(signature)
	if err != nil || len(raw) != 64 {
		return fmt.Errorf("invalid signature: %s", signature)
	}
	sig := solana.SignatureFromBytes(raw)

	store, closePool, err := openStore(ctx, log, pgCfg)
	if err != nil {
		return err
	}
	defer closePool()

	emission, err := store.GetEmission(ctx, sig)
	if err != nil {
		return fmt.Errorf("failed to get emission: %w", err)
	}

	fmt.Printf("Signature:   %s\n", sig.String())
	fmt.Printf("Tag:         %d\n", emission.Tag)
	fmt.Printf("Requester:   %s\n", emission.Requester.String())
	fmt.Printf("Slot:        %d\n", emission.Slot)
	fmt.Printf("Return data: %s\n", hex.EncodeToString(emission.ReturnData))
	fmt.Printf("Created at:  %s\n", emission.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

func openStore(ctx context.Context, log *slog.Logger, pgCfg PgConfig) (*ledger.PostgresStore, func(), error) {
	pool, err := ledger.NewPool(ctx, log, pgCfg.ConnStr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store, err := ledger.NewPostgresStore(ledger.PostgresStoreConfig{
		Logger: log,
		Pool:   pool,
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
