package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/qrnglabs/qrng/admin/internal/admin"
	"github.com/qrnglabs/qrng/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	pgHostFlag := flag.String("pg-host", "localhost", "PostgreSQL host (or set POSTGRES_HOST env var)")
	pgPortFlag := flag.String("pg-port", "5432", "PostgreSQL port (or set POSTGRES_PORT env var)")
	pgDatabaseFlag := flag.String("pg-database", "", "PostgreSQL database name (or set POSTGRES_DB env var)")
	pgUsernameFlag := flag.String("pg-username", "", "PostgreSQL username (or set POSTGRES_USER env var)")
	pgPasswordFlag := flag.String("pg-password", "", "PostgreSQL password (or set POSTGRES_PASSWORD env var)")
	pgSSLModeFlag := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode (or set POSTGRES_SSLMODE env var)")

	// Commands
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run ledger database migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the last ledger database migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show ledger database migration status")
	resetDBFlag := flag.Bool("reset-db", false, "Drop all ledger tables (emissions, token_accounts, program_config)")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	seedAccountFlag := flag.Bool("seed-account", false, "Create a token account in the ledger")
	showConfigFlag := flag.Bool("show-config", false, "Print the persisted program config")
	showEmissionFlag := flag.String("show-emission", "", "Print the emission recorded for a transaction signature (base58)")

	// Seed account options
	accountAddressFlag := flag.String("account-address", "", "Token account address, base58 (empty generates a fresh one)")
	accountMintFlag := flag.String("account-mint", "", "Token account mint, base58")
	accountOwnerFlag := flag.String("account-owner", "", "Token account owner, base58")
	accountBalanceFlag := flag.Uint64("account-balance", 0, "Initial token account balance in base units")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override PostgreSQL flags with environment variables if set
	if env := os.Getenv("POSTGRES_HOST"); env != "" {
		*pgHostFlag = env
	}
	if env := os.Getenv("POSTGRES_PORT"); env != "" {
		*pgPortFlag = env
	}
	if env := os.Getenv("POSTGRES_DB"); env != "" {
		*pgDatabaseFlag = env
	}
	if env := os.Getenv("POSTGRES_USER"); env != "" {
		*pgUsernameFlag = env
	}
	if env := os.Getenv("POSTGRES_PASSWORD"); env != "" {
		*pgPasswordFlag = env
	}
	if env := os.Getenv("POSTGRES_SSLMODE"); env != "" {
		*pgSSLModeFlag = env
	}

	pgCfg := admin.PgConfig{
		Host:     *pgHostFlag,
		Port:     *pgPortFlag,
		Database: *pgDatabaseFlag,
		Username: *pgUsernameFlag,
		Password: *pgPasswordFlag,
		SSLMode:  *pgSSLModeFlag,
	}
	if pgCfg.Database == "" {
		return fmt.Errorf("--pg-database is required")
	}
	if pgCfg.Username == "" {
		return fmt.Errorf("--pg-username is required")
	}

	ctx := context.Background()

	// Execute commands
	if *pgMigrateFlag {
		return admin.PgMigrateUp(ctx, log, pgCfg)
	}

	if *pgMigrateDownFlag {
		return admin.PgMigrateDown(ctx, log, pgCfg)
	}

	if *pgMigrateStatusFlag {
		return admin.PgMigrateStatus(ctx, log, pgCfg)
	}

	if *resetDBFlag {
		return admin.ResetDB(ctx, log, pgCfg, *dryRunFlag, *yesFlag)
	}

	if *seedAccountFlag {
		if *accountMintFlag == "" {
			return fmt.Errorf("--account-mint is required for --seed-account")
		}
		if *accountOwnerFlag == "" {
			return fmt.Errorf("--account-owner is required for --seed-account")
		}
		return admin.SeedTokenAccount(ctx, log, pgCfg, admin.SeedTokenAccountConfig{
			Address: *accountAddressFlag,
			Mint:    *accountMintFlag,
			Owner:   *accountOwnerFlag,
			Balance: *accountBalanceFlag,
		})
	}

	if *showConfigFlag {
		return admin.ShowConfig(ctx, log, pgCfg)
	}

	if *showEmissionFlag != "" {
		return admin.ShowEmission(ctx, log, pgCfg, *showEmissionFlag)
	}

	return nil
}
