package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/metrics"
	"github.com/qrnglabs/qrng/engine/pkg/program"
	"github.com/qrnglabs/qrng/engine/pkg/server"
	"github.com/qrnglabs/qrng/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address to listen on for HTTP (or set QRNG_LISTEN_ADDR env var)")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")

	// Program configuration
	programIDFlag := flag.String("program-id", "", "Program ID, base58 (or set QRNG_PROGRAM_ID env var)")
	treasuryFlag := flag.String("treasury-token-account", "", "Treasury token account persisted by initialization, base58 (or set QRNG_TREASURY_TOKEN_ACCOUNT env var)")
	mintFlag := flag.String("token-mint", "", "Payment token mint persisted by initialization, base58 (or set QRNG_TOKEN_MINT env var)")
	priceFlag := flag.Uint64("price", program.DefaultPricePerRequest, "Price per request in base units (or set QRNG_PRICE env var)")

	// Ledger storage
	postgresDSNFlag := flag.String("postgres-dsn", "", "PostgreSQL DSN for the request ledger; empty uses the in-memory store (or set QRNG_POSTGRES_DSN env var)")
	migrateFlag := flag.Bool("migrate", false, "Run ledger database migrations on startup")

	flag.Parse()

	// Optional .env for local development.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if env := os.Getenv("QRNG_LISTEN_ADDR"); env != "" {
		*listenAddrFlag = env
	}
	if env := os.Getenv("QRNG_PROGRAM_ID"); env != "" {
		*programIDFlag = env
	}
	if env := os.Getenv("QRNG_TREASURY_TOKEN_ACCOUNT"); env != "" {
		*treasuryFlag = env
	}
	if env := os.Getenv("QRNG_TOKEN_MINT"); env != "" {
		*mintFlag = env
	}
	if env := os.Getenv("QRNG_PRICE"); env != "" {
		price, err := strconv.ParseUint(env, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid QRNG_PRICE: %w", err)
		}
		*priceFlag = price
	}
	if env := os.Getenv("QRNG_POSTGRES_DSN"); env != "" {
		*postgresDSNFlag = env
	}

	if *programIDFlag == "" {
		return fmt.Errorf("--program-id is required")
	}
	programID, err := solana.PublicKeyFromBase58(*programIDFlag)
	if err != nil {
		return fmt.Errorf("invalid --program-id: %w", err)
	}
	if *treasuryFlag == "" {
		return fmt.Errorf("--treasury-token-account is required")
	}
	treasury, err := solana.PublicKeyFromBase58(*treasuryFlag)
	if err != nil {
		return fmt.Errorf("invalid --treasury-token-account: %w", err)
	}
	if *mintFlag == "" {
		return fmt.Errorf("--token-mint is required")
	}
	mint, err := solana.PublicKeyFromBase58(*mintFlag)
	if err != nil {
		return fmt.Errorf("invalid --token-mint: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store ledger.Store
	if *postgresDSNFlag != "" {
		if *migrateFlag {
			if err := ledger.RunMigrations(ctx, log, *postgresDSNFlag); err != nil {
				return fmt.Errorf("failed to run ledger migrations: %w", err)
			}
		}
		pool, err := ledger.NewPool(ctx, log, *postgresDSNFlag)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		store, err = ledger.NewPostgresStore(ledger.PostgresStoreConfig{
			Logger: log,
			Pool:   pool,
		})
		if err != nil {
			return err
		}
		log.Info("qrngd: using postgres ledger store")
	} else {
		store, err = ledger.NewMemoryStore(ledger.MemoryStoreConfig{Logger: log})
		if err != nil {
			return err
		}
		log.Warn("qrngd: using in-memory ledger store, state will not survive restarts")
	}

	dispatcher, err := program.NewDispatcher(program.DispatcherConfig{
		Logger:    log,
		ProgramID: programID,
		Store:     store,
		InitConfig: ledger.Config{
			TreasuryTokenAccount: treasury,
			TokenMint:            mint,
			PricePerRequest:      *priceFlag,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		Dispatcher: dispatcher,
		Store:      store,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	log.Info("qrngd: starting",
		"version", version,
		"program_id", programID.String(),
		"config_address", dispatcher.ConfigAddress().String(),
		"listen_addr", *listenAddrFlag)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	return g.Wait()
}
