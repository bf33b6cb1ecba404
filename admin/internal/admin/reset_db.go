package admin

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
)

// ledgerTables are dropped youngest-dependency-first so foreign keys never
// block the reset.
var ledgerTables = []string{
	"emissions",
	"token_accounts",
	"program_config",
	"goose_db_version",
}

// ResetDB drops every ledger table, including goose's version table, so the
// next migration run starts from a clean slate.
func ResetDB(ctx context.Context, log *slog.Logger, cfg PgConfig, dryRun, skipConfirm bool) error {
	pool, err := ledger.NewPool(ctx, log, cfg.ConnStr())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	var existing []string
	for _, table := range ledgerTables {
		var found bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			table,
		).Scan(&found)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if found {
			existing = append(existing, table)
		}
	}

	if len(existing) == 0 {
		fmt.Println("No ledger tables found")
		return nil
	}

	fmt.Printf("⚠️  WARNING: This will DROP %d table(s) from database '%s':\n\n", len(existing), cfg.Database)
	for _, table := range existing {
		fmt.Printf("  - %s\n", table)
	}

	if dryRun {
		fmt.Println("\n[DRY RUN] Would drop the above tables")
		return nil
	}

	if !skipConfirm {
		fmt.Printf("\n⚠️  This is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Printf("Type 'yes' to confirm: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Printf("\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Println()
	}

	fmt.Println("Dropping tables...")
	for _, table := range existing {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		fmt.Printf("  ✓ Dropped %s\n", table)
	}

	fmt.Printf("\nSuccessfully dropped %d table(s)\n", len(existing))
	return nil
}
