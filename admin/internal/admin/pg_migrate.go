package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
)

// PgConfig holds the PostgreSQL connection parameters for admin commands.
type PgConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// ConnStr assembles the postgres DSN from the individual parameters.
func (cfg PgConfig) ConnStr() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)
}

// PgMigrateUp runs all pending ledger migrations.
func PgMigrateUp(ctx context.Context, log *slog.Logger, cfg PgConfig) error {
	log.Info("admin: running ledger migrations (up)")
	return ledger.RunMigrations(ctx, log, cfg.ConnStr())
}

// PgMigrateDown rolls back the last ledger migration.
func PgMigrateDown(ctx context.Context, log *slog.Logger, cfg PgConfig) error {
	log.Info("admin: rolling back ledger migration (down)")
	return ledger.RollbackMigration(ctx, log, cfg.ConnStr())
}

// PgMigrateStatus shows the status of all ledger migrations.
func PgMigrateStatus(ctx context.Context, log *slog.Logger, cfg PgConfig) error {
	return ledger.MigrationStatus(ctx, log, cfg.ConnStr())
}
