package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/platform/database"
)

// MigrateUpAction はスキーマのマイグレーションを適用する
func MigrateUpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, appLogger, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	dsn := cfg.Database.DSN()
	if err := database.Migrate(ctx, dsn); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	version, err := database.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	appLogger.Info("マイグレーションが完了しました", "version", version)
	fmt.Fprintf(cmd.Root().Writer, "schema version: %d\n", version)
	return nil
}
