package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/db"
	"github.com/jmehdipour/imei-gateway/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the lookup history tables (MySQL, and ClickHouse when configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		defer mysqlDB.Close()

		if err := apply(cmd.Context(), mysqlDB, "mysql"); err != nil {
			return err
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("open clickhouse: %w", err)
			}
			defer chDB.Close()

			if err := apply(cmd.Context(), chDB, "clickhouse"); err != nil {
				return err
			}
		}

		fmt.Println(">> Migration complete ✅")
		return nil
	},
}

func apply(ctx context.Context, conn *sqlx.DB, dialect string) error {
	stmts, err := migrations.Statements(dialect)
	if err != nil {
		return fmt.Errorf("read %s migrations: %w", dialect, err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	for i, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %s migration #%d: %w", dialect, i+1, err)
		}
	}
	return nil
}
