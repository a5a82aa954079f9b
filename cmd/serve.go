package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/db"
	httpSrv "github.com/jmehdipour/imei-gateway/internal/http"
	"github.com/jmehdipour/imei-gateway/internal/kafka"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/lookup"
	"github.com/jmehdipour/imei-gateway/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer logger.Sync()
		log := logger.L()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, closer, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		var opts []lookup.Option
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			defer func() { _ = producer.Close() }()
			opts = append(opts, lookup.WithPublisher(producer))
		}

		var reports repository.CHLookupsRepository
		if cfg.ClickHouse.DSN != "" {
			var chDB *sqlx.DB
			chDB, err = db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()
			reports = repository.NewCHLookupsRepository(chDB)
		}

		server := httpSrv.NewServer(cfg, newOrchestrator(cfg, st, opts...), reports)

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting http", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Backend))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down...")
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
