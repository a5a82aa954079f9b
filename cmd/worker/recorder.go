package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/db"
	"github.com/jmehdipour/imei-gateway/internal/kafka"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/repository"
	"github.com/jmehdipour/imei-gateway/internal/worker"
)

var recorderCmd = &cobra.Command{
	Use:   "recorder",
	Short: "Copy lookup events from Kafka into MySQL (and ClickHouse when configured)",
	RunE:  runRecorder,
}

func runRecorder(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	defer logger.Sync()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}

	// 2) DB connection (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	sinks := []worker.Sink{repository.NewLookupsRepository(dbx)}
	if cfg.ClickHouse.DSN != "" {
		chx, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chx.Close()
		sinks = append(sinks, repository.NewCHLookupsRepository(chx))
	}

	// 3) kafka consumer
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "imeigw-recorder"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewRecorder(consumer, sinks...)

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L().Info(">> recorder started",
		zap.String("topic", cfg.Kafka.Topic), zap.String("group", groupID), zap.Int("sinks", len(sinks)))

	return w.Run(ctx)
}
