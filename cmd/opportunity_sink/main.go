package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/export"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
	"github.com/hetulpatel/crossarb/internal/workers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(os.Getenv("ARB_CONFIG"))
	if err != nil {
		logging.Fatalf("[opportunity-sink] %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	brokers := kafka.Brokers(cfg.Kafka.Brokers)
	topic := kafka.Topic(cfg.Kafka.OpportunityTopic, kafka.DefaultOpportunityTopic)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[opportunity-sink] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopics(ensureCtx, brokers, topic); err != nil {
		logging.Errorf("[opportunity-sink] ensure topic warning: %v", err)
	}
	cancelEnsure()

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[opportunity-sink] open sqlite: %v", err)
	}
	defer store.Close()

	var csvWriter *export.Writer
	if cfg.CSV.Path != "" {
		csvWriter = export.NewWriter(cfg.CSV.Path)
	}

	logging.Infof("[opportunity-sink] consuming %s with group %s (%d workers)", topic, cfg.Kafka.Group, cfg.Kafka.Workers)
	workers.Run(ctx, brokers, topic, cfg.Kafka.Group, workers.Options{
		Workers: cfg.Kafka.Workers,
		MaxAge:  cfg.Kafka.MaxAge.Duration,
	}, func(ctx context.Context, opp *matches.Opportunity) error {
		logging.Infof("[opportunity-sink] pair=%s %s profit=$%.2f size=$%.0f rec=%s",
			opp.PairID, opp.Strategy, opp.GuaranteedProfit, opp.TradeSizeUSD, opp.Recommendation)
		var errs []error
		if err := store.InsertOpportunity(ctx, opp); err != nil {
			errs = append(errs, err)
		}
		if csvWriter != nil {
			if err := csvWriter.Append(opp); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
