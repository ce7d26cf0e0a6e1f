package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/export"
	"github.com/hetulpatel/crossarb/internal/gas"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/kalshi"
	"github.com/hetulpatel/crossarb/internal/llm"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/polymarket"
	"github.com/hetulpatel/crossarb/internal/queue"
	"github.com/hetulpatel/crossarb/internal/scanner"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
	"github.com/hetulpatel/crossarb/internal/validator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(os.Getenv("ARB_CONFIG"))
	if err != nil {
		logging.Fatalf("[arb-scanner] %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	kalshiClient := kalshi.NewClient(kalshi.Config{
		BaseURL: cfg.Kalshi.BaseURL,
		BookURL: cfg.Kalshi.BookURL,
		Timeout: cfg.Kalshi.Timeout.Duration,
	})
	polyClient := polymarket.NewClient(polymarket.Config{
		BaseURL: cfg.Polymarket.BaseURL,
		BookURL: cfg.Polymarket.BookURL,
		Timeout: cfg.Polymarket.Timeout.Duration,
	})

	var verdicts cache.VerdictCache
	var dedupe cache.OpportunityCache
	if cfg.Redis.Addr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		redisClient, err := cache.Connect(connectCtx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL.Duration,
		})
		cancel()
		if err != nil {
			logging.Errorf("[arb-scanner] redis unavailable, verdict cache and dedupe disabled: %v", err)
		} else {
			defer redisClient.Close()
			verdicts = redisClient.Verdicts("")
			dedupe = redisClient.Opportunities("")
		}
	}

	var verifier matcher.Verifier
	if cfg.LLM.Enabled {
		client, err := llm.New(llm.Config{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout.Duration,
			JSONMode: true,
		})
		if err != nil {
			logging.Fatalf("[arb-scanner] llm client: %v", err)
		}
		svc, err := validator.NewService(validator.Config{LLM: client})
		if err != nil {
			logging.Fatalf("[arb-scanner] validator: %v", err)
		}
		verifier = svc
		logging.Infof("[arb-scanner] resolution validator enabled (model=%s)", client.Model())
	}

	m, err := matcher.New(matcher.Config{
		ProvisionalThreshold: cfg.Matching.ProvisionalThreshold,
		AcceptThreshold:      cfg.Matching.AcceptThreshold,
		Prefilter:            cfg.Matching.Prefilter,
		Logger:               matcher.NewLogger(matcher.ParseLogMode(cfg.Matching.LogMode), cfg.Matching.LogPath),
		Verifier:             verifier,
		VerdictCache:         verdicts,
	})
	if err != nil {
		logging.Fatalf("[arb-scanner] matcher: %v", err)
	}

	oracle := gasOracle(ctx, cfg)

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[arb-scanner] open sqlite: %v", err)
	}
	defer store.Close()

	sinks := queue.Multi{store}
	if cfg.CSV.Path != "" {
		sinks = append(sinks, export.NewWriter(cfg.CSV.Path))
	}
	if cfg.Kafka.Brokers != "" {
		publisher, closeWriters := kafkaPublisher(ctx, cfg)
		defer closeWriters()
		sinks = append(sinks, queue.NewDeduper(publisher, dedupe))
	}

	reg := metrics.New()
	s, err := scanner.New(scanner.Deps{
		Config:    cfg,
		A:         scanner.Venue{Collector: kalshiClient, Books: kalshiClient},
		B:         scanner.Venue{Collector: polyClient, Books: polyClient},
		Matcher:   m,
		Gas:       oracle,
		Sink:      sinks,
		Contracts: store,
		Metrics:   reg,
	})
	if err != nil {
		logging.Fatalf("[arb-scanner] %v", err)
	}

	metrics.Serve(ctx, cfg.Metrics.Addr, reg.Registry, s.Status)

	logging.Infof("[arb-scanner] scanning every %s (budget=%d books/cycle, min profit=$%.2f)",
		cfg.Scan.Interval.Duration, cfg.Scan.OrderbookBudget, cfg.Arbitrage.MinProfitUSD)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatalf("[arb-scanner] %v", err)
	}
	logging.Infof("[arb-scanner] stopped")
}

func gasOracle(ctx context.Context, cfg *config.Config) gas.Oracle {
	fixed := gas.Fixed(cfg.Fees.PolymarketGasUSD)
	if cfg.Chain.RPCURL == "" {
		return fixed
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	oracle, err := gas.Dial(dialCtx, cfg.Chain.RPCURL, gas.ChainConfig{
		GasLimit:  cfg.Chain.GasLimit,
		NativeUSD: cfg.Chain.NativeUSD,
		MaxUSD:    cfg.Chain.MaxGasUSD,
		Fallback:  cfg.Fees.PolymarketGasUSD,
	})
	if err != nil {
		logging.Errorf("[arb-scanner] gas oracle unavailable, using $%.2f: %v", cfg.Fees.PolymarketGasUSD, err)
		return fixed
	}
	return oracle
}

func kafkaPublisher(ctx context.Context, cfg *config.Config) (*queue.Publisher, func()) {
	brokers := kafka.Brokers(cfg.Kafka.Brokers)
	oppTopic := kafka.Topic(cfg.Kafka.OpportunityTopic, kafka.DefaultOpportunityTopic)
	summaryTopic := kafka.Topic(cfg.Kafka.SummaryTopic, kafka.DefaultSummaryTopic)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Errorf("[arb-scanner] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopics(ensureCtx, brokers, oppTopic, summaryTopic); err != nil {
		logging.Errorf("[arb-scanner] ensure topics warning: %v", err)
	}
	cancelEnsure()

	oppWriter := kafka.NewWriter(brokers, oppTopic)
	summaryWriter := kafka.NewWriter(brokers, summaryTopic)
	closeWriters := func() {
		_ = oppWriter.Close()
		_ = summaryWriter.Close()
	}
	logging.Infof("[arb-scanner] publishing to %s and %s", oppTopic, summaryTopic)
	return queue.NewPublisher(oppWriter, summaryWriter), closeWriters
}
