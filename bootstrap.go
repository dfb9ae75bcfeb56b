package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/config"
	"equities-trading-bot/internal/ai/llm"
	"equities-trading-bot/internal/ai/sentiment"
	"equities-trading-bot/internal/api"
	"equities-trading-bot/internal/auth"
	"equities-trading-bot/internal/autopilot"
	"equities-trading-bot/internal/broker"
	"equities-trading-bot/internal/cache"
	"equities-trading-bot/internal/circuit"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/events"
	"equities-trading-bot/internal/metrics"
	"equities-trading-bot/internal/monitor"
	"equities-trading-bot/internal/notification"
	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/risk"
	"equities-trading-bot/internal/scanner"
	"equities-trading-bot/internal/signal"
	"equities-trading-bot/internal/state"
	"equities-trading-bot/internal/strategy"
	"equities-trading-bot/internal/vault"
)

// errMissingCredentials is returned when live mode has no broker keys
var errMissingCredentials = errors.New("alpaca api_key and secret_key are required when mock_mode is off")

// app holds every wired component
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	bus      *events.EventBus
	metrics  *metrics.Recorder
	notifier *notification.Manager
	breaker  *circuit.CircuitBreaker
	workflow *autopilot.Workflow
	runner   *autopilot.Runner
	auth     *auth.Service
	closers  []func()
}

// loadSecrets overlays Vault secrets onto cfg when Vault is enabled
func loadSecrets(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	client, err := vault.NewClient(cfg.Vault)
	if err != nil {
		return err
	}
	applied, err := client.LoadInto(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load vault secrets: %w", err)
	}
	logger.Info().Int("secrets", applied).Str("path", cfg.Vault.SecretPath).Msg("Loaded secrets from Vault")
	return nil
}

// newGateway returns the mock broker or the Alpaca client
func newGateway(cfg *config.Config, logger zerolog.Logger) (broker.Gateway, broker.NewsSource, error) {
	if cfg.Broker.MockMode {
		logger.Warn().Msg("Mock mode: orders fill against an in-memory broker")
		gw := broker.NewMockGateway(broker.MockOptions{
			StartingCash: cfg.Broker.MockStartingCash,
			Synthetic:    true,
		})
		return gw, gw, nil
	}
	if cfg.Broker.APIKey == "" || cfg.Broker.SecretKey == "" {
		return nil, nil, errMissingCredentials
	}
	client := broker.NewAlpacaClient(broker.AlpacaOptions{
		APIKey:         cfg.Broker.APIKey,
		SecretKey:      cfg.Broker.SecretKey,
		TradingURL:     cfg.Broker.TradingURL,
		DataURL:        cfg.Broker.DataURL,
		Feed:           cfg.Broker.Feed,
		RequestsPerSec: cfg.Broker.RequestsPerSecond,
		Timeout:        cfg.Broker.Timeout,
	}, logger)
	return client, client, nil
}

// persistence bundles the storage-backed collaborators
type persistence struct {
	store    state.Store
	trades   order.TradeLog
	sequence order.Sequencer
	recorder autopilot.Recorder
}

// newPersistence prefers PostgreSQL, layers Redis over whichever durable
// store is in use, and falls back to memory
func (a *app) newPersistence(ctx context.Context) (*persistence, error) {
	p := &persistence{
		store:  state.NewMemoryStore(),
		trades: order.NewMemoryTradeLog(),
	}

	if a.cfg.Database.Enabled {
		db, err := database.NewDB(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		p.store = database.NewSettingsStore(db)
		p.trades = database.NewTradeRepository(db)
		p.sequence = database.NewSequenceRepository(db)
		p.recorder = database.NewAnalysisRepository(db)
	} else {
		a.logger.Warn().Msg("Database disabled: state and trade log are in memory only")
	}

	if a.cfg.Redis.Enabled {
		cs, err := cache.NewCacheService(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { cs.Close() })
		redisStore := cache.NewRedisStateStore(cs, p.store, p.sequence, a.logger)
		p.store = redisStore
		p.sequence = redisStore
	}
	return p, nil
}

func (a *app) newNotifier() *notification.Manager {
	n := a.cfg.Notification
	m := notification.NewManager(a.logger)
	if !n.Enabled {
		return m
	}
	if n.Telegram.Enabled {
		m.AddNotifier(notification.NewTelegramNotifier(n.Telegram))
	}
	if n.Discord.Enabled {
		m.AddNotifier(notification.NewDiscordNotifier(n.Discord))
	}
	if n.Kafka.Enabled {
		k := notification.NewKafkaNotifier(n.Kafka)
		m.AddNotifier(k)
		a.closers = append(a.closers, func() { k.Close() })
	}
	a.logger.Info().Strs("notifiers", m.Enabled()).Msg("Notifications configured")
	return m
}

func riskConfig(cfg *config.Config) risk.Config {
	return risk.Config{
		MaxPositionSize:         cfg.Risk.MaxPositionSize,
		MaxOpenPositions:        cfg.Risk.MaxOpenPositions,
		OptionsMaxPremium:       cfg.Options.MaxPremium,
		OptionsMaxSinglePremium: cfg.Options.MaxSinglePremium,
		OptionsMaxContracts:     cfg.Options.MaxContracts,
		OptionsMinDTE:           cfg.Options.MinDTE,
		OptionsMaxDTE:           cfg.Options.MaxDTE,
	}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		StopLossPercent:           cfg.Risk.StopLossPercent,
		TakeProfitPercent:         cfg.Risk.TakeProfitPercent,
		TrailingEnabled:           cfg.Risk.TrailingEnabled,
		TrailingStopPercent:       cfg.Risk.TrailingStopPercent,
		TrailingActivationPercent: cfg.Risk.TrailingActivationPercent,
		ExpirationCloseDTE:        cfg.Options.ExpirationCloseDTE,
		PriceMovePercent:          cfg.Risk.PriceMovePercent,
	}
}

func workflowConfig(cfg *config.Config) autopilot.Config {
	return autopilot.Config{
		AutoTradingEnabled: cfg.Trading.AutoTradingEnabled,
		Watchlist:          cfg.Trading.Watchlist,
		MinConfidence:      cfg.Trading.MinConfidence,
		Instruments: signal.InstrumentConfig{
			MinConfidence:         cfg.Trading.MinConfidence,
			StockTradingEnabled:   cfg.Trading.StockTradingEnabled,
			OptionsTradingEnabled: cfg.Trading.OptionsTradingEnabled,
		},
		Contracts: signal.ContractConfig{
			MinDTE:           cfg.Options.MinDTE,
			MaxDTE:           cfg.Options.MaxDTE,
			StrikePreference: signal.StrikePreference(cfg.Options.StrikePreference),
			OTMStrikeOffset:  cfg.Options.OTMStrikeOffset,
		},
		Timeframe:        cfg.Trading.BarTimeframe,
		BarLimit:         cfg.Trading.BarLimit,
		DedupWindow:      cfg.Trading.DedupWindow,
		BatchConcurrency: cfg.Trading.BatchConcurrency,
	}
}

// newLLM returns nil when AI is off so the engine uses strategies only
func newLLM(cfg *config.Config, logger zerolog.Logger) signal.LLM {
	if !cfg.AI.Enabled || cfg.AI.APIKey == "" {
		logger.Info().Msg("LLM disabled: signals come from strategies only")
		return nil
	}
	return llm.NewClient(&llm.ClientConfig{
		Provider:       llm.Provider(cfg.AI.Provider),
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		BaseURL:        cfg.AI.BaseURL,
		RequestsPerSec: cfg.AI.RequestsPerSec,
		Timeout:        cfg.AI.Timeout,
	}, logger)
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		bus:     events.NewEventBus(),
		metrics: metrics.New(),
	}

	if err := loadSecrets(ctx, cfg, logger); err != nil {
		return nil, err
	}

	gateway, news, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	p, err := a.newPersistence(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.breaker = circuit.NewCircuitBreaker(&cfg.Risk.CircuitBreaker, p.trades, p.store, logger)
	if err := a.breaker.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore circuit breaker state")
	}
	a.breaker.OnTrip(func(s circuit.Status) {
		a.bus.Publish(events.Event{
			Type: events.EventCircuitBreakerUpdate,
			Data: map[string]interface{}{"triggered": true, "daily_loss": s.DailyLoss, "limit": s.DailyLossLimit},
		})
	})

	gate := risk.NewGate(riskConfig(cfg), a.breaker, logger)

	strategies, err := strategy.NewDefaultManager(logger, cfg.Strategies.Active, cfg.Strategies.Priority)
	if err != nil {
		a.Close()
		return nil, err
	}

	var sentimentProvider signal.SentimentProvider
	if cfg.Sentiment.Enabled {
		sentimentProvider = sentiment.NewAnalyzer(&cfg.Sentiment, news, logger)
	}

	engine := signal.NewEngine(strategies, newLLM(cfg, logger), sentimentProvider, signal.Config{
		AggressiveMode:      cfg.Trading.AggressiveMode,
		ScanIntervalSeconds: cfg.Trading.ScanIntervalSeconds,
		OptionsEnabled:      cfg.Trading.OptionsTradingEnabled,
		Temperature:         cfg.AI.Temperature,
		MaxTokens:           cfg.AI.MaxTokens,
	}, logger)

	sc := scanner.NewScanner(gateway, scanner.ScannerConfig{
		Timeframe:   cfg.Trading.BarTimeframe,
		BarLimit:    cfg.Trading.BarLimit,
		WorkerCount: cfg.Trading.WorkerCount,
		CacheTTL:    30 * time.Second,
	}, logger)

	tz, err := time.LoadLocation(cfg.Risk.CircuitBreaker.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Risk.CircuitBreaker.Timezone).Msg("Unknown timezone, using UTC")
		tz = time.UTC
	}
	ids := order.NewClientOrderIDGenerator(p.sequence, tz, logger)
	executor := order.NewExecutor(gateway, p.trades, ids, logger)
	mon := monitor.NewPositionMonitor(gateway, monitorConfig(cfg), logger)

	a.workflow = autopilot.NewWorkflow(workflowConfig(cfg), gateway, sc, engine, gate, executor, mon, p.store, logger)
	a.workflow.SetMetrics(a.metrics)
	a.workflow.SetEventBus(a.bus)
	if p.recorder != nil {
		a.workflow.SetRecorder(p.recorder)
	}
	a.notifier = a.newNotifier()
	if len(a.notifier.Enabled()) > 0 {
		a.workflow.SetNotifier(a.notifier)
	}
	if err := a.workflow.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore paused flag")
	}

	a.runner = autopilot.NewRunner(a.workflow, autopilot.RunnerConfig{
		ScanInterval:    time.Duration(cfg.Trading.ScanIntervalSeconds) * time.Second,
		MonitorInterval: time.Duration(cfg.Trading.MonitorIntervalSeconds) * time.Second,
	}, logger)

	a.auth = auth.NewService(cfg.Server.JWTSecret, cfg.Server.OperatorPasswordHash, cfg.Server.TokenDuration, logger)
	return a, nil
}

func (a *app) newServer() *api.Server {
	metricsHandler := a.metrics.Handler()
	if !a.cfg.Metrics.Enabled {
		metricsHandler = nil
	}
	return api.NewServer(api.ServerConfig{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		ProductionMode: a.cfg.Server.ProductionMode,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		ReadTimeout:    a.cfg.Server.ReadTimeout,
		WriteTimeout:   a.cfg.Server.WriteTimeout,
		MetricsPath:    a.cfg.Metrics.Path,
	}, a.workflow, a.auth, a.bus, metricsHandler, a.logger)
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
