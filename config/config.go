package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"equities-trading-bot/internal/ai/sentiment"
	"equities-trading-bot/internal/cache"
	"equities-trading-bot/internal/circuit"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/logging"
	"equities-trading-bot/internal/notification"
)

// DefaultPath is used when no config path is given
const DefaultPath = "config.yaml"

type Config struct {
	Logging      logging.Config            `json:"logging" yaml:"logging"`
	Broker       BrokerConfig              `json:"broker" yaml:"broker"`
	Trading      TradingConfig             `json:"trading" yaml:"trading"`
	Risk         RiskConfig                `json:"risk" yaml:"risk"`
	Options      OptionsConfig             `json:"options" yaml:"options"`
	Strategies   StrategiesConfig          `json:"strategies" yaml:"strategies"`
	AI           AIConfig                  `json:"ai" yaml:"ai"`
	Sentiment    sentiment.SentimentConfig `json:"sentiment" yaml:"sentiment"`
	Database     database.Config           `json:"database" yaml:"database"`
	Redis        cache.Config              `json:"redis" yaml:"redis"`
	Vault        VaultConfig               `json:"vault" yaml:"vault"`
	Notification NotificationConfig        `json:"notification" yaml:"notification"`
	Server       ServerConfig              `json:"server" yaml:"server"`
	Metrics      MetricsConfig             `json:"metrics" yaml:"metrics"`
}

// BrokerConfig holds Alpaca connection settings
type BrokerConfig struct {
	APIKey            string        `json:"api_key" yaml:"api_key"`
	SecretKey         string        `json:"secret_key" yaml:"secret_key"`
	TradingURL        string        `json:"trading_url" yaml:"trading_url" default:"https://paper-api.alpaca.markets"`
	DataURL           string        `json:"data_url" yaml:"data_url" default:"https://data.alpaca.markets"`
	Feed              string        `json:"feed" yaml:"feed" default:"iex" validate:"oneof=iex sip"`
	MockMode          bool          `json:"mock_mode" yaml:"mock_mode" default:"true"` // Use the in-memory broker
	MockStartingCash  float64       `json:"mock_starting_cash" yaml:"mock_starting_cash" default:"100000"`
	RequestsPerSecond int           `json:"requests_per_second" yaml:"requests_per_second" default:"3" validate:"gte=1"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout" default:"15s"`
}

type TradingConfig struct {
	AutoTradingEnabled     bool          `json:"auto_trading_enabled" yaml:"auto_trading_enabled"`
	StockTradingEnabled    bool          `json:"stock_trading_enabled" yaml:"stock_trading_enabled" default:"true"`
	OptionsTradingEnabled  bool          `json:"options_trading_enabled" yaml:"options_trading_enabled"`
	AggressiveMode         bool          `json:"aggressive_mode" yaml:"aggressive_mode"`
	ScanIntervalSeconds    int           `json:"scan_interval_seconds" yaml:"scan_interval_seconds" default:"300" validate:"gte=1"`
	MonitorIntervalSeconds int           `json:"monitor_interval_seconds" yaml:"monitor_interval_seconds" default:"60" validate:"gte=1"`
	Watchlist              []string      `json:"watchlist" yaml:"watchlist" default:"[\"AAPL\",\"MSFT\",\"NVDA\",\"AMZN\",\"SPY\"]"`
	MinConfidence          float64       `json:"min_confidence" yaml:"min_confidence" default:"70" validate:"gte=0,lte=100"` // 0-100
	BarTimeframe           string        `json:"bar_timeframe" yaml:"bar_timeframe" default:"1Day"`
	BarLimit               int           `json:"bar_limit" yaml:"bar_limit" default:"100" validate:"gte=2"`
	WorkerCount            int           `json:"worker_count" yaml:"worker_count" default:"4" validate:"gte=1"`
	BatchConcurrency       int           `json:"batch_concurrency" yaml:"batch_concurrency" default:"3" validate:"gte=1"`
	DedupWindow            time.Duration `json:"dedup_window" yaml:"dedup_window" default:"30m"`
}

type RiskConfig struct {
	MaxPositionSize           float64                      `json:"max_position_size" yaml:"max_position_size" default:"5000" validate:"gt=0"`
	MaxOpenPositions          int                          `json:"max_open_positions" yaml:"max_open_positions" default:"5" validate:"gte=1"`
	StopLossPercent           float64                      `json:"stop_loss_percent" yaml:"stop_loss_percent" default:"5" validate:"gt=0"`
	TakeProfitPercent         float64                      `json:"take_profit_percent" yaml:"take_profit_percent" default:"10" validate:"gt=0"`
	TrailingEnabled           bool                         `json:"trailing_enabled" yaml:"trailing_enabled" default:"true"`
	TrailingStopPercent       float64                      `json:"trailing_stop_percent" yaml:"trailing_stop_percent" default:"3"`
	TrailingActivationPercent float64                      `json:"trailing_activation_percent" yaml:"trailing_activation_percent" default:"2"`
	PriceMovePercent          float64                      `json:"price_move_percent" yaml:"price_move_percent" default:"3"`
	CircuitBreaker            circuit.CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

type OptionsConfig struct {
	MinDTE             int     `json:"min_dte" yaml:"min_dte" default:"7" validate:"gte=0"`
	MaxDTE             int     `json:"max_dte" yaml:"max_dte" default:"45" validate:"gtefield=MinDTE"`
	MaxPremium         float64 `json:"max_premium" yaml:"max_premium" default:"500" validate:"gt=0"`
	MaxSinglePremium   float64 `json:"max_single_premium" yaml:"max_single_premium"` // 0 = max_premium
	MaxContracts       int     `json:"max_contracts" yaml:"max_contracts" default:"2" validate:"gte=1"`
	StrikePreference   string  `json:"strike_preference" yaml:"strike_preference" default:"ATM" validate:"oneof=ATM OTM ITM"`
	OTMStrikeOffset    int     `json:"otm_strike_offset" yaml:"otm_strike_offset" default:"1" validate:"gte=0"`
	ExpirationCloseDTE int     `json:"expiration_close_dte" yaml:"expiration_close_dte" default:"1" validate:"gte=0"`
}

// StrategiesConfig selects evaluators; empty Active means all
type StrategiesConfig struct {
	Active   []string `json:"active" yaml:"active"`
	Priority []string `json:"priority" yaml:"priority"`
}

// AIConfig holds LLM settings
type AIConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Provider       string        `json:"provider" yaml:"provider" default:"claude" validate:"oneof=claude openai deepseek"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	Model          string        `json:"model" yaml:"model" default:"claude-sonnet-4-20250514"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	Temperature    float64       `json:"temperature" yaml:"temperature" default:"0.3" validate:"gte=0,lte=2"`
	MaxTokens      int           `json:"max_tokens" yaml:"max_tokens" default:"500" validate:"gte=1"`
	RequestsPerSec int           `json:"requests_per_sec" yaml:"requests_per_sec" default:"2" validate:"gte=1"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout" default:"30s"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address" default:"http://localhost:8200"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path" default:"secret"` // KV v2 mount
	SecretPath string `json:"secret_path" yaml:"secret_path" default:"equities-trading-bot"`
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled"`
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
}

type NotificationConfig struct {
	Enabled  bool                        `json:"enabled" yaml:"enabled"`
	Telegram notification.TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord  notification.DiscordConfig  `json:"discord" yaml:"discord"`
	Kafka    notification.KafkaConfig    `json:"kafka" yaml:"kafka"`
}

// ServerConfig holds the control API configuration
type ServerConfig struct {
	Enabled              bool          `json:"enabled" yaml:"enabled" default:"true"`
	Host                 string        `json:"host" yaml:"host" default:"0.0.0.0"`
	Port                 int           `json:"port" yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	JWTSecret            string        `json:"jwt_secret" yaml:"jwt_secret"` // empty disables auth
	OperatorPasswordHash string        `json:"operator_password_hash" yaml:"operator_password_hash"`
	TokenDuration        time.Duration `json:"token_duration" yaml:"token_duration" default:"12h"`
	ProductionMode       bool          `json:"production_mode" yaml:"production_mode"`
	AllowedOrigins       []string      `json:"allowed_origins" yaml:"allowed_origins" default:"[\"*\"]"`
	ReadTimeout          time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout         time.Duration `json:"write_timeout" yaml:"write_timeout" default:"30s"`
	ShutdownTimeout      time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" default:"true"`
	Path    string `json:"path" yaml:"path" default:"/metrics"`
}

var validate = validator.New()

// Load reads the config file at path (JSON or YAML by extension), applies
// defaults and environment overrides, and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = getEnvOrDefault("CONFIG_PATH", DefaultPath)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying defaults: %w", err)
	}

	if err := loadFromFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unset variables keep the file value.
func applyEnvOverrides(cfg *Config) {
	// Logging
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)

	// Broker
	cfg.Broker.APIKey = getEnvOrDefault("ALPACA_API_KEY", cfg.Broker.APIKey)
	cfg.Broker.SecretKey = getEnvOrDefault("ALPACA_SECRET_KEY", cfg.Broker.SecretKey)
	cfg.Broker.TradingURL = getEnvOrDefault("ALPACA_TRADING_URL", cfg.Broker.TradingURL)
	cfg.Broker.DataURL = getEnvOrDefault("ALPACA_DATA_URL", cfg.Broker.DataURL)
	cfg.Broker.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.Broker.MockMode)

	// Trading
	cfg.Trading.AutoTradingEnabled = getEnvBoolOrDefault("AUTO_TRADING_ENABLED", cfg.Trading.AutoTradingEnabled)
	cfg.Trading.StockTradingEnabled = getEnvBoolOrDefault("STOCK_TRADING_ENABLED", cfg.Trading.StockTradingEnabled)
	cfg.Trading.OptionsTradingEnabled = getEnvBoolOrDefault("OPTIONS_TRADING_ENABLED", cfg.Trading.OptionsTradingEnabled)
	cfg.Trading.AggressiveMode = getEnvBoolOrDefault("AGGRESSIVE_MODE", cfg.Trading.AggressiveMode)
	cfg.Trading.ScanIntervalSeconds = getEnvIntOrDefault("SCAN_INTERVAL_SECONDS", cfg.Trading.ScanIntervalSeconds)
	cfg.Trading.MonitorIntervalSeconds = getEnvIntOrDefault("MONITOR_INTERVAL_SECONDS", cfg.Trading.MonitorIntervalSeconds)
	cfg.Trading.MinConfidence = getEnvFloatOrDefault("MIN_CONFIDENCE", cfg.Trading.MinConfidence)
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Trading.Watchlist = splitList(v)
	}

	// Risk
	cfg.Risk.MaxPositionSize = getEnvFloatOrDefault("MAX_POSITION_SIZE", cfg.Risk.MaxPositionSize)
	cfg.Risk.MaxOpenPositions = getEnvIntOrDefault("MAX_OPEN_POSITIONS", cfg.Risk.MaxOpenPositions)
	cfg.Risk.CircuitBreaker.DailyLossLimit = getEnvFloatOrDefault("DAILY_LOSS_LIMIT", cfg.Risk.CircuitBreaker.DailyLossLimit)

	// AI
	cfg.AI.Enabled = getEnvBoolOrDefault("AI_ENABLED", cfg.AI.Enabled)
	cfg.AI.Provider = getEnvOrDefault("AI_LLM_PROVIDER", cfg.AI.Provider)
	cfg.AI.APIKey = getEnvOrDefault("AI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = getEnvOrDefault("AI_LLM_MODEL", cfg.AI.Model)

	// Database
	cfg.Database.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	// Redis
	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	// Vault
	cfg.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.Vault.MountPath)
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.Vault.SecretPath)

	// Notification
	cfg.Notification.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.Notification.Enabled)
	cfg.Notification.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.Notification.Telegram.Enabled)
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvInt64OrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.Notification.Discord.Enabled)
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)
	cfg.Notification.Kafka.Enabled = getEnvBoolOrDefault("KAFKA_ENABLED", cfg.Notification.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Notification.Kafka.Brokers = splitList(v)
	}
	cfg.Notification.Kafka.Topic = getEnvOrDefault("KAFKA_TOPIC", cfg.Notification.Kafka.Topic)

	// Server
	cfg.Server.Host = getEnvOrDefault("WEB_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)
	cfg.Server.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Server.JWTSecret)
	cfg.Server.OperatorPasswordHash = getEnvOrDefault("AUTH_OPERATOR_PASSWORD_HASH", cfg.Server.OperatorPasswordHash)
	cfg.Server.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.Server.ProductionMode)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSample writes a defaulted sample configuration file, YAML or JSON
// by extension
func GenerateSample(path string) error {
	cfg := Default()
	cfg.Broker.APIKey = "your_api_key_here"
	cfg.Broker.SecretKey = "your_secret_key_here"
	cfg.Strategies.Active = []string{"mean_reversion", "momentum_breakout", "ma_crossover", "iron_condor"}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
