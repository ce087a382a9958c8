// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer"`
}

type PaymentConfig struct {
	PayeeVPA  string `yaml:"payee_vpa" env:"UPI_PAYEE_VPA"`
	PayeeName string `yaml:"payee_name" env:"UPI_PAYEE_NAME"`
	Currency  string `yaml:"currency"`
	// OrderWindow is how long a pending order solicits payment.
	OrderWindow time.Duration `yaml:"order_window"`
	// SequencePoolSize bounds the sub-unit suffix appended to base amounts.
	SequencePoolSize int    `yaml:"sequence_pool_size"`
	ClaimRefFormat   string `yaml:"claim_ref_format" env:"CLAIM_REF_FORMAT"` // strict|alphanumeric
	QRSize           int    `yaml:"qr_size"`
	QRLevel          string `yaml:"qr_level"` // low|medium|high|highest

	CreateLimit int           `yaml:"create_limit"`
	ClaimLimit  int           `yaml:"claim_limit"`
	LimitWindow time.Duration `yaml:"limit_window"`
}

type PlanConfig struct {
	BaseAmount   string `yaml:"base_amount"`
	DurationDays int    `yaml:"duration_days"`
	AIFeedback   int    `yaml:"ai_feedback"`
	Paragraphs   int    `yaml:"paragraphs"`
}

type QuotaConfig struct {
	AIFeedback int `yaml:"ai_feedback"`
	Paragraphs int `yaml:"paragraphs"`
}

type ReconciliationConfig struct {
	FuzzyTolerance      string        `yaml:"fuzzy_tolerance"`
	AutoVerifyThreshold int           `yaml:"auto_verify_threshold"`
	ImportLockTTL       time.Duration `yaml:"import_lock_ttl"`
}

type SchedulerConfig struct {
	OrderSweepInterval    time.Duration `yaml:"order_sweep_interval"`
	PremiumSweepInterval  time.Duration `yaml:"premium_sweep_interval"`
	RetentionInterval     time.Duration `yaml:"retention_interval"`
	SubmittedGrace        time.Duration `yaml:"submitted_grace"`
	OrderRetention        time.Duration `yaml:"order_retention"`
	NotificationRetention time.Duration `yaml:"notification_retention"`
}

type NotifyConfig struct {
	TelegramToken string  `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	AdminChatIDs  []int64 `yaml:"admin_chat_ids" env:"TELEGRAM_ADMIN_CHATS" envSeparator:","`
	Language      string  `yaml:"language" env:"NOTIFY_LANGUAGE"` // locale of operator messages
	Workers       int     `yaml:"workers"`
	QueueSize     int     `yaml:"queue_size"`
}

type Config struct {
	Log            LogConfig             `yaml:"log"`
	HTTP           HTTPConfig            `yaml:"http"`
	Database       DatabaseConfig        `yaml:"database"`
	Redis          RedisConfig           `yaml:"redis"`
	Auth           AuthConfig            `yaml:"auth"`
	Payment        PaymentConfig         `yaml:"payment"`
	Plans          map[string]PlanConfig `yaml:"plans"`
	Quotas         QuotaConfig           `yaml:"quotas"`
	Reconciliation ReconciliationConfig  `yaml:"reconciliation"`
	Scheduler      SchedulerConfig       `yaml:"scheduler"`
	Notify         NotifyConfig          `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config/-dev flags and loads the file they point at.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Load reads YAML from path, applies environment overrides (after loading an
// optional .env file), fills defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		cfg.HTTP.MaxUploadBytes = 5 << 20
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "typing-premium"
	}

	p := &cfg.Payment
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.OrderWindow <= 0 {
		p.OrderWindow = 30 * time.Minute
	}
	if p.SequencePoolSize <= 0 {
		p.SequencePoolSize = 99
	}
	if p.ClaimRefFormat == "" {
		p.ClaimRefFormat = "strict"
	}
	if p.QRSize <= 0 {
		p.QRSize = 256
	}
	if p.QRLevel == "" {
		p.QRLevel = "medium"
	}
	if p.CreateLimit <= 0 {
		p.CreateLimit = 10
	}
	if p.ClaimLimit <= 0 {
		p.ClaimLimit = 10
	}
	if p.LimitWindow <= 0 {
		p.LimitWindow = time.Hour
	}

	if len(cfg.Plans) == 0 {
		cfg.Plans = DefaultPlans()
	}

	if cfg.Quotas.AIFeedback == 0 && cfg.Quotas.Paragraphs == 0 {
		cfg.Quotas = QuotaConfig{AIFeedback: 5, Paragraphs: 5}
	}

	r := &cfg.Reconciliation
	if r.FuzzyTolerance == "" {
		r.FuzzyTolerance = "0.02"
	}
	if r.AutoVerifyThreshold <= 0 {
		r.AutoVerifyThreshold = 95
	}
	if r.ImportLockTTL <= 0 {
		r.ImportLockTTL = 5 * time.Minute
	}

	s := &cfg.Scheduler
	if s.OrderSweepInterval <= 0 {
		s.OrderSweepInterval = time.Minute
	}
	if s.PremiumSweepInterval <= 0 {
		s.PremiumSweepInterval = 10 * time.Minute
	}
	if s.RetentionInterval <= 0 {
		s.RetentionInterval = 24 * time.Hour
	}
	if s.SubmittedGrace <= 0 {
		s.SubmittedGrace = 72 * time.Hour
	}
	if s.OrderRetention <= 0 {
		s.OrderRetention = 90 * 24 * time.Hour
	}
	if s.NotificationRetention <= 0 {
		s.NotificationRetention = 30 * 24 * time.Hour
	}

	if cfg.Notify.Language == "" {
		cfg.Notify.Language = "en"
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 256
	}
}

// DefaultPlans is the price list used when the file configures none.
func DefaultPlans() map[string]PlanConfig {
	return map[string]PlanConfig{
		"trial":    {BaseAmount: "19", DurationDays: 7, AIFeedback: 20, Paragraphs: 20},
		"monthly":  {BaseAmount: "69", DurationDays: 30, AIFeedback: 100, Paragraphs: 100},
		"yearly":   {BaseAmount: "499", DurationDays: 365, AIFeedback: 1500, Paragraphs: 1500},
		"lifetime": {BaseAmount: "999", DurationDays: 36500, AIFeedback: -1, Paragraphs: -1},
	}
}

// Validate performs minimal checks; everything else has a default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Payment.PayeeVPA == "" {
		return errors.New("payment.payee_vpa is required")
	}
	if c.Payment.SequencePoolSize > 99 {
		return errors.New("payment.sequence_pool_size must be at most 99")
	}
	switch strings.ToLower(c.Payment.ClaimRefFormat) {
	case "strict", "alphanumeric":
	default:
		return fmt.Errorf("payment.claim_ref_format %q: want strict or alphanumeric", c.Payment.ClaimRefFormat)
	}
	for name, p := range c.Plans {
		if p.DurationDays <= 0 {
			return fmt.Errorf("plans.%s.duration_days must be positive", name)
		}
		if p.BaseAmount == "" {
			return fmt.Errorf("plans.%s.base_amount is required", name)
		}
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
