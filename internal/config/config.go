package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sitepass/subscription-whitelist/internal/pkg/validator"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	Billing   BillingConfig
	Whitelist WhitelistConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Hooks     HooksConfig
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `validate:"min=1"`
	MinConns int32  `validate:"min=0"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string `validate:"required"`
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int    `validate:"min=1,max=65535"`
	Env            string `validate:"oneof=development staging production test"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFile        string
	AllowedOrigins []string
	Version        string
}

// BillingConfig drives invoice numbering and payment links.
type BillingConfig struct {
	InvoicePrefix     string `validate:"required,alphanum,max=10"`
	PaymentLinkSecret string `validate:"required,min=16"`
	PaymentBaseURL    string `validate:"required,http_url"`
	Currency          string `validate:"required,len=3"`
}

// WhitelistConfig locates the shared whitelist inside the settings option.
type WhitelistConfig struct {
	OptionName   string `validate:"required"`
	Field        string `validate:"required"`
	CASAttempts  int    `validate:"min=1,max=20"`
	CASBaseDelay time.Duration
	CacheTTL     time.Duration
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	AdminEmail string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Enabled              bool
	BillingInterval      time.Duration `validate:"min=1s"`
	ExpirySweepInterval  time.Duration `validate:"min=1s"`
	HousekeepingInterval time.Duration `validate:"min=1s"`
}

// HooksConfig authenticates platform callbacks.
type HooksConfig struct {
	CallbackToken string `validate:"required,min=16"`
}

// Load reads configuration from the environment, after applying an optional
// .env file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}
	p := &parser{}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     p.int("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "subscriptions"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(p.int("DB_MAX_CONNS", 25)),
		MinConns: int32(p.int("DB_MIN_CONNS", 5)),
	}

	config.App = AppConfig{
		Port:           p.int("APP_PORT", 8080),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	config.Billing = BillingConfig{
		InvoicePrefix:     getEnv("INVOICE_PREFIX", "INV"),
		PaymentLinkSecret: getEnv("PAYMENT_LINK_SECRET", ""),
		PaymentBaseURL:    getEnv("PAYMENT_BASE_URL", "http://localhost:8080"),
		Currency:          getEnv("BILLING_CURRENCY", "USD"),
	}

	config.Whitelist = WhitelistConfig{
		OptionName:   getEnv("WHITELIST_OPTION_NAME", "site_builder_settings"),
		Field:        getEnv("WHITELIST_FIELD", "myTemplatesWhitelist"),
		CASAttempts:  p.int("WHITELIST_CAS_ATTEMPTS", 5),
		CASBaseDelay: p.duration("WHITELIST_CAS_BASE_DELAY", 25*time.Millisecond),
		CacheTTL:     p.duration("WHITELIST_CACHE_TTL", 5*time.Minute),
	}

	config.SMTP = SMTPConfig{
		Host:       getEnv("SMTP_HOST", ""),
		Port:       p.int("SMTP_PORT", 587),
		Username:   getEnv("SMTP_USERNAME", ""),
		Password:   getEnv("SMTP_PASSWORD", ""),
		From:       getEnv("SMTP_FROM", "billing@localhost"),
		FromName:   getEnv("SMTP_FROM_NAME", "Billing"),
		AdminEmail: getEnv("ADMIN_EMAIL", ""),
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       p.int("REDIS_DB", 0),
	}

	config.Scheduler = SchedulerConfig{
		Enabled:              p.bool("SCHEDULER_ENABLED", true),
		BillingInterval:      p.duration("SCHEDULE_BILLING_INTERVAL", 24*time.Hour),
		ExpirySweepInterval:  p.duration("SCHEDULE_EXPIRY_SWEEP_INTERVAL", 12*time.Hour),
		HousekeepingInterval: p.duration("SCHEDULE_HOUSEKEEPING_INTERVAL", 24*time.Hour),
	}

	config.Hooks = HooksConfig{
		CallbackToken: getEnv("HOOK_CALLBACK_TOKEN", ""),
	}

	if p.err != nil {
		return nil, p.err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return err
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}
