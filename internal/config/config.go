package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	RabbitMQ     RabbitMQConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Billing      BillingConfig
	Stock        StockConfig
	Scheduler    SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"intervention-service"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password     string `env:"REDIS_PASSWORD"`
	DB           int    `env:"REDIS_DB" envDefault:"0"`
	EventChannel string `env:"REDIS_EVENT_CHANNEL" envDefault:"interventions.events"`
}

// RabbitMQConfig holds the broker used to hand invoices to the accounting mailer.
type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	MailExchange    string `env:"RABBITMQ_MAIL_EXCHANGE" envDefault:"accounting.mail"`
	InvoiceMailsKey string `env:"RABBITMQ_INVOICE_ROUTING_KEY" envDefault:"invoice.email"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTLMinutes int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"60"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	EmailFrom        string `env:"NOTIFY_EMAIL_FROM" envDefault:"noreply@example.com"`
	ActivityDueHours int    `env:"NOTIFY_ACTIVITY_DUE_HOURS" envDefault:"0"`
}

// BillingConfig drives invoice generation.
type BillingConfig struct {
	HourlyRate           string `env:"BILLING_HOURLY_RATE" envDefault:"50"`
	ServiceProductName   string `env:"BILLING_SERVICE_PRODUCT_NAME" envDefault:"Intervention technical service"`
	ServiceProductPrice  string `env:"BILLING_SERVICE_PRODUCT_PRICE" envDefault:"50"`
	IncomeAccount        string `env:"BILLING_INCOME_ACCOUNT" envDefault:"706000"`
	InvoiceEmailTemplate string `env:"BILLING_INVOICE_EMAIL_TEMPLATE" envDefault:"invoice_email"`
}

// StockConfig names the inventory locations parts are moved between.
type StockConfig struct {
	SourceLocation   string `env:"STOCK_SOURCE_LOCATION" envDefault:"WH/Stock"`
	CustomerLocation string `env:"STOCK_CUSTOMER_LOCATION" envDefault:"Partners/Customers"`
}

// SchedulerConfig controls the periodic reminder job.
type SchedulerConfig struct {
	Enabled        bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	ReminderCron   string        `env:"SCHEDULER_REMINDER_CRON" envDefault:"@every 5m"`
	ReminderWindow time.Duration `env:"SCHEDULER_REMINDER_WINDOW" envDefault:"1h"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Billing.Rate(); err != nil {
		return nil, fmt.Errorf("invalid BILLING_HOURLY_RATE: %w", err)
	}
	if _, err := cfg.Billing.ServicePrice(); err != nil {
		return nil, fmt.Errorf("invalid BILLING_SERVICE_PRODUCT_PRICE: %w", err)
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Rate returns the default hourly labor rate.
func (b BillingConfig) Rate() (decimal.Decimal, error) {
	return decimal.NewFromString(b.HourlyRate)
}

// ServicePrice returns the list price of the default labor product.
func (b BillingConfig) ServicePrice() (decimal.Decimal, error) {
	return decimal.NewFromString(b.ServiceProductPrice)
}
