package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type Database struct {
	Host            string        `yaml:"PG_HOST" env:"PG_HOST" env-default:"localhost"`
	Port            string        `yaml:"PG_PORT" env:"PG_PORT" env-default:"5432"`
	User            string        `yaml:"PG_USER" env:"PG_USER" env-required:"true"`
	Password        string        `yaml:"PG_PASSWORD" env:"PG_PASSWORD" env-required:"true"`
	Name            string        `yaml:"PG_DBNAME" env:"PG_DBNAME" env-required:"true"`
	SSLMode         string        `yaml:"PG_SSLMODE" env:"PG_SSLMODE" env-default:"require"`
	MaxOpenConns    int           `yaml:"MAX_OPEN_CONNS" env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"MAX_IDLE_CONNS" env:"PG_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"CONN_MAX_LIFETIME" env:"PG_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"CONN_MAX_IDLE_TIME" env:"PG_CONN_MAX_IDLE_TIME" env-default:"5m"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"REDIS_USER" env:"REDIS_USER" env-required:"true"`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD" env-required:"true"`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

// RateConfig bounds checkout submissions per session within a sliding window.
type RateConfig struct {
	MaxAttempts int64         `yaml:"MAX_ATTEMPTS" env:"MAX_ATTEMPTS" env-default:"5"`
	WindowSize  time.Duration `yaml:"WINDOW_SIZE" env:"WINDOW_SIZE" env-default:"1m"`
}

type Stripe struct {
	APIKey        string `yaml:"STRIPE_API_KEY" env:"STRIPE_API_KEY" env-default:""`
	WebhookSecret string `yaml:"STRIPE_WEBHOOK_SECRET" env:"STRIPE_WEBHOOK_SECRET" env-default:""`
	SuccessURL    string `yaml:"STRIPE_SUCCESS_URL" env:"STRIPE_SUCCESS_URL" env-default:"http://localhost:3000/checkout/return?status=success"`
	CancelURL     string `yaml:"STRIPE_CANCEL_URL" env:"STRIPE_CANCEL_URL" env-default:"http://localhost:3000/checkout/return?status=cancel"`
}

type SendGrid struct {
	APIKey    string `yaml:"API_KEY" env:"SENDGRID_API_KEY" env-default:""`
	FromEmail string `yaml:"FROM_EMAIL" env:"SENDGRID_FROM_EMAIL" env-default:"orders@example.com"`
	FromName  string `yaml:"FROM_NAME" env:"SENDGRID_FROM_NAME" env-default:"Storefront"`
	// SandboxMode makes SendGrid validate messages without delivering them.
	SandboxMode bool `yaml:"SANDBOX_MODE" env:"SENDGRID_SANDBOX_MODE" env-default:"false"`
}

type Security struct {
	JWTKey         string `yaml:"JWT_KEY" env:"JWT_KEY" env-required:"true"`
	JWTExpiryHours int    `yaml:"JWT_EXPIRY_HOURS" env:"JWT_EXPIRY_HOURS" env-default:"24"`
}

type Otel struct {
	Enabled          bool    `yaml:"ENABLED" env:"OTEL_ENABLED" env-default:"false"`
	ServiceName      string  `yaml:"SERVICE_NAME" env:"OTEL_SERVICE_NAME" env-default:"storefront-core"`
	ExporterEndpoint string  `yaml:"EXPORTER_ENDPOINT" env:"OTEL_EXPORTER_ENDPOINT" env-default:"localhost:4318"`
	SamplerRatio     float64 `yaml:"SAMPLER_RATIO" env:"OTEL_SAMPLER_RATIO" env-default:"1.0"`
}

// CacheConfig.Namespace is prepended to every key so that several deployments
// can share one redis database.
type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL" env-default:"5m"`
	Namespace  string        `yaml:"namespace" env:"CACHE_NAMESPACE"`
}

// Services holds the base URLs of the collaborators reached over HTTP.
type Services struct {
	CartBaseURL     string        `yaml:"CART_BASE_URL" env:"CART_BASE_URL" env-default:"http://localhost:8080"`
	OrderBaseURL    string        `yaml:"ORDER_BASE_URL" env:"ORDER_BASE_URL" env-default:"http://localhost:8081"`
	ShippingBaseURL string        `yaml:"SHIPPING_BASE_URL" env:"SHIPPING_BASE_URL" env-default:"http://localhost:8082"`
	RequestTimeout  time.Duration `yaml:"REQUEST_TIMEOUT" env:"SERVICES_REQUEST_TIMEOUT" env-default:"10s"`
	MaxRetries      uint64        `yaml:"MAX_RETRIES" env:"SERVICES_MAX_RETRIES" env-default:"2"`
}

type Checkout struct {
	Currency       string        `yaml:"CURRENCY" env:"CHECKOUT_CURRENCY" env-default:"INR"`
	StoreName      string        `yaml:"STORE_NAME" env:"CHECKOUT_STORE_NAME" env-default:"Storefront"`
	GuestCartTTL   time.Duration `yaml:"GUEST_CART_TTL" env:"CHECKOUT_GUEST_CART_TTL" env-default:"720h"`
	PendingTTL     time.Duration `yaml:"PENDING_TTL" env:"CHECKOUT_PENDING_TTL" env-default:"2h"`
	PollInterval   time.Duration `yaml:"POLL_INTERVAL" env:"CHECKOUT_POLL_INTERVAL" env-default:"5s"`
	PollMaxRetries uint64        `yaml:"POLL_MAX_RETRIES" env:"CHECKOUT_POLL_MAX_RETRIES" env-default:"2"`
	SessionIdleTTL time.Duration `yaml:"SESSION_IDLE_TTL" env:"CHECKOUT_SESSION_IDLE_TTL" env-default:"30m"`
	CheckoutTTL    time.Duration `yaml:"CHECKOUT_TTL" env:"CHECKOUT_CHECKOUT_TTL" env-default:"1h"`
}

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-required:"true"`
	HTTPServer   `yaml:"http_server"`
	Database     Database     `yaml:"database"`
	RedisConnect RedisConnect `yaml:"redis"`
	RateConfig   RateConfig   `yaml:"rateConfig"`
	Stripe       Stripe       `yaml:"stripe"`
	SendGrid     SendGrid     `yaml:"sendgrid"`
	Security     Security     `yaml:"security"`
	Otel         Otel         `yaml:"otel"`
	Cache        CacheConfig  `yaml:"cache"`
	Services     Services     `yaml:"services"`
	Checkout     Checkout     `yaml:"checkout"`
}

// MustLoad resolves the config path from CONFIG_PATH, then the -config flag,
// then ./config/local.yaml, and exits when the file cannot be read.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "path to the config file")
		flag.Parse()

		configPath = *flags
	}

	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := LoadConfigFromPath(configPath)
	if err != nil {
		log.Fatalf("can not load config: %s", err.Error())
	}

	return cfg
}

func LoadConfigFromPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("can not read config file: %w", err)
	}

	return &cfg, nil
}

func (d *Database) GetDSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s", r.Username, r.Password, r.Host, r.Port)
}
