package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string
	LogLevel    string
	Storage     string // gorm | memory
	CORSOrigins []string
	JWTSecret   string

	Database DatabaseConfig
	Redis    RedisConfig
	Events   EventsConfig
	Pricing  PricingConfig
	Quote    QuoteConfig
	Payment  PaymentConfig
	Telr     TelrConfig
}

type DatabaseConfig struct {
	Driver       string // mysql | postgres
	URL          string
	User         string
	Password     string
	Host         string
	Port         string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	PoolSize int
}

type EventsConfig struct {
	Broker         string // rabbitmq | kafka | none
	RabbitURL      string
	RabbitExchange string
	KafkaBrokers   []string
	KafkaTopic     string
}

type PricingConfig struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	InstallationFee       decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

type QuoteConfig struct {
	Validity time.Duration
}

type PaymentConfig struct {
	VerifyAttempts  int
	VerifyBaseDelay time.Duration
	VerifyMaxDelay  time.Duration
	VerifyRateLimit float64 // requests per second per client
}

type TelrConfig struct {
	StoreID       int
	AuthKey       string
	APIURL        string
	Mode          string
	Currency      string
	ReturnURL     string
	WebhookSecret string
	Timeout       time.Duration
}

// TestMode reports whether Telr should run transactions in test mode.
func (t TelrConfig) TestMode() bool {
	m := strings.ToLower(t.Mode)
	return m == "sandbox" || m == "dev"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:        p.str("PORT", "8080"),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		Storage:     strings.ToLower(p.str("STORAGE", "gorm")),
		CORSOrigins: p.list("CORS_ORIGINS", []string{"*"}),
		JWTSecret:   p.str("JWT_SECRET", ""),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(p.str("DB_DRIVER", "mysql")),
			URL:          p.str("DATABASE_URL", ""),
			User:         p.str("MYSQL_USER", ""),
			Password:     p.str("MYSQL_PASSWORD", ""),
			Host:         p.str("MYSQL_HOST", "localhost"),
			Port:         p.str("MYSQL_PORT", "3306"),
			Name:         p.str("MYSQL_DATABASE", ""),
			MaxOpenConns: p.integer("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns: p.integer("DB_MAX_IDLE_CONNS", 20),
		},
		Redis: RedisConfig{
			Host:     p.str("REDIS_HOST", ""),
			PoolSize: p.integer("REDIS_POOL_SIZE", 50),
		},
		Events: EventsConfig{
			Broker:         strings.ToLower(p.str("EVENT_BROKER", "none")),
			RabbitURL:      p.str("RABBITMQ_URL", ""),
			RabbitExchange: p.str("RABBITMQ_EXCHANGE", "order.exchange"),
			KafkaBrokers:   p.list("KAFKA_BROKERS", nil),
			KafkaTopic:     p.str("KAFKA_TOPIC", "order-events"),
		},
		Pricing: PricingConfig{
			TaxRate:               p.money("TAX_RATE", "0"),
			DeliveryFee:           p.money("DELIVERY_FEE", "0"),
			InstallationFee:       p.money("INSTALLATION_FEE", "0"),
			FreeDeliveryThreshold: p.money("FREE_DELIVERY_THRESHOLD", "0"),
		},
		Quote: QuoteConfig{
			Validity: time.Duration(p.integer("QUOTE_VALIDITY_DAYS", 7)) * 24 * time.Hour,
		},
		Payment: PaymentConfig{
			VerifyAttempts:  p.integer("PAYMENT_VERIFY_ATTEMPTS", 5),
			VerifyBaseDelay: p.duration("PAYMENT_VERIFY_BASE_DELAY", 500*time.Millisecond),
			VerifyMaxDelay:  p.duration("PAYMENT_VERIFY_MAX_DELAY", 8*time.Second),
			VerifyRateLimit: p.floating("VERIFY_RATE_LIMIT", 2),
		},
		Telr: TelrConfig{
			StoreID:       p.integer("TELR_STORE_ID", 0),
			AuthKey:       p.str("TELR_AUTH_KEY", ""),
			APIURL:        p.str("TELR_API_URL", "https://secure.telr.com/gateway/order.json"),
			Mode:          p.str("TELR_MODE", "sandbox"),
			Currency:      p.str("TELR_CURRENCY", "AED"),
			ReturnURL:     p.str("TELR_RETURN_URL", ""),
			WebhookSecret: p.str("TELR_WEBHOOK_SECRET", ""),
			Timeout:       p.duration("TELR_TIMEOUT", 5*time.Second),
		},
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(p.errs, "; "))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case "gorm", "memory":
	default:
		return fmt.Errorf("config: STORAGE must be gorm or memory, got %q", c.Storage)
	}
	if c.Storage == "gorm" {
		switch c.Database.Driver {
		case "mysql", "postgres":
		default:
			return fmt.Errorf("config: DB_DRIVER must be mysql or postgres, got %q", c.Database.Driver)
		}
	}
	switch c.Events.Broker {
	case "none", "rabbitmq", "kafka":
	default:
		return fmt.Errorf("config: EVENT_BROKER must be rabbitmq, kafka or none, got %q", c.Events.Broker)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.DeliveryFee.IsNegative() || c.Pricing.InstallationFee.IsNegative() {
		return fmt.Errorf("config: tax rate and fees must not be negative")
	}
	if c.Payment.VerifyAttempts < 1 {
		return fmt.Errorf("config: PAYMENT_VERIFY_ATTEMPTS must be at least 1")
	}
	return nil
}

type parser struct {
	getenv func(string) string
	errs   []string
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (p *parser) floating(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (p *parser) money(key, def string) decimal.Decimal {
	v := p.str(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v", key, err))
		return decimal.Zero
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
