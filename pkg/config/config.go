package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared by Load and tests.
const (
	EnvAppEnv          = "GATEWAY_APP_ENV"
	EnvPort            = "GATEWAY_APP_PORT"
	EnvCommerceBaseURL = "GATEWAY_COMMERCE_BASE_URL"
	EnvRedisURL        = "GATEWAY_REDIS_URL"
	EnvJWTSecret       = "GATEWAY_JWT_SECRET"
	EnvJWTIssuer       = "GATEWAY_JWT_ISSUER"
	EnvSuccessURL      = "GATEWAY_CHECKOUT_SUCCESS_URL"
	EnvCancelURL       = "GATEWAY_CHECKOUT_CANCEL_URL"
)

type Config struct {
	App      AppConfig
	Commerce CommerceConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Journal  JournalConfig
	Pricing  PricingConfig
	Stripe   StripeConfig
	PayPal   PayPalConfig
	CORS     CORSConfig
	Checkout CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GATEWAY_APP_ENV" required:"true"`
	Port         string `envconfig:"GATEWAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GATEWAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GATEWAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CommerceConfig points the gateway at the upstream commerce REST API.
type CommerceConfig struct {
	BaseURL        string        `envconfig:"GATEWAY_COMMERCE_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"GATEWAY_COMMERCE_REQUEST_TIMEOUT" default:"10s"`
	RetryAttempts  int           `envconfig:"GATEWAY_COMMERCE_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"GATEWAY_COMMERCE_RETRY_BASE_DELAY" default:"100ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GATEWAY_REDIS_URL" required:"true"`
	Password     string        `envconfig:"GATEWAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GATEWAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GATEWAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GATEWAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GATEWAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GATEWAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GATEWAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"GATEWAY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"GATEWAY_JWT_ISSUER" required:"true"`
}

// JournalConfig locates the local discrepancy journal.
type JournalConfig struct {
	Path string `envconfig:"GATEWAY_JOURNAL_PATH" default:"checkout_journal.db"`
}

// PricingConfig drives totals derivation when the upstream omits aggregates.
type PricingConfig struct {
	TaxRate               string `envconfig:"GATEWAY_PRICING_TAX_RATE" default:"0.10"`
	FreeShippingThreshold string `envconfig:"GATEWAY_PRICING_FREE_SHIPPING_THRESHOLD" default:"100"`
	FlatShippingFee       string `envconfig:"GATEWAY_PRICING_FLAT_SHIPPING_FEE" default:"10"`
}

func (p PricingConfig) validate() error {
	for name, raw := range map[string]string{
		"tax rate":                p.TaxRate,
		"free shipping threshold": p.FreeShippingThreshold,
		"flat shipping fee":       p.FlatShippingFee,
	} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}
	return nil
}

// TaxRateDecimal returns the parsed tax rate; validate() runs at Load time.
func (p PricingConfig) TaxRateDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(p.TaxRate)
	return d
}

func (p PricingConfig) FreeShippingThresholdDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(p.FreeShippingThreshold)
	return d
}

func (p PricingConfig) FlatShippingFeeDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(p.FlatShippingFee)
	return d
}

type StripeConfig struct {
	APIKey         string `envconfig:"GATEWAY_STRIPE_API_KEY"`
	PublishableKey string `envconfig:"GATEWAY_STRIPE_PUBLISHABLE_KEY"`
	Env            string `envconfig:"GATEWAY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID     string `envconfig:"GATEWAY_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"GATEWAY_PAYPAL_CLIENT_SECRET"`
	Env          string `envconfig:"GATEWAY_PAYPAL_ENV" default:"sandbox"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"GATEWAY_CORS_ALLOWED_ORIGINS" default:"*"`
}

// CheckoutConfig scopes the checkout session lifecycle.
type CheckoutConfig struct {
	SuccessURL string        `envconfig:"GATEWAY_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string        `envconfig:"GATEWAY_CHECKOUT_CANCEL_URL" required:"true"`
	SessionTTL time.Duration `envconfig:"GATEWAY_CHECKOUT_SESSION_TTL" default:"2h"`
	Currency   string        `envconfig:"GATEWAY_CHECKOUT_CURRENCY" default:"USD"`
}
