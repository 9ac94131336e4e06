package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	Carts        CartConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TAJER_APP_ENV" required:"true"`
	Port         string `envconfig:"TAJER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TAJER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAJER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TAJER_DB_DSN"`
	Driver string `envconfig:"TAJER_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TAJER_DB_HOST"`
	Port     int    `envconfig:"TAJER_DB_PORT" default:"5432"`
	User     string `envconfig:"TAJER_DB_USER"`
	Password string `envconfig:"TAJER_DB_PASSWORD"`
	Name     string `envconfig:"TAJER_DB_NAME"`
	SSLMode  string `envconfig:"TAJER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TAJER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TAJER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TAJER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TAJER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TAJER_REDIS_URL"`
	Address      string        `envconfig:"TAJER_REDIS_ADDR"`
	Password     string        `envconfig:"TAJER_REDIS_PASSWORD"`
	DB           int           `envconfig:"TAJER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TAJER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TAJER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TAJER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TAJER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TAJER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PricingConfig carries the tax and shipping constants applied to every cart.
// The VAT rate is the statutory 15% unless overridden for test environments.
type PricingConfig struct {
	VATRate       string `envconfig:"TAJER_PRICING_VAT_RATE" default:"0.15"`
	ShippingBase  string `envconfig:"TAJER_PRICING_SHIPPING_BASE" default:"15.00"`
	ShippingPerKg string `envconfig:"TAJER_PRICING_SHIPPING_PER_KG" default:"2.00"`
	Currency      string `envconfig:"TAJER_PRICING_CURRENCY" default:"SAR"`
	vatRate       decimal.Decimal
	shippingBase  decimal.Decimal
	shippingPerKg decimal.Decimal
}

func (p *PricingConfig) validate() error {
	var err error
	if p.vatRate, err = decimal.NewFromString(p.VATRate); err != nil {
		return fmt.Errorf("invalid VAT rate %q: %w", p.VATRate, err)
	}
	if p.shippingBase, err = decimal.NewFromString(p.ShippingBase); err != nil {
		return fmt.Errorf("invalid shipping base %q: %w", p.ShippingBase, err)
	}
	if p.shippingPerKg, err = decimal.NewFromString(p.ShippingPerKg); err != nil {
		return fmt.Errorf("invalid shipping per-kg %q: %w", p.ShippingPerKg, err)
	}
	if p.vatRate.IsNegative() || p.shippingBase.IsNegative() || p.shippingPerKg.IsNegative() {
		return fmt.Errorf("pricing values must be non-negative")
	}
	return nil
}

// NewPricing builds a parsed PricingConfig from literal rates, bypassing
// the environment. Intended for tests and tooling.
func NewPricing(vatRate, shippingBase, shippingPerKg, currency string) (PricingConfig, error) {
	p := PricingConfig{
		VATRate:       vatRate,
		ShippingBase:  shippingBase,
		ShippingPerKg: shippingPerKg,
		Currency:      currency,
	}
	if err := p.validate(); err != nil {
		return PricingConfig{}, err
	}
	return p, nil
}

// VAT returns the parsed VAT rate.
func (p PricingConfig) VAT() decimal.Decimal {
	return p.vatRate
}

// BaseShipping returns the parsed flat shipping fee.
func (p PricingConfig) BaseShipping() decimal.Decimal {
	return p.shippingBase
}

// PerKgShipping returns the parsed per-kilogram shipping fee.
func (p PricingConfig) PerKgShipping() decimal.Decimal {
	return p.shippingPerKg
}

type CartConfig struct {
	TTL           time.Duration `envconfig:"TAJER_CART_TTL" default:"72h"`
	SweepInterval time.Duration `envconfig:"TAJER_CART_SWEEP_INTERVAL" default:"15m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TAJER_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
