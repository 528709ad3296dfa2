package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// アプリ全体の設定
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	JWT         JWTConfig
	Log         LogConfig
	Reservation ReservationConfig
	Pricing     PricingConfig
	Payment     PaymentConfig
}

type AppConfig struct {
	Name string
	Env  string // development / production / test
	Port string
}

type DatabaseConfig struct {
	Driver       string // postgres / sqlite
	URL          string // あれば最優先（postgres DSN / sqliteのファイル名）
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// 在庫引当まわり
type ReservationConfig struct {
	CartTTL       time.Duration
	CheckoutTTL   time.Duration
	SweepInterval time.Duration
	SweepEnabled  bool
}

type PricingConfig struct {
	FreeShippingThreshold string
	ShippingFee           string
}

type PaymentConfig struct {
	//決済コールバックの共有シークレット（X-Callback-Secret）
	CallbackSecret string
}

// 優先順位: 環境変数(SHOP_) > .env > config.toml > デフォルト
func Load() (Config, error) {
	//.envは無くてもよい
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	//boolの既定値はここで入れる
	v.SetDefault("reservation.sweep_enabled", true)

	return Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			URL:          v.GetString("database.url"),
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			DBName:       v.GetString("database.dbname"),
			SSLMode:      v.GetString("database.sslmode"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Reservation: ReservationConfig{
			CartTTL:       v.GetDuration("reservation.cart_ttl"),
			CheckoutTTL:   v.GetDuration("reservation.checkout_ttl"),
			SweepInterval: v.GetDuration("reservation.sweep_interval"),
			SweepEnabled:  v.GetBool("reservation.sweep_enabled"),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: v.GetString("pricing.free_shipping_threshold"),
			ShippingFee:           v.GetString("pricing.shipping_fee"),
		},
		Payment: PaymentConfig{
			CallbackSecret: v.GetString("payment.callback_secret"),
		},
	}
}

// 環境変数だと "a,b" の1要素で入ってくる
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shop-api"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "shop.events"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Reservation.CartTTL == 0 {
		cfg.Reservation.CartTTL = 30 * time.Minute
	}
	if cfg.Reservation.CheckoutTTL == 0 {
		cfg.Reservation.CheckoutTTL = 30 * time.Minute
	}
	if cfg.Reservation.SweepInterval == 0 {
		cfg.Reservation.SweepInterval = time.Minute
	}

	if cfg.Pricing.FreeShippingThreshold == "" {
		cfg.Pricing.FreeShippingThreshold = "500.00"
	}
	if cfg.Pricing.ShippingFee == "" {
		cfg.Pricing.ShippingFee = "15.00"
	}
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) validate() error {
	//必須チェック
	if c.JWT.Secret == "" {
		return errors.New("SHOP_JWT_SECRET is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.IsProduction() {
		if c.Database.SSLMode == "disable" {
			return errors.New("database sslmode must not be disable in production")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("jwt secret must be at least 32 characters in production")
		}
	}
	if c.Reservation.CartTTL <= 0 || c.Reservation.CheckoutTTL <= 0 {
		return errors.New("reservation ttl must be positive")
	}
	if c.Reservation.SweepInterval <= 0 {
		return errors.New("reservation sweep_interval must be positive")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required")
	}

	if _, err := c.Pricing.Threshold(); err != nil {
		return err
	}
	if _, err := c.Pricing.Fee(); err != nil {
		return err
	}
	return nil
}

func (p PricingConfig) Threshold() (decimal.Decimal, error) {
	return parseAmount("pricing.free_shipping_threshold", p.FreeShippingThreshold)
}

func (p PricingConfig) Fee() (decimal.Decimal, error) {
	return parseAmount("pricing.shipping_fee", p.ShippingFee)
}

func parseAmount(key, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must be >= 0", key)
	}
	return d, nil
}

// postgresの接続文字列
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
