// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек всех процессов Splickets.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Kafka                   `yaml:"kafka"`
	PaymentProvider         `yaml:"payment_provider"`
	FlightProvider          `yaml:"flight_provider"`
	GeoIP                   `yaml:"geoip"`
	SMTP                    `yaml:"smtp"`
	Booking                 `yaml:"booking"`
	Reconciler              `yaml:"reconciler"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit запросов в секунду на одного клиента.
	RateLimit float64 `yaml:"rate_limit" env-default:"5"`
	RateBurst int     `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки подключения к брокеру очередей.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Kafka настройки публикации событий бронирований. Пустой список брокеров отключает публикацию.
type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	BookingTopic string   `yaml:"booking_topic" env-default:"splickets.bookings"`
}

// PaymentProvider настройки платёжного процессора.
type PaymentProvider struct {
	PaymentAPIURL    string        `yaml:"api_url" env-default:"https://api.stripe.com/v1"`
	PaymentSecretKey string        `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	WebhookSecret    string        `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance" env-default:"5m"`
	PaymentTimeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// FlightProvider настройки API поставщика данных о рейсах.
type FlightProvider struct {
	FlightAPIURL   string        `yaml:"api_url" env:"FLIGHT_API_URL"`
	FlightAPIKey   string        `yaml:"api_key" env:"FLIGHT_API_KEY"`
	FlightTimeout  time.Duration `yaml:"timeout" env-default:"15s"`
	SearchCacheTTL time.Duration `yaml:"cache_ttl" env-default:"5m"`
	OfferTTL       time.Duration `yaml:"offer_ttl" env-default:"30m"`
}

// GeoIP настройки сервиса геолокации по IP.
type GeoIP struct {
	GeoAPIURL   string        `yaml:"api_url" env:"GEOIP_API_URL" env-default:"https://ipapi.co"`
	GeoTimeout  time.Duration `yaml:"timeout" env-default:"3s"`
	GeoCacheTTL time.Duration `yaml:"cache_ttl" env-default:"24h"`
}

// SMTP настройки отправки писем. Пустой SMTPHost отключает отправку.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom string `yaml:"from" env:"SMTP_FROM"`
}

// Booking параметры бронирования и рассрочки.
type Booking struct {
	DepositPercent   int           `yaml:"deposit_percent" env-default:"20"`
	MinDepositMinor  int64         `yaml:"min_deposit_minor" env-default:"5000"`
	MaxInstallments  int           `yaml:"max_installments" env-default:"6"`
	FinalPaymentLead time.Duration `yaml:"final_payment_lead" env-default:"336h"`
	ReferralDiscount int           `yaml:"referral_discount_percent" env-default:"5"`
}

// Reconciler параметры фонового восстановления рассрочек.
type Reconciler struct {
	Interval    time.Duration `yaml:"interval" env-default:"5m"`
	GracePeriod time.Duration `yaml:"grace_period" env-default:"10m"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
}

// ErrConfigPathNotSet возвращается, если путь к конфигу не задан.
var (
	ErrConfigPathNotSet = errors.New("CONFIG_PATH is not set")
	// ErrOfferTTL предложение из кэша поиска должно жить не меньше самого кэша.
	ErrOfferTTL = errors.New("flight_provider.offer_ttl must not be shorter than cache_ttl")
)

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	// .env не обязателен, переменные окружения могут прийти из оркестратора
	_ = godotenv.Load()

	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и накладывает значения переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if configPath == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrConfigPathNotSet)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.OfferTTL < cfg.SearchCacheTTL {
		return nil, fmt.Errorf("%s: %w (offer_ttl=%s, cache_ttl=%s)", op, ErrOfferTTL, cfg.OfferTTL, cfg.SearchCacheTTL)
	}
	return &cfg, nil
}

// EmailEnabled сообщает, настроена ли отправка писем.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"Kafka:\n"+
			"  Brokers: %v\n"+
			"  BookingTopic: %s\n"+
			"PaymentProvider:\n"+
			"  APIURL: %s\n"+
			"FlightProvider:\n"+
			"  APIURL: %s\n"+
			"  CacheTTL: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"Booking:\n"+
			"  DepositPercent: %d\n"+
			"  MaxInstallments: %d\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
		c.RabbitMQMaxRetries,
		c.Brokers,
		c.BookingTopic,
		c.PaymentAPIURL,
		c.FlightAPIURL,
		c.SearchCacheTTL,
		c.SMTPHost,
		c.DepositPercent,
		c.MaxInstallments,
	)
}
