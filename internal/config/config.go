package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	RunAddress  string        // Адрес и порт HTTP API администратора
	DatabaseURI string        // URI подключения к БД
	BotToken    string        // Токен Telegram-бота
	JWTSecret   string        // Секретный ключ для JWT
	JWTTokenTTL time.Duration // Время жизни JWT токена
	LogLevel    string        // Уровень логирования

	// Oson: проверка входящих переводов
	OsonBaseURL  string
	OsonPhone    string
	OsonPassword string

	// Источник курса RUB -> UZS
	RatesURL string
	RatesTTL time.Duration

	// Диспетчер обновлений
	DispatchLanes     int // Число полос (воркеров)
	DispatchQueueSize int // Емкость полосы
}

// Load загружает конфигурацию из переменных окружения и флагов
// Приоритет: env переменные > флаги > дефолтные значения
func Load() (*Config, error) {
	cfg := &Config{
		JWTTokenTTL:       24 * time.Hour,
		LogLevel:          "info",
		RatesTTL:          10 * time.Minute,
		DispatchLanes:     16,
		DispatchQueueSize: 64,
	}

	flag.StringVar(&cfg.RunAddress, "a", ":8080", "address and port to run admin API")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RatesURL, "r", "https://cbu.uz/ru/arkhiv-kursov-valyut/json/", "exchange rates endpoint")
	flag.Parse()

	if envRunAddr, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.RunAddress = envRunAddr
	}

	if envDBURI, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.DatabaseURI = envDBURI
	}

	if envRatesURL, ok := os.LookupEnv("RATES_URL"); ok {
		cfg.RatesURL = envRatesURL
	}

	// Секреты только из env, не из флагов
	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.OsonBaseURL = os.Getenv("OSON_BASE_URL")
	cfg.OsonPhone = os.Getenv("OSON_PHONE")
	cfg.OsonPassword = os.Getenv("OSON_PASSWORD")

	if envJWTSecret, ok := os.LookupEnv("JWT_SECRET"); ok {
		cfg.JWTSecret = envJWTSecret
	} else {
		cfg.JWTSecret = "default-secret-key-change-in-production"
	}

	if envLogLevel, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = envLogLevel
	}

	if envRatesTTL, ok := os.LookupEnv("RATES_TTL"); ok {
		if ttl, err := time.ParseDuration(envRatesTTL); err == nil && ttl > 0 {
			cfg.RatesTTL = ttl
		}
	}

	if envLanes, ok := os.LookupEnv("DISPATCH_LANES"); ok {
		if lanes, err := strconv.Atoi(envLanes); err == nil && lanes > 0 {
			cfg.DispatchLanes = lanes
		}
	}

	if envQueueSize, ok := os.LookupEnv("DISPATCH_QUEUE_SIZE"); ok {
		if size, err := strconv.Atoi(envQueueSize); err == nil && size > 0 {
			cfg.DispatchQueueSize = size
		}
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required (use -d flag or DATABASE_URI env)")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required (BOT_TOKEN env)")
	}

	return cfg, nil
}
