package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cryptobroker/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Broker   BrokerConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret      string
	EncryptionKey  string
	SessionTimeout int
}

// BrokerConfig - настройки подключения к бирже и поведения брокера
type BrokerConfig struct {
	// Биржа и учетные данные
	Exchange    string
	APIKey      string
	APISecret   string
	APIPassword string // passphrase, нужен не всем биржам

	// Режимы работы
	Sandbox         bool // торговля на testnet
	UsePositions    bool // стартовая синхронизация позиций с биржи
	EnableRateLimit bool
	Debug           bool // эхо-логирование всех вызовов биржи

	// Таймауты и переподключение
	Timeout   time.Duration // таймаут HTTP запросов к бирже (0 = общий пул)
	Reconnect int           // повторы handshake после первой неудачной попытки, -1 = бесконечно

	// Учет средств
	BaseCurrency string  // валюта для GetCash/GetValue
	MakerFee     float64 // комиссия мейкера, доля (0.001 = 0.1%)
	TakerFee     float64 // комиссия тейкера

	// Периодические задачи (для UI, на торговлю не влияют)
	BalanceUpdateFreq time.Duration

	// Config - полная замена параметров сессии (EXCHANGE_CONFIG,
	// JSON). Непустая map замещает учетные данные и таймауты
	// целиком, дискретные поля выше игнорируются.
	Config map[string]interface{}

	// Options - дополнительные venue-специфичные опции клиента
	// (EXCHANGE_OPTIONS, JSON объект строк), передаются привязке
	// как есть
	Options map[string]string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "cryptobroker"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Broker: BrokerConfig{
			Exchange:    strings.ToLower(getEnv("EXCHANGE", "binance")),
			APIKey:      getEnv("API_KEY", ""),
			APISecret:   getEnv("API_SECRET", ""),
			APIPassword: getEnv("API_PASSWORD", ""),

			Sandbox:         getEnvAsBool("SANDBOX", false),
			UsePositions:    getEnvAsBool("USE_POSITIONS", true),
			EnableRateLimit: getEnvAsBool("ENABLE_RATE_LIMIT", true),
			Debug:           getEnvAsBool("DEBUG", false),

			Timeout:   getEnvAsDuration("EXCHANGE_TIMEOUT", 0),
			Reconnect: getEnvAsInt("RECONNECT", 5),

			BaseCurrency: strings.ToUpper(getEnv("BASE_CURRENCY", "USDT")),
			MakerFee:     getEnvAsFloat("MAKER_FEE", 0.001),
			TakerFee:     getEnvAsFloat("TAKER_FEE", 0.001),

			BalanceUpdateFreq: getEnvAsDuration("BALANCE_UPDATE_FREQ", 1*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.parseBrokerMaps(); err != nil {
		return nil, err
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	if err := cfg.decryptSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseBrokerMaps разбирает JSON переменные EXCHANGE_CONFIG
// (полный override сессии) и EXCHANGE_OPTIONS (опции привязки)
func (c *Config) parseBrokerMaps() error {
	if raw := os.Getenv("EXCHANGE_CONFIG"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Broker.Config); err != nil {
			return fmt.Errorf("EXCHANGE_CONFIG must be a JSON object: %w", err)
		}
	}

	if raw := os.Getenv("EXCHANGE_OPTIONS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Broker.Options); err != nil {
			return fmt.Errorf("EXCHANGE_OPTIONS must be a JSON object of strings: %w", err)
		}
	}

	return nil
}

// decryptSecrets расшифровывает API секреты, хранящиеся в зашифрованном
// виде. Значение с префиксом "enc:" считается base64 шифртекстом AES-256-GCM
// под ENCRYPTION_KEY, без префикса - открытым текстом.
func (c *Config) decryptSecrets() error {
	key := []byte(c.Security.EncryptionKey)

	for _, field := range []*string{&c.Broker.APISecret, &c.Broker.APIPassword} {
		if !strings.HasPrefix(*field, "enc:") {
			continue
		}
		plain, err := crypto.DecryptSecret(strings.TrimPrefix(*field, "enc:"), key)
		if err != nil {
			return fmt.Errorf("failed to decrypt API secret: %w", err)
		}
		*field = plain
	}

	return nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей бирж
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for authentication")
	}

	if c.Security.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed from default value in production")
	}

	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Broker.Exchange == "" {
		return fmt.Errorf("EXCHANGE cannot be empty")
	}

	// -1 = бесконечный handshake, иначе неотрицательное число попыток
	if c.Broker.Reconnect < -1 {
		return fmt.Errorf("RECONNECT must be -1 or non-negative, got %d", c.Broker.Reconnect)
	}

	if c.Broker.Timeout < 0 {
		return fmt.Errorf("EXCHANGE_TIMEOUT cannot be negative, got %v", c.Broker.Timeout)
	}

	if c.Broker.MakerFee < 0 || c.Broker.MakerFee >= 1 {
		return fmt.Errorf("MAKER_FEE must be in [0, 1), got %f", c.Broker.MakerFee)
	}

	if c.Broker.TakerFee < 0 || c.Broker.TakerFee >= 1 {
		return fmt.Errorf("TAKER_FEE must be in [0, 1), got %f", c.Broker.TakerFee)
	}

	if c.Security.SessionTimeout < 60 {
		return fmt.Errorf("SESSION_TIMEOUT must be at least 60 seconds, got %d", c.Security.SessionTimeout)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
