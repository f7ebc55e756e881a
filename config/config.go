package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreAirtable = "airtable"
	StorePostgres = "postgres"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Store      StoreConfig
	Airtable   AirtableConfig
	Postgres   PostgresConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Cloudinary CloudinaryConfig
	Twilio     TwilioConfig
	Vision     VisionConfig
	QuickBooks QuickBooksConfig
	Inventory  InventoryConfig
}

type ServerConfig struct {
	AppEnv      string
	HTTPPort    string
	GRPCPort    string
	CORSOrigins string
	BodyLimitMB int
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type StoreConfig struct {
	Backend string
}

type AirtableConfig struct {
	APIKey        string
	BaseID        string
	BaseURL       string
	LotsTable     string
	SalesTable    string
	ProductsTable string
	UsersTable    string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type JWTConfig struct {
	SecretKey    string
	CookieName   string
	TTL          time.Duration
	SecureCookie bool
}

// RedisConfig is optional; an empty Addr selects the in-process lot lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// KafkaConfig is optional; no brokers disables event publishing and the listener.
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	OutboundTopic string
	GroupID       string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
}

type VisionConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

type QuickBooksConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Environment  string
	AppURL       string
}

type InventoryConfig struct {
	LowStockThreshold float64
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:      getEnv("APP_ENV", "dev"),
			HTTPPort:    getEnv("HTTP_PORT", ":8080"),
			GRPCPort:    getEnv("GRPC_PORT", ":8082"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			BodyLimitMB: getEnvInt("BODY_LIMIT_MB", 25),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreAirtable)),
		},
		Airtable: AirtableConfig{
			APIKey:        getEnv("AIRTABLE_API_KEY", ""),
			BaseID:        getEnv("AIRTABLE_BASE_ID", ""),
			BaseURL:       getEnv("AIRTABLE_BASE_URL", ""),
			LotsTable:     getEnv("AIRTABLE_LOTS_TABLE", "Lots"),
			SalesTable:    getEnv("AIRTABLE_SALES_TABLE", "Sales"),
			ProductsTable: getEnv("AIRTABLE_PRODUCTS_TABLE", "Products"),
			UsersTable:    getEnv("AIRTABLE_USERS_TABLE", "Users"),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "xprestrack"),
			Password:        getEnv("POSTGRES_PASSWORD", "xprestrack"),
			DBName:          getEnv("POSTGRES_DB", "xprestrack"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		JWT: JWTConfig{
			SecretKey:    getEnv("JWT_SECRET_KEY", "your-secret-key-change-this-in-prod"),
			CookieName:   getEnv("JWT_COOKIE_NAME", "auth-token"),
			TTL:          time.Duration(getEnvInt("JWT_TTL_HOURS", 24*7)) * time.Hour,
			SecureCookie: getEnvBool("JWT_SECURE_COOKIE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  time.Duration(getEnvInt("REDIS_LOCK_TTL_SECONDS", 10)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvSlice("KAFKA_BROKERS", nil),
			EventsTopic:   getEnv("KAFKA_TOPIC_INVENTORY", "inventory.events"),
			OutboundTopic: getEnv("KAFKA_TOPIC_OUTBOUND", ""),
			GroupID:       getEnv("KAFKA_GROUP_INVENTORY", "xprestrack"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "xprestrack"),
		},
		Twilio: TwilioConfig{
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		},
		Vision: VisionConfig{
			APIKey:         getEnv("VISION_API_KEY", ""),
			BaseURL:        getEnv("VISION_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
			Model:          getEnv("VISION_MODEL", "openai/gpt-4o-mini"),
			TimeoutSeconds: getEnvInt("VISION_TIMEOUT_SECONDS", 30),
		},
		QuickBooks: QuickBooksConfig{
			ClientID:     getEnv("QUICKBOOKS_CLIENT_ID", ""),
			ClientSecret: getEnv("QUICKBOOKS_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("QUICKBOOKS_REDIRECT_URI", "http://localhost:8080/quickbooks/callback"),
			Environment:  getEnv("QUICKBOOKS_ENVIRONMENT", "sandbox"),
			AppURL:       getEnv("APP_URL", "http://localhost:3000"),
		},
		Inventory: InventoryConfig{
			LowStockThreshold: getEnvFloat("LOW_STOCK_THRESHOLD", 20),
		},
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreAirtable:
		if c.Airtable.APIKey == "" || c.Airtable.BaseID == "" {
			return fmt.Errorf("AIRTABLE_API_KEY and AIRTABLE_BASE_ID are required for the airtable store")
		}
	case StorePostgres:
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Inventory.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return fallback
}
