// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Secrets     SecretsConfig
	AWS         AWSConfig
	Payment     PaymentConfig
	Email       EmailConfig
	Order       OrderConfig
	API         APIConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

// SecretsConfig selects where the crypto master secret comes from:
// "env", "file" or "aws" (Secrets Manager).
type SecretsConfig struct {
	Provider    string
	EnvVariable string
	FilePath    string
	AWSSecretID string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type PaymentConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
}

type EmailConfig struct {
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	FromEmail       string
	FromName        string
	DeliveryAddress string
}

type OrderConfig struct {
	DefaultGeneratorID int64
}

// APIConfig holds the machine credentials exchanged for access tokens.
// Clients is a comma-separated list of client_id:client_secret[:role]
// entries; the role defaults to "api".
type APIConfig struct {
	Clients string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "licenseforge"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24), // 24 hours
		},
		Secrets: SecretsConfig{
			Provider:    getEnv("SECRET_PROVIDER", "env"),
			EnvVariable: getEnv("SECRET_ENV_VARIABLE", "LICENSE_MASTER_SECRET"),
			FilePath:    getEnv("SECRET_FILE_PATH", ""),
			AWSSecretID: getEnv("SECRET_AWS_SECRET_ID", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "licenseforge-exports"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Email: EmailConfig{
			SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:        getEnv("SMTP_PORT", "587"),
			SMTPUsername:    getEnv("SMTP_USERNAME", ""),
			SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
			FromEmail:       getEnv("FROM_EMAIL", "noreply@licenseforge.io"),
			FromName:        getEnv("FROM_NAME", "LicenseForge"),
			DeliveryAddress: getEnv("DELIVERY_EMAIL", ""),
		},
		Order: OrderConfig{
			DefaultGeneratorID: int64(getEnvAsInt("ORDER_DEFAULT_GENERATOR_ID", 0)),
		},
		API: APIConfig{
			Clients: getEnv("API_CLIENTS", ""),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	switch c.Secrets.Provider {
	case "env":
	case "file":
		if c.Secrets.FilePath == "" {
			return fmt.Errorf("SECRET_FILE_PATH is required with the file secret provider")
		}
	case "aws":
		if c.Secrets.AWSSecretID == "" {
			return fmt.Errorf("SECRET_AWS_SECRET_ID is required with the aws secret provider")
		}
	default:
		return fmt.Errorf("unknown secret provider %q", c.Secrets.Provider)
	}

	return nil
}

// APIClient is one parsed entry from APIConfig.Clients.
type APIClient struct {
	ID     string
	Secret string
	Role   string
}

func (a APIConfig) ParseClients() []APIClient {
	var clients []APIClient
	for _, entry := range strings.Split(a.Clients, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			continue
		}
		client := APIClient{ID: parts[0], Secret: parts[1], Role: "api"}
		if len(parts) == 3 && parts[2] != "" {
			client.Role = parts[2]
		}
		clients = append(clients, client)
	}
	return clients
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
