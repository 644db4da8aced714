package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Security      SecurityConfig      `json:"security"`
	Issuance      IssuanceConfig      `json:"issuance"`
	Notifications NotificationsConfig `json:"notifications"`
	Archive       ArchiveConfig       `json:"archive"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig holds JWT verification settings. Identity itself lives in an
// external provider; this service only validates tokens it is handed.
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// IssuanceConfig configures the credit issuance publisher
type IssuanceConfig struct {
	TopicARN         string        `json:"topic_arn"`
	Region           string        `json:"region"`
	DispatchInterval time.Duration `json:"dispatch_interval"`
	DispatchBatch    int           `json:"dispatch_batch"`
}

// NotificationsConfig configures decision event fan-out
type NotificationsConfig struct {
	TopicARN string `json:"topic_arn"`
}

// ArchiveConfig configures statement archival. An empty bucket keeps the
// archive in process memory, which is only useful for local development.
type ArchiveConfig struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "mrv_registry",
			SSLMode: "disable",
		},
		Issuance: IssuanceConfig{
			DispatchInterval: time.Minute,
			DispatchBatch:    50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if topic := os.Getenv("ISSUANCE_TOPIC_ARN"); topic != "" {
		config.Issuance.TopicARN = topic
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Issuance.Region = region
	}
	if topic := os.Getenv("NOTIFICATIONS_TOPIC_ARN"); topic != "" {
		config.Notifications.TopicARN = topic
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		config.Archive.Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Archive.Region = region
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
