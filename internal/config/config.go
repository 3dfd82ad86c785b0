package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	LogLevel  string
	LogFormat string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTSecret string // base64-encoded HMAC key
	JWTExpiry time.Duration
	JWTIssuer string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion      string
	SNSSenderID    string
	SMSCountryCode string // E.164 country code for numbers stored without one

	DeliveryTimeout time.Duration
	AllowedOrigins  []string // CORS allowed origins
	TrustedProxy    bool     // honor X-Forwarded-For / X-Real-IP from the fronting proxy
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Principals          string
	OTPCodes            string
	Roles               string
	RoleAssignments     string
	ExternalIdentifiers string
	AccountTypes        string
	Counters            string
	Uniques             string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Principals:          getEnv("DYNAMO_TABLE_PRINCIPALS", "principals"),
			OTPCodes:            getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			Roles:               getEnv("DYNAMO_TABLE_ROLES", "roles"),
			RoleAssignments:     getEnv("DYNAMO_TABLE_ROLE_ASSIGNMENTS", "role_assignments"),
			ExternalIdentifiers: getEnv("DYNAMO_TABLE_EXTERNAL_IDENTIFIERS", "external_identifiers"),
			AccountTypes:        getEnv("DYNAMO_TABLE_ACCOUNT_TYPES", "account_types"),
			Counters:            getEnv("DYNAMO_TABLE_COUNTERS", "counters"),
			Uniques:             getEnv("DYNAMO_TABLE_UNIQUES", "principal_uniques"),
		},
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getEnvDuration("JWT_EXPIRY", 10*time.Hour),
		JWTIssuer:       getEnv("JWT_ISSUER", "go-api-authcore"),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnv("SMTP_PORT", "1025"),
		SMTPFrom:        getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SNSRegion:       getEnv("SNS_REGION", "us-east-1"),
		SNSSenderID:     getEnv("SNS_SENDER_ID", ""),
		SMSCountryCode:  getEnv("SMS_DEFAULT_COUNTRY_CODE", "1"),
		DeliveryTimeout: getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxy:    getEnvBool("TRUSTED_PROXY", false),
	}
}

// SigningKey decodes JWTSecret. HS256 needs at least 32 bytes of key material.
func (c *Config) SigningKey() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decode JWT_SECRET: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must decode to at least 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n := getEnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
