package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - for parent/children lookups
	ImageBucket   string
	PublicBaseURL string // optional CDN base for image URLs
	EventBusName  string

	// AI providers
	StabilityAPIKey string
	OpenAIAPIKey    string
	VisionModel     string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Generation throttling
	GenerationRatePerMinute int

	// Feature flags
	EnableCORS bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "imagio")),
		IndexName:     getEnv("INDEX_NAME", "ParentIndex"), // GSI1
		ImageBucket:   getEnv("IMAGE_BUCKET", "imagio-images"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		EventBusName:  getEnv("EVENT_BUS_NAME", "imagio-events"),

		// AI providers
		StabilityAPIKey: getEnv("STABILITY_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		VisionModel:     getEnv("VISION_MODEL", "gpt-4o-mini"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "imagio-backend"),

		// Throttling, logging and features
		GenerationRatePerMinute: getEnvInt("GENERATION_RATE_PER_MINUTE", 10),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		EnableCORS:              getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.ImageBucket == "" {
			return fmt.Errorf("IMAGE_BUCKET is required")
		}
		if c.StabilityAPIKey == "" {
			return fmt.Errorf("STABILITY_API_KEY is required in production")
		}
	}
	if c.GenerationRatePerMinute <= 0 {
		return fmt.Errorf("GENERATION_RATE_PER_MINUTE must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
