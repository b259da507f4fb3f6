package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Upload constraints
	MaxUploadBytes    int64
	AllowedMimeTypes  []string
	MaxFilenameLength int

	// Image metadata constraints
	MaxTagsPerImage      int
	MaxTitleLength       int
	MaxDescriptionLength int
	MaxPromptLength      int

	// Version tree constraints
	MaxChildrenPerImage int
	MaxTreeDepth        int

	// Performance limits
	MaxImagesPerQuery int

	// Time constraints
	GenerationTimeout time.Duration
	VisionTimeout     time.Duration

	// Feature flags
	EnableVisionPrompts bool
	EnableOCR           bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Upload constraints
		MaxUploadBytes:    25 * 1024 * 1024,
		AllowedMimeTypes:  []string{"image/png", "image/jpeg", "image/webp"},
		MaxFilenameLength: 255,

		// Image metadata constraints
		MaxTagsPerImage:      20,
		MaxTitleLength:       200,
		MaxDescriptionLength: 2000,
		MaxPromptLength:      4000,

		// Version tree constraints
		MaxChildrenPerImage: 100,
		MaxTreeDepth:        50,

		// Performance limits
		MaxImagesPerQuery: 1000,

		// Time constraints
		GenerationTimeout: 90 * time.Second,
		VisionTimeout:     30 * time.Second,

		// Feature flags
		EnableVisionPrompts: true,
		EnableOCR:           true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// More restrictive limits for production
	config.MaxUploadBytes = 15 * 1024 * 1024
	config.MaxChildrenPerImage = 50
	config.MaxImagesPerQuery = 500

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// More permissive for development
	config.MaxUploadBytes = 100 * 1024 * 1024
	config.MaxChildrenPerImage = 1000
	config.GenerationTimeout = 5 * time.Minute

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// IsMimeTypeAllowed reports whether the given mime type may be uploaded
func (c *DomainConfig) IsMimeTypeAllowed(mimeType string) bool {
	for _, m := range c.AllowedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}
