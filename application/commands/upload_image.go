package commands

import "fmt"

// UploadImageCommand represents the command to ingest a new original image
type UploadImageCommand struct {
	UserID           string   `json:"user_id" validate:"required"`
	Data             []byte   `json:"-"`
	Filename         string   `json:"filename" validate:"required,max=255"`
	MimeType         string   `json:"mime_type" validate:"required"`
	Title            string   `json:"title" validate:"max=200"`
	Description      string   `json:"description" validate:"max=2000"`
	Category         string   `json:"category" validate:"omitempty,oneof=portrait landscape product art other"`
	Tags             []string `json:"tags" validate:"max=20,dive,min=1,max=30"`
	IsPublic         bool     `json:"is_public"`
	IsBackgroundOnly bool     `json:"is_background_only"`

	// RemoveBackground runs the provider's background removal before
	// storing, so the root node holds the isolated subject
	RemoveBackground bool `json:"remove_background"`
}

// Validate validates the command
func (c *UploadImageCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("image payload is empty")
	}
	if c.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}
