package commands

import "fmt"

// DeleteImageCommand represents the command to soft delete an image.
// The stored blob is destroyed; the node record survives with deleted
// status so the version tree stays traversable.
type DeleteImageCommand struct {
	UserID  string `json:"user_id" validate:"required"`
	ImageID string `json:"image_id" validate:"required,uuid"`
}

// Validate validates the command
func (c *DeleteImageCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.ImageID == "" {
		return fmt.Errorf("image ID is required")
	}
	return nil
}
