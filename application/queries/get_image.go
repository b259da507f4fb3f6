package queries

import "errors"

// GetImageQuery represents a query to get a single image version
type GetImageQuery struct {
	UserID  string
	ImageID string
}

// Validate validates the GetImageQuery
func (q GetImageQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ImageID == "" {
		return errors.New("image ID is required")
	}
	return nil
}

// GetImageResult carries the requested version plus its immediate relatives
type GetImageResult struct {
	Image    ImageView   `json:"image"`
	Parent   *ImageView  `json:"parent,omitempty"`
	Children []ImageView `json:"children"`
}
