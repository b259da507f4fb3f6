package queries

import "errors"

// ListImagesQuery represents a query to list a user's images
type ListImagesQuery struct {
	UserID         string
	IsPublic       *bool
	Category       string
	Tags           []string
	BackgroundOnly *bool
	Limit          int
	Offset         int
}

// Validate validates the ListImagesQuery
func (q ListImagesQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return errors.New("limit and offset must be non-negative")
	}
	return nil
}

// ListImagesResult carries a page of image projections
type ListImagesResult struct {
	Images  []ImageView `json:"images"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"hasMore"`
}

// ListBackgroundsQuery lists the user's reusable background assets
type ListBackgroundsQuery struct {
	UserID    string
	ExcludeID string
}

// Validate validates the ListBackgroundsQuery
func (q ListBackgroundsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// ListBackgroundsResult carries the available backgrounds
type ListBackgroundsResult struct {
	Backgrounds []ImageView `json:"backgrounds"`
}
