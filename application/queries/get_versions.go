package queries

import "errors"

// GetVersionsQuery represents a query for every version in an image's tree
type GetVersionsQuery struct {
	UserID  string
	ImageID string
	// IncludeDeleted keeps soft deleted versions in the listing
	IncludeDeleted bool
}

// Validate validates the GetVersionsQuery
func (q GetVersionsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ImageID == "" {
		return errors.New("image ID is required")
	}
	return nil
}

// GetVersionsResult carries the full version tree flattened by creation time
type GetVersionsResult struct {
	RootID   string      `json:"rootId"`
	Versions []ImageView `json:"versions"`
	Depth    int         `json:"depth"`
}

// GetHistoryQuery represents a query for the lineage of a single version,
// from the original down to the requested node
type GetHistoryQuery struct {
	UserID  string
	ImageID string
}

// Validate validates the GetHistoryQuery
func (q GetHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ImageID == "" {
		return errors.New("image ID is required")
	}
	return nil
}

// GetHistoryResult carries the root-first derivation path
type GetHistoryResult struct {
	History []ImageView `json:"history"`
}
