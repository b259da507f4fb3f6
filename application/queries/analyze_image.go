package queries

import "errors"

// ExtractTextQuery runs OCR over a stored image without creating a version
type ExtractTextQuery struct {
	UserID  string
	ImageID string
}

// Validate validates the ExtractTextQuery
func (q ExtractTextQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ImageID == "" {
		return errors.New("image ID is required")
	}
	return nil
}

// ExtractTextResult carries the recognized text
type ExtractTextResult struct {
	Text string `json:"text"`
}

// RecognizeItemsQuery lists the objects visible in a stored image
type RecognizeItemsQuery struct {
	UserID  string
	ImageID string
}

// Validate validates the RecognizeItemsQuery
func (q RecognizeItemsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ImageID == "" {
		return errors.New("image ID is required")
	}
	return nil
}

// RecognizeItemsResult carries the recognized object labels
type RecognizeItemsResult struct {
	Items []string `json:"items"`
}
