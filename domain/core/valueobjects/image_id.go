package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ImageID is a value object representing a unique image identifier
// Value objects are immutable and have no identity beyond their value
type ImageID struct {
	value string
}

// NewImageID creates a new random ImageID
func NewImageID() ImageID {
	return ImageID{value: uuid.New().String()}
}

// NewImageIDFromString creates an ImageID from an existing string
func NewImageIDFromString(id string) (ImageID, error) {
	if id == "" {
		return ImageID{}, errors.New("image ID cannot be empty")
	}
	if !isValidUUID(id) {
		return ImageID{}, errors.New("image ID must be a valid UUID")
	}
	return ImageID{value: id}, nil
}

// String returns the string representation of the ImageID
func (id ImageID) String() string {
	return id.value
}

// Equals checks if two ImageIDs are equal
func (id ImageID) Equals(other ImageID) bool {
	return id.value == other.value
}

// IsZero checks if the ImageID is the zero value
func (id ImageID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ImageID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ImageID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ImageID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// isValidUUID validates if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
