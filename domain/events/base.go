package events

import (
	"time"

	"imagio-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Image Events

// ImageUploaded is raised when a new original image enters the system
type ImageUploaded struct {
	BaseEvent
	ImageID  valueobjects.ImageID `json:"image_id"`
	UserID   string               `json:"user_id"`
	Filename string               `json:"filename"`
	Size     int64                `json:"size"`
}

// NewImageUploaded creates an ImageUploaded event
func NewImageUploaded(imageID valueobjects.ImageID, userID, filename string, size int64, timestamp time.Time) ImageUploaded {
	return ImageUploaded{
		BaseEvent: BaseEvent{
			AggregateID: imageID.String(),
			EventType:   "image.uploaded",
			Timestamp:   timestamp,
			Version:     1,
		},
		ImageID:  imageID,
		UserID:   userID,
		Filename: filename,
		Size:     size,
	}
}

// VersionCreated is raised when an edit produces a new child version
type VersionCreated struct {
	BaseEvent
	ImageID     valueobjects.ImageID `json:"image_id"`
	ParentID    valueobjects.ImageID `json:"parent_id"`
	UserID      string               `json:"user_id"`
	Operation   string               `json:"operation"`
	NodeVersion int                  `json:"node_version"`
}

// NewVersionCreated creates a VersionCreated event
func NewVersionCreated(imageID, parentID valueobjects.ImageID, userID, operation string, nodeVersion int, timestamp time.Time) VersionCreated {
	return VersionCreated{
		BaseEvent: BaseEvent{
			AggregateID: imageID.String(),
			EventType:   "image.version_created",
			Timestamp:   timestamp,
			Version:     1,
		},
		ImageID:     imageID,
		ParentID:    parentID,
		UserID:      userID,
		Operation:   operation,
		NodeVersion: nodeVersion,
	}
}

// ProcessingFailed is raised when a generation attempt fails
type ProcessingFailed struct {
	BaseEvent
	ImageID valueobjects.ImageID `json:"image_id"`
	Reason  string               `json:"reason"`
}

// NewProcessingFailed creates a ProcessingFailed event
func NewProcessingFailed(imageID valueobjects.ImageID, reason string, timestamp time.Time) ProcessingFailed {
	return ProcessingFailed{
		BaseEvent: BaseEvent{
			AggregateID: imageID.String(),
			EventType:   "image.processing_failed",
			Timestamp:   timestamp,
			Version:     1,
		},
		ImageID: imageID,
		Reason:  reason,
	}
}

// ImageDeleted is raised when an image is soft deleted
type ImageDeleted struct {
	BaseEvent
	ImageID valueobjects.ImageID `json:"image_id"`
	UserID  string               `json:"user_id"`
}

// NewImageDeleted creates an ImageDeleted event
func NewImageDeleted(imageID valueobjects.ImageID, userID string, timestamp time.Time) ImageDeleted {
	return ImageDeleted{
		BaseEvent: BaseEvent{
			AggregateID: imageID.String(),
			EventType:   "image.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		ImageID: imageID,
		UserID:  userID,
	}
}
