package ports

import (
	"context"
	"time"

	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	"imagio-backend/domain/events"
)

// ImageRepository defines the interface for image node persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ImageRepository interface {
	// Save persists an image node (create or update)
	Save(ctx context.Context, node *entities.ImageNode) error

	// GetByID retrieves a node by its ID, scoped to its owner. Soft
	// deleted nodes are not found.
	GetByID(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error)

	// GetByIDIncludingDeleted retrieves a node even after soft deletion.
	// Tree traversal uses this so deleted ancestors keep the lineage intact.
	GetByIDIncludingDeleted(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error)

	// GetByIDAndIncrementViews retrieves a node and atomically bumps its
	// view counter. The returned node reflects the incremented count.
	// Soft deleted nodes are not found and not counted.
	GetByIDAndIncrementViews(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error)

	// AddChild atomically appends a child ID to a parent's children set.
	// Concurrent appends for different children must both survive.
	AddChild(ctx context.Context, userID string, parentID, childID valueobjects.ImageID) error

	// ListByUser retrieves non-deleted nodes for a user matching the filter
	ListByUser(ctx context.Context, userID string, filter ImageFilter) ([]*entities.ImageNode, error)

	// ListBackgrounds retrieves the user's background-only nodes, excluding
	// the given image and its deleted versions
	ListBackgrounds(ctx context.Context, userID string, excludeID valueobjects.ImageID) ([]*entities.ImageNode, error)

	// GetChildren retrieves all direct child versions of a node
	GetChildren(ctx context.Context, userID string, parentID valueobjects.ImageID) ([]*entities.ImageNode, error)

	// SoftDelete marks a node deleted and records the deletion time
	SoftDelete(ctx context.Context, userID string, id valueobjects.ImageID, at time.Time) error

	// HardDelete removes a node permanently. User-facing deletion is always
	// soft; this exists solely to roll back an orphaned child whose parent
	// linkage failed, before the node was ever visible.
	HardDelete(ctx context.Context, userID string, id valueobjects.ImageID) error
}

// ImageFilter narrows ListByUser results
type ImageFilter struct {
	IsPublic       *bool
	Category       string
	Tags           []string
	BackgroundOnly *bool
	Limit          int
	Offset         int
}

// BlobStore defines the interface for binary image storage
type BlobStore interface {
	// Put stores a blob under the given key and returns its public URL
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get fetches a blob and its content type by key
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
