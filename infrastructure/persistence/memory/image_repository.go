// Package memory provides an in-memory ImageRepository used by local
// development mode and the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"imagio-backend/application/ports"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

// ImageRepository stores node snapshots keyed by owner and ID.
// Snapshots are copied in and out, so callers never share entity state.
type ImageRepository struct {
	mu      sync.RWMutex
	records map[string]entities.ImageNodeRecord
}

// NewImageRepository creates an empty in-memory repository
func NewImageRepository() *ImageRepository {
	return &ImageRepository{records: make(map[string]entities.ImageNodeRecord)}
}

func key(userID, imageID string) string {
	return userID + "/" + imageID
}

// Save persists the node's snapshot
func (r *ImageRepository) Save(ctx context.Context, node *entities.ImageNode) error {
	rec := node.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key(rec.UserID, rec.ID)] = rec
	return nil
}

// GetByID retrieves a node scoped to its owner. Soft deleted nodes read as
// not found.
func (r *ImageRepository) GetByID(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	r.mu.RLock()
	rec, ok := r.records[key(userID, id.String())]
	r.mu.RUnlock()
	if !ok || rec.DeletedAt != nil {
		return nil, appErrors.ErrImageNotFound
	}
	return entities.ReconstructImageNode(rec)
}

// GetByIDIncludingDeleted retrieves a node regardless of deletion state
func (r *ImageRepository) GetByIDIncludingDeleted(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	r.mu.RLock()
	rec, ok := r.records[key(userID, id.String())]
	r.mu.RUnlock()
	if !ok {
		return nil, appErrors.ErrImageNotFound
	}
	return entities.ReconstructImageNode(rec)
}

// GetByIDAndIncrementViews retrieves a node and bumps its view counter.
// Soft deleted nodes read as not found and keep their count.
func (r *ImageRepository) GetByIDAndIncrementViews(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	r.mu.Lock()
	rec, ok := r.records[key(userID, id.String())]
	if ok && rec.DeletedAt == nil {
		rec.Views++
		r.records[key(userID, id.String())] = rec
	}
	r.mu.Unlock()
	if !ok || rec.DeletedAt != nil {
		return nil, appErrors.ErrImageNotFound
	}
	return entities.ReconstructImageNode(rec)
}

// AddChild appends a child reference to the parent's children set.
// Appending the same child twice is a no-op.
func (r *ImageRepository) AddChild(ctx context.Context, userID string, parentID, childID valueobjects.ImageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key(userID, parentID.String())]
	if !ok {
		return appErrors.ErrImageNotFound
	}
	for _, c := range rec.Children {
		if c == childID.String() {
			return nil
		}
	}
	rec.Children = append(rec.Children, childID.String())
	r.records[key(userID, parentID.String())] = rec
	return nil
}

// ListByUser returns the user's nodes matching the filter, newest first
func (r *ImageRepository) ListByUser(ctx context.Context, userID string, filter ports.ImageFilter) ([]*entities.ImageNode, error) {
	r.mu.RLock()
	var recs []entities.ImageNodeRecord
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.DeletedAt != nil {
			continue
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(recs) {
			recs = nil
		} else {
			recs = recs[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(recs) > filter.Limit {
		recs = recs[:filter.Limit]
	}

	return reconstructAll(recs)
}

// ListBackgrounds returns the user's reusable background assets
func (r *ImageRepository) ListBackgrounds(ctx context.Context, userID string, excludeID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	r.mu.RLock()
	var recs []entities.ImageNodeRecord
	for _, rec := range r.records {
		if rec.UserID != userID || !rec.IsBackgroundOnly || rec.DeletedAt != nil {
			continue
		}
		if rec.ID == excludeID.String() {
			continue
		}
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return reconstructAll(recs)
}

// GetChildren returns the direct children of a node
func (r *ImageRepository) GetChildren(ctx context.Context, userID string, parentID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	r.mu.RLock()
	var recs []entities.ImageNodeRecord
	for _, rec := range r.records {
		if rec.UserID == userID && rec.ParentID == parentID.String() {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	return reconstructAll(recs)
}

// SoftDelete marks a node deleted while keeping its record
func (r *ImageRepository) SoftDelete(ctx context.Context, userID string, id valueobjects.ImageID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key(userID, id.String())]
	if !ok {
		return appErrors.ErrImageNotFound
	}
	rec.Status = string(entities.StatusDeleted)
	rec.DeletedAt = &at
	rec.UpdatedAt = at
	r.records[key(userID, id.String())] = rec
	return nil
}

// HardDelete removes a node permanently
func (r *ImageRepository) HardDelete(ctx context.Context, userID string, id valueobjects.ImageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key(userID, id.String()))
	return nil
}

func matchesFilter(rec entities.ImageNodeRecord, filter ports.ImageFilter) bool {
	if filter.IsPublic != nil && rec.IsPublic != *filter.IsPublic {
		return false
	}
	if filter.Category != "" && rec.Category != filter.Category {
		return false
	}
	if filter.BackgroundOnly != nil && rec.IsBackgroundOnly != *filter.BackgroundOnly {
		return false
	}
	for _, want := range filter.Tags {
		found := false
		for _, tag := range rec.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func reconstructAll(recs []entities.ImageNodeRecord) ([]*entities.ImageNode, error) {
	nodes := make([]*entities.ImageNode, 0, len(recs))
	for _, rec := range recs {
		node, err := entities.ReconstructImageNode(rec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
