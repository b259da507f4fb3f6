package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imagio-backend/application/ports"
	"imagio-backend/application/queries"
	"imagio-backend/domain/core/aggregates"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

// maxTreeWalk caps how many nodes a single tree load will touch
const maxTreeWalk = 500

// GetVersionsHandler handles version tree and lineage queries
type GetVersionsHandler struct {
	images ports.ImageRepository
	logger *zap.Logger
}

// NewGetVersionsHandler creates a new version tree handler
func NewGetVersionsHandler(images ports.ImageRepository, logger *zap.Logger) *GetVersionsHandler {
	return &GetVersionsHandler{images: images, logger: logger}
}

// Handle loads the whole tree the image belongs to and returns every version
// ordered by creation time. Soft deleted versions are kept only on request.
func (h *GetVersionsHandler) Handle(ctx context.Context, query queries.GetVersionsQuery) (*queries.GetVersionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	imageID, err := valueobjects.NewImageIDFromString(query.ImageID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid image ID")
	}

	tree, err := h.loadTree(ctx, query.UserID, imageID)
	if err != nil {
		return nil, err
	}

	versions := tree.AllVersions()
	if !query.IncludeDeleted {
		versions = tree.ActiveVersions()
	}

	views := make([]queries.ImageView, 0, len(versions))
	for _, node := range versions {
		views = append(views, queries.BuildImageView(node))
	}

	return &queries.GetVersionsResult{
		RootID:   tree.Root().ID().String(),
		Versions: views,
		Depth:    tree.Depth(),
	}, nil
}

// HandleHistory returns the root-first derivation path of a single version
func (h *GetVersionsHandler) HandleHistory(ctx context.Context, query queries.GetHistoryQuery) (*queries.GetHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	imageID, err := valueobjects.NewImageIDFromString(query.ImageID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid image ID")
	}

	tree, err := h.loadTree(ctx, query.UserID, imageID)
	if err != nil {
		return nil, err
	}

	path, err := tree.History(imageID)
	if err != nil {
		return nil, err
	}

	views := make([]queries.ImageView, 0, len(path))
	for _, node := range path {
		views = append(views, queries.BuildImageView(node))
	}
	return &queries.GetHistoryResult{History: views}, nil
}

// loadTree walks from the requested node up to the root, then breadth-first
// down through children, and assembles the aggregate. Deleted nodes are
// loaded too; lineage through a deleted ancestor must stay walkable.
func (h *GetVersionsHandler) loadTree(ctx context.Context, userID string, id valueobjects.ImageID) (*aggregates.VersionTree, error) {
	start, err := h.images.GetByIDIncludingDeleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	// Ascend to the root
	root := start
	seen := map[string]bool{root.ID().String(): true}
	for root.ParentID() != nil {
		if len(seen) > maxTreeWalk {
			return nil, appErrors.NewInternalError("version tree exceeds traversal limit")
		}
		parent, err := h.images.GetByIDIncludingDeleted(ctx, userID, *root.ParentID())
		if err != nil {
			h.logger.Warn("broken parent link in version tree",
				zap.String("imageID", root.ID().String()),
				zap.String("parentID", root.ParentID().String()),
				zap.Error(err),
			)
			break
		}
		if seen[parent.ID().String()] {
			return nil, appErrors.NewInternalError("cycle detected in version tree")
		}
		seen[parent.ID().String()] = true
		root = parent
	}

	// Descend breadth first
	nodes := []*entities.ImageNode{root}
	collected := map[string]bool{root.ID().String(): true}
	queue := []*entities.ImageNode{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := h.images.GetChildren(ctx, userID, current.ID())
		if err != nil {
			h.logger.Warn("children lookup failed during tree load",
				zap.String("imageID", current.ID().String()),
				zap.Error(err),
			)
			continue
		}
		for _, child := range children {
			if collected[child.ID().String()] {
				continue
			}
			if len(nodes) >= maxTreeWalk {
				return nil, appErrors.NewInternalError("version tree exceeds traversal limit")
			}
			collected[child.ID().String()] = true
			nodes = append(nodes, child)
			queue = append(queue, child)
		}
	}

	return aggregates.BuildVersionTree(nodes)
}
