package queries

import (
	"time"

	"imagio-backend/domain/core/entities"
)

// ImageView is the read-model projection of an image node
type ImageView struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	ParentID         string     `json:"parentId,omitempty"`
	Children         []string   `json:"children"`
	IsOriginal       bool       `json:"isOriginal"`
	IsBackgroundOnly bool       `json:"isBackgroundOnly"`
	Version          int        `json:"version"`
	URL              string     `json:"url"`
	ThumbnailURL     string     `json:"thumbnailUrl,omitempty"`
	MimeType         string     `json:"mimeType"`
	Size             int64      `json:"size"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	Status           string     `json:"status"`
	Title            string     `json:"title,omitempty"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category"`
	Tags             []string   `json:"tags"`
	IsPublic         bool       `json:"isPublic"`
	Views            int        `json:"views"`
	Edits            []EditView `json:"edits,omitempty"`
	CreatedAt        string     `json:"createdAt"`
	UpdatedAt        string     `json:"updatedAt"`
	DeletedAt        string     `json:"deletedAt,omitempty"`
}

// EditView is the read-model projection of one AI edit
type EditView struct {
	Operation        string  `json:"operation"`
	Provider         string  `json:"provider"`
	Prompt           string  `json:"prompt,omitempty"`
	Timestamp        string  `json:"timestamp"`
	ProcessingTimeMS int64   `json:"processingTimeMs"`
	Cost             float64 `json:"cost,omitempty"`
}

// BuildImageView projects an entity into its read model
func BuildImageView(node *entities.ImageNode) ImageView {
	rec := node.Snapshot()

	edits := make([]EditView, 0, len(rec.AIEdits))
	for _, e := range rec.AIEdits {
		edits = append(edits, EditView{
			Operation:        string(e.Operation),
			Provider:         string(e.Provider),
			Prompt:           e.Prompt,
			Timestamp:        e.Timestamp.Format(time.RFC3339),
			ProcessingTimeMS: e.ProcessingTime.Milliseconds(),
			Cost:             e.Cost,
		})
	}

	view := ImageView{
		ID:               rec.ID,
		UserID:           rec.UserID,
		ParentID:         rec.ParentID,
		Children:         rec.Children,
		IsOriginal:       rec.IsOriginal,
		IsBackgroundOnly: rec.IsBackgroundOnly,
		Version:          rec.Version,
		URL:              rec.URL,
		ThumbnailURL:     rec.ThumbnailURL,
		MimeType:         rec.MimeType,
		Size:             rec.Size,
		Width:            rec.Width,
		Height:           rec.Height,
		Status:           rec.Status,
		Title:            rec.Title,
		Description:      rec.Description,
		Category:         rec.Category,
		Tags:             rec.Tags,
		IsPublic:         rec.IsPublic,
		Views:            rec.Views,
		Edits:            edits,
		CreatedAt:        rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.DeletedAt != nil {
		view.DeletedAt = rec.DeletedAt.Format(time.RFC3339)
	}
	return view
}
