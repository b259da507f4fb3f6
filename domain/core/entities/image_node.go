package entities

import (
	"fmt"
	"time"

	"imagio-backend/domain/config"
	"imagio-backend/domain/core/valueobjects"
	"imagio-backend/domain/events"
	pkgerrors "imagio-backend/pkg/errors"
)

// ImageStatus represents the lifecycle state of an image node
type ImageStatus string

const (
	StatusUploading  ImageStatus = "uploading"
	StatusProcessing ImageStatus = "processing"
	StatusCompleted  ImageStatus = "completed"
	StatusFailed     ImageStatus = "failed"
	StatusDeleted    ImageStatus = "deleted"
)

// Category classifies an image for browsing and filtering
type Category string

const (
	CategoryPortrait  Category = "portrait"
	CategoryLandscape Category = "landscape"
	CategoryProduct   Category = "product"
	CategoryArt       Category = "art"
	CategoryOther     Category = "other"
)

// EditOperation identifies the kind of AI edit that produced a version
type EditOperation string

const (
	OpRemoveBackground  EditOperation = "remove-background"
	OpReplaceBackground EditOperation = "replace-background"
	OpEnhance           EditOperation = "enhance"
	OpColorize          EditOperation = "colorize"
	OpUpscale           EditOperation = "upscale"
	OpInpaint           EditOperation = "inpaint"
	OpOutpaint          EditOperation = "outpaint"
	OpStyleTransfer     EditOperation = "style-transfer"
	OpObjectRemoval     EditOperation = "object-removal"
	OpTextToImage       EditOperation = "text-to-image"
	OpImageToImage      EditOperation = "image-to-image"
	OpCustom            EditOperation = "custom"
)

// Provider identifies the AI service that performed an edit
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderStabilityAI Provider = "stability-ai"
	ProviderMidjourney  Provider = "midjourney"
	ProviderReplicate   Provider = "replicate"
	ProviderCustom      Provider = "custom"
)

// AIEdit records provenance for a single AI operation applied to an image
type AIEdit struct {
	Operation      EditOperation
	Provider       Provider
	Prompt         string
	Parameters     map[string]string
	Timestamp      time.Time
	ProcessingTime time.Duration
	Cost           float64
}

// BlobInfo carries the stored-file attributes of an image
type BlobInfo struct {
	URL              string
	ThumbnailURL     string
	StorageKey       string
	ThumbnailKey     string
	Filename         string
	OriginalFilename string
	MimeType         string
	Size             int64
}

// ImageNode is the main entity representing one version of an image.
// Versions form a tree: every edit creates a child node that references
// its parent, and the parent records the child in its children set.
type ImageNode struct {
	// Private fields ensure encapsulation
	id               valueobjects.ImageID
	userID           string
	parentID         *valueobjects.ImageID
	children         []valueobjects.ImageID
	isOriginal       bool
	isBackgroundOnly bool
	version          int
	blob             BlobInfo
	dimensions       valueobjects.Dimensions
	aiEdits          []AIEdit
	status           ImageStatus
	processingError  string
	tags             []string
	title            string
	description      string
	category         Category
	isPublic         bool
	shareToken       string
	views            int
	downloads        int
	createdAt        time.Time
	updatedAt        time.Time
	deletedAt        *time.Time

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NewOriginalImage creates a root node for a freshly uploaded image
func NewOriginalImage(userID string, blob BlobInfo, dims valueobjects.Dimensions) (*ImageNode, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if blob.StorageKey == "" {
		return nil, pkgerrors.NewValidationError("storage key cannot be empty")
	}
	if dims.IsZero() {
		return nil, pkgerrors.ErrInvalidDimensions
	}

	now := time.Now()
	node := &ImageNode{
		id:         valueobjects.NewImageID(),
		userID:     userID,
		parentID:   nil,
		children:   []valueobjects.ImageID{},
		isOriginal: true,
		version:    1,
		blob:       blob,
		dimensions: dims,
		aiEdits:    []AIEdit{},
		status:     StatusCompleted,
		tags:       []string{},
		category:   CategoryOther,
		createdAt:  now,
		updatedAt:  now,
		events:     []events.DomainEvent{},
	}

	node.addEvent(events.NewImageUploaded(node.id, userID, blob.Filename, blob.Size, now))

	return node, nil
}

// NewDerivedImage creates a child version from a parent node.
// The parent must be a completed, undeleted image owned by the same user.
// The child's version is always the parent's version plus one.
func NewDerivedImage(parent *ImageNode, blob BlobInfo, dims valueobjects.Dimensions, edit AIEdit) (*ImageNode, error) {
	if parent == nil {
		return nil, pkgerrors.ErrParentNotFound
	}
	if parent.IsDeleted() {
		return nil, pkgerrors.ErrImageDeleted
	}
	if parent.status != StatusCompleted {
		return nil, pkgerrors.ErrImageNotReady
	}
	if blob.StorageKey == "" {
		return nil, pkgerrors.NewValidationError("storage key cannot be empty")
	}
	if dims.IsZero() {
		return nil, pkgerrors.ErrInvalidDimensions
	}
	if edit.Operation == "" {
		return nil, pkgerrors.NewValidationError("edit operation cannot be empty")
	}

	if edit.Timestamp.IsZero() {
		edit.Timestamp = time.Now()
	}

	parentID := parent.id
	now := time.Now()
	node := &ImageNode{
		id:               valueobjects.NewImageID(),
		userID:           parent.userID,
		parentID:         &parentID,
		children:         []valueobjects.ImageID{},
		isOriginal:       false,
		isBackgroundOnly: false,
		version:          parent.version + 1,
		blob:             blob,
		dimensions:       dims,
		aiEdits:          []AIEdit{edit},
		status:           StatusCompleted,
		tags:             []string{},
		category:         parent.category,
		isPublic:         parent.isPublic,
		createdAt:        now,
		updatedAt:        now,
		events:           []events.DomainEvent{},
	}

	node.addEvent(events.NewVersionCreated(
		node.id,
		parentID,
		parent.userID,
		string(edit.Operation),
		node.version,
		now,
	))

	return node, nil
}

// ImageNodeRecord is the flat representation used to rebuild an entity
// from the repository and to persist it back
type ImageNodeRecord struct {
	ID               string
	UserID           string
	ParentID         string
	Children         []string
	IsOriginal       bool
	IsBackgroundOnly bool
	Version          int
	URL              string
	ThumbnailURL     string
	StorageKey       string
	ThumbnailKey     string
	Filename         string
	OriginalFilename string
	MimeType         string
	Size             int64
	Width            int
	Height           int
	AIEdits          []AIEdit
	Status           string
	ProcessingError  string
	Tags             []string
	Title            string
	Description      string
	Category         string
	IsPublic         bool
	ShareToken       string
	Views            int
	Downloads        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// ReconstructImageNode rebuilds a node from repository data with preserved
// timestamps and version. No events are raised.
func ReconstructImageNode(rec ImageNodeRecord) (*ImageNode, error) {
	id, err := valueobjects.NewImageIDFromString(rec.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid image ID: %v", err))
	}
	if rec.UserID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	var parentID *valueobjects.ImageID
	if rec.ParentID != "" {
		pid, err := valueobjects.NewImageIDFromString(rec.ParentID)
		if err != nil {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid parent ID: %v", err))
		}
		parentID = &pid
	}

	// Original images have no parent and version 1; derived images always
	// reference a parent. The two must stay in sync.
	if rec.IsOriginal && parentID != nil {
		return nil, pkgerrors.NewValidationError("original image cannot have a parent")
	}
	if !rec.IsOriginal && parentID == nil {
		return nil, pkgerrors.NewValidationError("derived image must have a parent")
	}
	if rec.Version < 1 {
		return nil, pkgerrors.NewValidationError("version must be at least 1")
	}

	dims, err := valueobjects.NewDimensions(rec.Width, rec.Height)
	if err != nil {
		return nil, pkgerrors.ErrInvalidDimensions
	}

	children := make([]valueobjects.ImageID, 0, len(rec.Children))
	for _, c := range rec.Children {
		cid, err := valueobjects.NewImageIDFromString(c)
		if err != nil {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid child ID: %v", err))
		}
		children = append(children, cid)
	}

	edits := make([]AIEdit, len(rec.AIEdits))
	copy(edits, rec.AIEdits)

	tags := make([]string, len(rec.Tags))
	copy(tags, rec.Tags)

	category := Category(rec.Category)
	if category == "" {
		category = CategoryOther
	}

	node := &ImageNode{
		id:               id,
		userID:           rec.UserID,
		parentID:         parentID,
		children:         children,
		isOriginal:       rec.IsOriginal,
		isBackgroundOnly: rec.IsBackgroundOnly,
		version:          rec.Version,
		blob: BlobInfo{
			URL:              rec.URL,
			ThumbnailURL:     rec.ThumbnailURL,
			StorageKey:       rec.StorageKey,
			ThumbnailKey:     rec.ThumbnailKey,
			Filename:         rec.Filename,
			OriginalFilename: rec.OriginalFilename,
			MimeType:         rec.MimeType,
			Size:             rec.Size,
		},
		dimensions:      dims,
		aiEdits:         edits,
		status:          ImageStatus(rec.Status),
		processingError: rec.ProcessingError,
		tags:            tags,
		title:           rec.Title,
		description:     rec.Description,
		category:        category,
		isPublic:        rec.IsPublic,
		shareToken:      rec.ShareToken,
		views:           rec.Views,
		downloads:       rec.Downloads,
		createdAt:       rec.CreatedAt,
		updatedAt:       rec.UpdatedAt,
		deletedAt:       rec.DeletedAt,
		events:          []events.DomainEvent{},
	}

	return node, nil
}

// Snapshot returns the flat representation for persistence
func (n *ImageNode) Snapshot() ImageNodeRecord {
	parentID := ""
	if n.parentID != nil {
		parentID = n.parentID.String()
	}

	children := make([]string, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c.String())
	}

	edits := make([]AIEdit, len(n.aiEdits))
	copy(edits, n.aiEdits)

	tags := make([]string, len(n.tags))
	copy(tags, n.tags)

	return ImageNodeRecord{
		ID:               n.id.String(),
		UserID:           n.userID,
		ParentID:         parentID,
		Children:         children,
		IsOriginal:       n.isOriginal,
		IsBackgroundOnly: n.isBackgroundOnly,
		Version:          n.version,
		URL:              n.blob.URL,
		ThumbnailURL:     n.blob.ThumbnailURL,
		StorageKey:       n.blob.StorageKey,
		ThumbnailKey:     n.blob.ThumbnailKey,
		Filename:         n.blob.Filename,
		OriginalFilename: n.blob.OriginalFilename,
		MimeType:         n.blob.MimeType,
		Size:             n.blob.Size,
		Width:            n.dimensions.Width(),
		Height:           n.dimensions.Height(),
		AIEdits:          edits,
		Status:           string(n.status),
		ProcessingError:  n.processingError,
		Tags:             tags,
		Title:            n.title,
		Description:      n.description,
		Category:         string(n.category),
		IsPublic:         n.isPublic,
		ShareToken:       n.shareToken,
		Views:            n.views,
		Downloads:        n.downloads,
		CreatedAt:        n.createdAt,
		UpdatedAt:        n.updatedAt,
		DeletedAt:        n.deletedAt,
	}
}

// ID returns the node's unique identifier
func (n *ImageNode) ID() valueobjects.ImageID {
	return n.id
}

// UserID returns the owner's ID
func (n *ImageNode) UserID() string {
	return n.userID
}

// ParentID returns the parent node's ID, or nil for originals
func (n *ImageNode) ParentID() *valueobjects.ImageID {
	if n.parentID == nil {
		return nil
	}
	pid := *n.parentID
	return &pid
}

// Children returns the IDs of all derived versions
func (n *ImageNode) Children() []valueobjects.ImageID {
	// Return a copy to maintain encapsulation
	children := make([]valueobjects.ImageID, len(n.children))
	copy(children, n.children)
	return children
}

// IsOriginal reports whether this node is a tree root
func (n *ImageNode) IsOriginal() bool {
	return n.isOriginal
}

// IsBackgroundOnly reports whether this node is a standalone background asset
func (n *ImageNode) IsBackgroundOnly() bool {
	return n.isBackgroundOnly
}

// Version returns the node's depth-based version number
func (n *ImageNode) Version() int {
	return n.version
}

// Blob returns the stored-file attributes
func (n *ImageNode) Blob() BlobInfo {
	return n.blob
}

// URL returns the public URL of the stored image
func (n *ImageNode) URL() string {
	return n.blob.URL
}

// StorageKey returns the blob store key
func (n *ImageNode) StorageKey() string {
	return n.blob.StorageKey
}

// ThumbnailStorageKey returns the blob store key of the thumbnail, if any
func (n *ImageNode) ThumbnailStorageKey() string {
	return n.blob.ThumbnailKey
}

// Dimensions returns the pixel dimensions
func (n *ImageNode) Dimensions() valueobjects.Dimensions {
	return n.dimensions
}

// Edits returns the AI edit provenance chain for this node
func (n *ImageNode) Edits() []AIEdit {
	edits := make([]AIEdit, len(n.aiEdits))
	copy(edits, n.aiEdits)
	return edits
}

// Status returns the node's current status
func (n *ImageNode) Status() ImageStatus {
	return n.status
}

// ProcessingError returns the last processing failure message
func (n *ImageNode) ProcessingError() string {
	return n.processingError
}

// Tags returns all tags
func (n *ImageNode) Tags() []string {
	tags := make([]string, len(n.tags))
	copy(tags, n.tags)
	return tags
}

// Title returns the image title
func (n *ImageNode) Title() string {
	return n.title
}

// Description returns the image description
func (n *ImageNode) Description() string {
	return n.description
}

// Category returns the image category
func (n *ImageNode) Category() Category {
	return n.category
}

// IsPublic reports whether the image is shared publicly
func (n *ImageNode) IsPublic() bool {
	return n.isPublic
}

// ShareToken returns the public share token, if any
func (n *ImageNode) ShareToken() string {
	return n.shareToken
}

// Views returns the read counter
func (n *ImageNode) Views() int {
	return n.views
}

// Downloads returns the download counter
func (n *ImageNode) Downloads() int {
	return n.downloads
}

// CreatedAt returns when the node was created
func (n *ImageNode) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *ImageNode) UpdatedAt() time.Time {
	return n.updatedAt
}

// DeletedAt returns when the node was soft deleted, or nil
func (n *ImageNode) DeletedAt() *time.Time {
	if n.deletedAt == nil {
		return nil
	}
	t := *n.deletedAt
	return &t
}

// IsDeleted reports whether the node has been soft deleted
func (n *ImageNode) IsDeleted() bool {
	return n.status == StatusDeleted
}

// IsEditable reports whether the node can serve as an edit source
func (n *ImageNode) IsEditable() bool {
	return n.status == StatusCompleted
}

// RegisterChild adds a derived version's ID to the children set.
// Registering the same child twice is a no-op.
func (n *ImageNode) RegisterChild(childID valueobjects.ImageID) {
	for _, c := range n.children {
		if c.Equals(childID) {
			return
		}
	}
	n.children = append(n.children, childID)
	n.updatedAt = time.Now()
}

// MarkProcessing transitions the node into the processing state
func (n *ImageNode) MarkProcessing() error {
	if n.IsDeleted() {
		return pkgerrors.ErrImageDeleted
	}
	n.status = StatusProcessing
	n.updatedAt = time.Now()
	return nil
}

// MarkCompleted transitions the node into the completed state
func (n *ImageNode) MarkCompleted() error {
	if n.IsDeleted() {
		return pkgerrors.ErrImageDeleted
	}
	n.status = StatusCompleted
	n.processingError = ""
	n.updatedAt = time.Now()
	return nil
}

// MarkFailed records a processing failure
func (n *ImageNode) MarkFailed(reason string) {
	n.status = StatusFailed
	n.processingError = reason
	n.updatedAt = time.Now()

	n.addEvent(events.NewProcessingFailed(n.id, reason, n.updatedAt))
}

// SoftDelete marks the node deleted without removing it from the tree.
// Deleted nodes stay traversable so version history remains intact.
func (n *ImageNode) SoftDelete() error {
	if n.IsDeleted() {
		return nil // Already deleted
	}

	now := time.Now()
	n.status = StatusDeleted
	n.deletedAt = &now
	n.updatedAt = now

	n.addEvent(events.NewImageDeleted(n.id, n.userID, now))

	return nil
}

// RecordEdit appends an AI edit to the provenance chain
func (n *ImageNode) RecordEdit(edit AIEdit) error {
	if edit.Operation == "" {
		return pkgerrors.NewValidationError("edit operation cannot be empty")
	}
	if edit.Timestamp.IsZero() {
		edit.Timestamp = time.Now()
	}

	n.aiEdits = append(n.aiEdits, edit)
	n.updatedAt = time.Now()

	return nil
}

// AddTag adds a tag to the node
func (n *ImageNode) AddTag(tag string) error {
	return n.AddTagWithConfig(tag, config.DefaultDomainConfig())
}

// AddTagWithConfig adds a tag to the node with configuration
func (n *ImageNode) AddTagWithConfig(tag string, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if tag == "" {
		return pkgerrors.NewValidationError("tag cannot be empty")
	}

	// Check for duplicate
	for _, t := range n.tags {
		if t == tag {
			return nil // Tag already exists
		}
	}

	// Check tag limit
	if len(n.tags) >= cfg.MaxTagsPerImage {
		return fmt.Errorf("maximum tags reached: %d", cfg.MaxTagsPerImage)
	}

	n.tags = append(n.tags, tag)
	n.updatedAt = time.Now()

	return nil
}

// SetMetadata updates title, description and category together
func (n *ImageNode) SetMetadata(title, description string, category Category) error {
	cfg := config.DefaultDomainConfig()
	if len(title) > cfg.MaxTitleLength {
		return pkgerrors.NewValidationError(fmt.Sprintf("title exceeds %d characters", cfg.MaxTitleLength))
	}
	if len(description) > cfg.MaxDescriptionLength {
		return pkgerrors.NewValidationError(fmt.Sprintf("description exceeds %d characters", cfg.MaxDescriptionLength))
	}

	n.title = title
	n.description = description
	if category != "" {
		n.category = category
	}
	n.updatedAt = time.Now()

	return nil
}

// SetBackgroundOnly flags the node as a standalone background asset
func (n *ImageNode) SetBackgroundOnly(backgroundOnly bool) {
	n.isBackgroundOnly = backgroundOnly
	n.updatedAt = time.Now()
}

// SetPublic updates the public sharing flag
func (n *ImageNode) SetPublic(public bool) {
	n.isPublic = public
	n.updatedAt = time.Now()
}

// SetShareToken sets the public share token
func (n *ImageNode) SetShareToken(token string) {
	n.shareToken = token
	n.updatedAt = time.Now()
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *ImageNode) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *ImageNode) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

// addEvent adds a domain event to the uncommitted list
func (n *ImageNode) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
