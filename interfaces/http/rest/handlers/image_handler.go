package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"imagio-backend/application/commands"
	"imagio-backend/application/commands/bus"
	"imagio-backend/application/queries"
	querybus "imagio-backend/application/queries/bus"
	"imagio-backend/domain/core/entities"
	"imagio-backend/pkg/auth"
	appErrors "imagio-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxMultipartMemory bounds how much of an upload stays in memory before
// spilling to disk
const maxMultipartMemory = 32 << 20

// ImageHandler handles image-related HTTP requests
type ImageHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errHandler *appErrors.ErrorHandler
	logger     *zap.Logger
}

// NewImageHandler creates a new image handler
func NewImageHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *appErrors.ErrorHandler,
	logger *zap.Logger,
) *ImageHandler {
	return &ImageHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errHandler: errHandler,
		logger:     logger,
	}
}

// Upload handles POST /images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Missing image file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Failed to read image payload")
		return
	}

	cmd := &commands.UploadImageCommand{
		UserID:           userCtx.UserID,
		Data:             data,
		Filename:         header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		Title:            r.FormValue("title"),
		Description:      r.FormValue("description"),
		Category:         r.FormValue("category"),
		Tags:             splitTags(r.FormValue("tags")),
		IsPublic:         parseBool(r.FormValue("isPublic")),
		IsBackgroundOnly: parseBool(r.FormValue("isBackgroundOnly")),
		RemoveBackground: parseBool(r.FormValue("removeBackground")),
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	node, ok := result.(*entities.ImageNode)
	if !ok {
		h.errHandler.HandleStatus(w, r, http.StatusInternalServerError, "Unexpected upload result")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, queries.BuildImageView(node))
}

// GetImage handles GET /images/{imageID}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetImageQuery{
		UserID:  userCtx.UserID,
		ImageID: imageID,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// ListImages handles GET /images
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	query := queries.ListImagesQuery{
		UserID:   userCtx.UserID,
		Category: r.URL.Query().Get("category"),
		Tags:     r.URL.Query()["tag"],
		Limit:    limit,
		Offset:   offset,
	}
	if v := r.URL.Query().Get("public"); v != "" {
		isPublic := parseBool(v)
		query.IsPublic = &isPublic
	}
	if v := r.URL.Query().Get("backgroundOnly"); v != "" {
		backgroundOnly := parseBool(v)
		query.BackgroundOnly = &backgroundOnly
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// ListBackgrounds handles GET /backgrounds
func (h *ImageHandler) ListBackgrounds(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.ListBackgroundsQuery{
		UserID:    userCtx.UserID,
		ExcludeID: r.URL.Query().Get("exclude"),
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// DeleteImage handles DELETE /images/{imageID}
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	cmd := &commands.DeleteImageCommand{
		UserID:  userCtx.UserID,
		ImageID: imageID,
	}

	if _, err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetVersions handles GET /images/{imageID}/versions
func (h *ImageHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetVersionsQuery{
		UserID:         userCtx.UserID,
		ImageID:        imageID,
		IncludeDeleted: parseBool(r.URL.Query().Get("includeDeleted")),
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// GetHistory handles GET /images/{imageID}/history
func (h *ImageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetHistoryQuery{
		UserID:  userCtx.UserID,
		ImageID: imageID,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// requireImageRequest extracts the authenticated user and a valid imageID
// path parameter, writing the error response itself when either is missing
func (h *ImageHandler) requireImageRequest(w http.ResponseWriter, r *http.Request) (*auth.UserContext, string, bool) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusUnauthorized, "Unauthorized")
		return nil, "", false
	}

	imageID := chi.URLParam(r, "imageID")
	if imageID == "" {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Image ID is required")
		return nil, "", false
	}
	if _, err := uuid.Parse(imageID); err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Invalid image ID format")
		return nil, "", false
	}

	return userCtx, imageID, true
}

// Helper functions shared by the REST handlers

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}
