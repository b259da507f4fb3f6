package handlers

import (
	"encoding/json"
	"net/http"

	"imagio-backend/application/commands"
	"imagio-backend/application/commands/bus"
	commandHandlers "imagio-backend/application/commands/handlers"
	"imagio-backend/application/queries"
	querybus "imagio-backend/application/queries/bus"
	"imagio-backend/pkg/auth"
	appErrors "imagio-backend/pkg/errors"
	"imagio-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerationHandler handles AI edit HTTP requests
type GenerationHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errHandler *appErrors.ErrorHandler
	logger     *zap.Logger
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *appErrors.ErrorHandler,
	logger *zap.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errHandler: errHandler,
		logger:     logger,
	}
}

// GenerateRequest represents the request body for creating a new version
type GenerateRequest struct {
	Kind           string  `json:"kind" validate:"required"`
	Prompt         string  `json:"prompt,omitempty" validate:"max=4000"`
	NegativePrompt string  `json:"negativePrompt,omitempty" validate:"max=4000"`
	StylePreset    string  `json:"stylePreset,omitempty" validate:"max=100"`
	Seed           *int64  `json:"seed,omitempty"`
	Width          int     `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height         int     `json:"height,omitempty" validate:"omitempty,gt=0"`
	BackgroundID   string  `json:"backgroundId,omitempty" validate:"omitempty,uuid"`
	RegionX        int     `json:"regionX,omitempty" validate:"gte=0"`
	RegionY        int     `json:"regionY,omitempty" validate:"gte=0"`
	RegionWidth    int     `json:"regionWidth,omitempty" validate:"omitempty,gt=0"`
	RegionHeight   int     `json:"regionHeight,omitempty" validate:"omitempty,gt=0"`
	BlurSigma      float64 `json:"blurSigma,omitempty"`
	LogoID         string  `json:"logoId,omitempty" validate:"omitempty,uuid"`
}

// GenerateResponse returns the freshly created version together with its
// source image, whose children now include the new version
type GenerateResponse struct {
	Source queries.ImageView `json:"source"`
	Image  queries.ImageView `json:"image"`
}

// Generate handles POST /images/{imageID}/generations
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errHandler.HandleStatus(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	cmd := &commands.GenerateVersionCommand{
		UserID:         userCtx.UserID,
		ImageID:        imageID,
		Kind:           commands.GenerationKind(req.Kind),
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		StylePreset:    req.StylePreset,
		Seed:           req.Seed,
		Width:          req.Width,
		Height:         req.Height,
		BackgroundID:   req.BackgroundID,
		RegionX:        req.RegionX,
		RegionY:        req.RegionY,
		RegionWidth:    req.RegionWidth,
		RegionHeight:   req.RegionHeight,
		BlurSigma:      req.BlurSigma,
		LogoID:         req.LogoID,
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	outcome, ok2 := result.(*commandHandlers.GenerationOutcome)
	if !ok2 {
		h.errHandler.HandleStatus(w, r, http.StatusInternalServerError, "Unexpected generation result")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, GenerateResponse{
		Source: queries.BuildImageView(outcome.Source),
		Image:  queries.BuildImageView(outcome.Image),
	})
}

// ExtractText handles GET /images/{imageID}/text
func (h *GenerationHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ExtractTextQuery{
		UserID:  userCtx.UserID,
		ImageID: imageID,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

// RecognizeItems handles GET /images/{imageID}/items
func (h *GenerationHandler) RecognizeItems(w http.ResponseWriter, r *http.Request) {
	userCtx, imageID, ok := h.requireImageRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.RecognizeItemsQuery{
		UserID:  userCtx.UserID,
		ImageID: imageID,
	})
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, result)
}

func (h *GenerationHandler) requireImageRequest(w http.ResponseWriter, r *http.Request) (*auth.UserContext, string, bool) {
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
