// Package ai holds clients for the external generation and vision services.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"imagio-backend/application/ports"
	appErrors "imagio-backend/pkg/errors"
)

const (
	stabilityReplaceBackgroundURL = "https://api.stability.ai/v2beta/stable-image/edit/replace-background"
	stabilityRemoveBackgroundURL  = "https://api.stability.ai/v2beta/stable-image/edit/remove-background"
	stabilityTextToImageURL       = "https://api.stability.ai/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"

	defaultBackgroundPrompt = "Lifestyle product scene, soft studio lighting, high detail, DSLR depth of field"

	replaceBackgroundModel = "stable-image-replace-background"
	removeBackgroundModel  = "stable-image-remove-background"
	textToImageModel       = "stable-diffusion-xl-1024-v1-0"
)

// StabilityProvider implements the GenerationProvider port against the
// Stability AI API. Requests carrying a source image go to the
// replace-background edit endpoint; when that endpoint is unavailable the
// provider falls back to plain SDXL text-to-image.
type StabilityProvider struct {
	apiKey     string
	replaceURL string
	removeURL  string
	t2iURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStabilityProvider creates a new Stability AI client
func NewStabilityProvider(apiKey string, logger *zap.Logger) *StabilityProvider {
	return &StabilityProvider{
		apiKey:     apiKey,
		replaceURL: stabilityReplaceBackgroundURL,
		removeURL:  stabilityRemoveBackgroundURL,
		t2iURL:     stabilityTextToImageURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Name identifies the provider for edit provenance
func (p *StabilityProvider) Name() string { return "stability-ai" }

// Generate produces an image for the request
func (p *StabilityProvider) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.GeneratedImage, error) {
	if p.apiKey == "" {
		return nil, appErrors.NewProviderError(p.Name(), fmt.Errorf("API key not configured"))
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultBackgroundPrompt
	}

	if len(req.SourceImage) > 0 {
		data, err := p.replaceBackground(ctx, prompt, req)
		if err == nil {
			return &ports.GeneratedImage{
				Data:     data,
				MimeType: "image/png",
				Model:    replaceBackgroundModel,
			}, nil
		}
		if !isNotFound(err) {
			if _, ok := err.(*statusError); ok {
				return nil, appErrors.NewProviderError(p.Name(), err)
			}
			return nil, err
		}
		p.logger.Warn("replace-background endpoint unavailable, falling back to text-to-image")

		data, err = p.textToImage(ctx, prompt, req)
		if err != nil {
			return nil, err
		}
		return &ports.GeneratedImage{
			Data:         data,
			MimeType:     "image/png",
			Model:        textToImageModel,
			FallbackUsed: true,
		}, nil
	}

	data, err := p.textToImage(ctx, prompt, req)
	if err != nil {
		return nil, err
	}
	return &ports.GeneratedImage{
		Data:     data,
		MimeType: "image/png",
		Model:    textToImageModel,
	}, nil
}

// RemoveBackground isolates the subject on a transparent background
func (p *StabilityProvider) RemoveBackground(ctx context.Context, image []byte, mimeType string) (*ports.GeneratedImage, error) {
	if p.apiKey == "" {
		return nil, appErrors.NewProviderError(p.Name(), fmt.Errorf("API key not configured"))
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("image", "source"+extForMime(mimeType))
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if err := form.WriteField("output_format", "png"); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if err := form.Close(); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.removeURL, &buf)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "image/png")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.NewProviderError(p.Name(),
			&statusError{operation: "remove-background", status: resp.StatusCode, body: truncate(body)})
	}

	return &ports.GeneratedImage{
		Data:     body,
		MimeType: "image/png",
		Model:    removeBackgroundModel,
	}, nil
}

func extForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// statusError distinguishes HTTP failures so the 404 fallback can trigger
type statusError struct {
	operation string
	status    int
	body      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("stability %s failed (status %d): %s", e.operation, e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (p *StabilityProvider) replaceBackground(ctx context.Context, prompt string, req ports.GenerationRequest) ([]byte, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("image", "product.png")
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if _, err := part.Write(req.SourceImage); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}

	fields := map[string]string{
		"prompt":        prompt,
		"output_format": "png",
	}
	if req.NegativePrompt != "" {
		fields["negative_prompt"] = req.NegativePrompt
	}
	if req.StylePreset != "" {
		fields["style_preset"] = req.StylePreset
	}
	if req.Width > 0 {
		fields["width"] = strconv.Itoa(req.Width)
	}
	if req.Height > 0 {
		fields["height"] = strconv.Itoa(req.Height)
	}
	if req.Seed != nil {
		fields["seed"] = strconv.FormatInt(*req.Seed, 10)
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, appErrors.NewProviderError(p.Name(), err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.replaceURL, &buf)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "image/png")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{operation: "replace-background", status: resp.StatusCode, body: truncate(body)}
	}
	return body, nil
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type textToImagePayload struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	Seed        *int64       `json:"seed,omitempty"`
}

type textToImageResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

func (p *StabilityProvider) textToImage(ctx context.Context, prompt string, req ports.GenerationRequest) ([]byte, error) {
	payload := textToImagePayload{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7,
		Steps:       30,
		Samples:     1,
		Width:       req.Width,
		Height:      req.Height,
		Seed:        req.Seed,
	}
	if req.NegativePrompt != "" {
		payload.TextPrompts = append(payload.TextPrompts, textPrompt{Text: req.NegativePrompt, Weight: -1})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.t2iURL, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.NewProviderError(p.Name(),
			&statusError{operation: "text-to-image", status: resp.StatusCode, body: truncate(respBody)})
	}

	var parsed textToImageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, appErrors.NewProviderError(p.Name(), err)
	}
	if len(parsed.Artifacts) == 0 || parsed.Artifacts[0].Base64 == "" {
		return nil, appErrors.NewProviderError(p.Name(), fmt.Errorf("response missing artifacts"))
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
	if err != nil {
		return nil, appErrors.NewProviderError(p.Name(), fmt.Errorf("artifact is not valid base64: %w", err))
	}
	return data, nil
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
