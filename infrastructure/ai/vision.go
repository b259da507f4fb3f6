package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"imagio-backend/domain/background"
	appErrors "imagio-backend/pkg/errors"
)

const (
	openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"
	defaultVisionModel       = "gpt-4o-mini"

	visionSystemPrompt = "You are a senior e-commerce art director. Analyze transparent product cutouts and craft highly descriptive, concise prompts for photorealistic background generation that preserve a clear empty pocket where the product belongs."
)

// OpenAIVision implements the VisionAnalyzer port against an
// OpenAI-compatible chat completions API. A missing API key turns every
// analysis into a graceful no-op so the prompt pipeline can fall back to
// its templates.
type OpenAIVision struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIVision creates a new vision client. model falls back to
// gpt-4o-mini when empty.
func NewOpenAIVision(apiKey, model string, logger *zap.Logger) *OpenAIVision {
	if model == "" {
		model = defaultVisionModel
	}
	return &OpenAIVision{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIChatCompletionsURL,
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
		},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// productPlanSchema constrains the analysis reply to parseable JSON
var productPlanSchema = json.RawMessage(`{
	"type": "json_schema",
	"json_schema": {
		"name": "product_prompt_plan",
		"schema": {
			"type": "object",
			"required": ["background_prompt", "summary"],
			"properties": {
				"background_prompt": {"type": "string"},
				"summary": {"type": "string"},
				"negative_prompt": {"type": "string"},
				"background_ideas": {"type": "array", "items": {"type": "string"}},
				"product_attributes": {"type": "array", "items": {"type": "string"}},
				"object_scale_hint": {"type": "string"},
				"object_position_hint": {"type": "string"}
			},
			"additionalProperties": true
		}
	}
}`)

type productPlanReply struct {
	BackgroundPrompt   string   `json:"background_prompt"`
	Summary            string   `json:"summary"`
	NegativePrompt     string   `json:"negative_prompt"`
	BackgroundIdeas    []string `json:"background_ideas"`
	ProductAttributes  []string `json:"product_attributes"`
	ObjectScaleHint    string   `json:"object_scale_hint"`
	ObjectPositionHint string   `json:"object_position_hint"`
}

// AnalyzeProduct asks the vision model for a staging plan. Returns nil when
// the service is not configured.
func (v *OpenAIVision) AnalyzeProduct(ctx context.Context, image []byte, mimeType, metadataSummary, userPrompt string) (*background.VisionAnalysis, error) {
	if v.apiKey == "" {
		v.logger.Debug("vision API key not set, skipping product analysis")
		return nil, nil
	}
	if len(image) == 0 {
		return nil, nil
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	metadata := strings.TrimSpace(metadataSummary)
	if metadata == "" {
		metadata = "No additional metadata provided."
	} else if len(metadata) > 1000 {
		metadata = metadata[:1000]
	}
	direction := "No user creative direction provided."
	if trimmed := strings.TrimSpace(userPrompt); trimmed != "" {
		direction = "User creative direction to respect: " + trimmed
	}

	instructions := strings.Join([]string{
		"Study this isolated product image and return JSON with:",
		"1) background_prompt: A vivid positive prompt describing composition, props, lighting, materials, camera cues, and the empty staging pocket meant for the product.",
		"2) summary: Sentence summary of the product, its features, and pose.",
		"3) negative_prompt: Optional comma-separated list of things to suppress.",
		"4) background_ideas: Optional list of short scene titles.",
		"5) product_attributes: Optional bullet descriptors.",
		"6) object_scale_hint: Describe the relative size coverage.",
		"7) object_position_hint: Describe where the product sits.",
		"8) Ensure the background_prompt itself ends with a clause that reinforces the required product scale and placement.",
		"9) Describe the open staging zone that must stay unobstructed for the real product; avoid adding placeholder products in that area.",
		"Existing metadata:",
		metadata,
		direction,
	}, "\n")

	content, err := v.complete(ctx, chatRequest{
		Model:       v.model,
		Temperature: 0.4,
		MaxTokens:   800,
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: instructions},
				{Type: "image_url", ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
				}},
			}},
		},
		ResponseFormat: productPlanSchema,
	})
	if err != nil {
		return nil, err
	}

	var reply productPlanReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, appErrors.NewProviderError("openai", fmt.Errorf("unparseable analysis reply: %w", err))
	}
	if reply.BackgroundPrompt == "" {
		return nil, nil
	}

	return &background.VisionAnalysis{
		Prompt:          reply.BackgroundPrompt,
		Summary:         reply.Summary,
		NegativePrompt:  reply.NegativePrompt,
		Attributes:      reply.ProductAttributes,
		BackgroundIdeas: reply.BackgroundIdeas,
		SizeHint:        reply.ObjectScaleHint,
		PositionHint:    reply.ObjectPositionHint,
	}, nil
}

// ExtractText runs OCR over the image
func (v *OpenAIVision) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if v.apiKey == "" {
		return "", appErrors.NewProviderError("openai", fmt.Errorf("API key not configured"))
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	content, err := v.complete(ctx, chatRequest{
		Model:       v.model,
		Temperature: 0,
		MaxTokens:   800,
		Messages: []chatMessage{
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Transcribe every piece of readable text in this image, preserving line breaks. Reply with the text only, or an empty string when there is none."},
				{Type: "image_url", ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
				}},
			}},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// RecognizeItems lists the objects visible in the image
func (v *OpenAIVision) RecognizeItems(ctx context.Context, image []byte, mimeType string) ([]string, error) {
	if v.apiKey == "" {
		return nil, appErrors.NewProviderError("openai", fmt.Errorf("API key not configured"))
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	content, err := v.complete(ctx, chatRequest{
		Model:       v.model,
		Temperature: 0,
		MaxTokens:   400,
		Messages: []chatMessage{
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: `List the distinct physical objects visible in this image as a JSON array of short lowercase labels, for example ["sneaker","shoelace"]. Reply with the JSON array only.`},
				{Type: "image_url", ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
				}},
			}},
		},
	})
	if err != nil {
		return nil, err
	}

	var items []string
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &items); err != nil {
		return nil, appErrors.NewProviderError("openai", fmt.Errorf("unparseable item list: %w", err))
	}
	return items, nil
}

func (v *OpenAIVision) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", appErrors.NewProviderError("openai", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", appErrors.NewProviderError("openai", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return "", appErrors.NewProviderError("openai", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", appErrors.NewProviderError("openai", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", appErrors.NewProviderError("openai",
			fmt.Errorf("chat completion failed (status %d): %s", resp.StatusCode, truncate(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", appErrors.NewProviderError("openai", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", appErrors.NewProviderError("openai", fmt.Errorf("empty chat completion"))
	}
	return parsed.Choices[0].Message.Content, nil
}
