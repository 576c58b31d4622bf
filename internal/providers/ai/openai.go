package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"adstudio/internal/domain"
)

const openAIDefaultTimeout = 30 * time.Second

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// OpenAIAdapter uses chat completions in JSON mode for variants and the
// image API for rendering.
type OpenAIAdapter struct {
	client     *openai.Client
	model      string
	httpClient *http.Client
}

type openAIVariantsPayload struct {
	Variants []VariantDraft `json:"variants"`
}

// NewOpenAIAdapter constructs the adapter with sane defaults.
func NewOpenAIAdapter(opts OpenAIOptions) *OpenAIAdapter {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = openAIDefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if baseURL := strings.TrimRight(opts.BaseURL, "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		httpClient: httpClient,
	}
}

func (o *OpenAIAdapter) Name() string { return BackendOpenAI }

// GetVariants asks the chat model for exactly three prompt/caption pairs.
// A reference image is embedded as a base64 data URL vision part.
func (o *OpenAIAdapter) GetVariants(ctx context.Context, in GenerateInput) ([]VariantDraft, error) {
	userParts := []openai.ChatMessagePart{}
	if in.ReferenceImageURL != "" {
		if ref, err := fetchReferenceImage(ctx, o.httpClient, in.ReferenceImageURL); err == nil {
			userParts = append(userParts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", ref.MIMEType, ref.Base64),
				},
			})
		}
	}
	userParts = append(userParts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: o.buildVariantsPrompt(in),
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.9,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: variantsSystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: userParts},
		},
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: errors.New("no completion choices returned")}
	}

	fragment := extractJSONFragment(resp.Choices[0].Message.Content)
	if fragment == "" {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: errors.New("no JSON payload in response")}
	}
	var parsed openAIVariantsPayload
	if err := json.Unmarshal([]byte(fragment), &parsed); err != nil {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: fmt.Errorf("decode variants: %w", err)}
	}
	return checkVariantCount(parsed.Variants)
}

// GetImageBytes renders one prompt through the image API. The image model
// cannot take a reference image directly, so the prompt carries the product
// description entirely.
func (o *OpenAIAdapter) GetImageBytes(ctx context.Context, prompt, referenceImageURL string) ([]byte, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: err}
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: errors.New("no image data in response")}
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: fmt.Errorf("decode image data: %w", err)}
	}
	if len(data) == 0 {
		return nil, &domain.ProviderError{Provider: BackendOpenAI, Err: errors.New("empty image payload")}
	}
	return data, nil
}

func (o *OpenAIAdapter) buildVariantsPrompt(in GenerateInput) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Product: %s\n\n", in.Description)
	style := strings.TrimSpace(in.Style)
	if style != "" {
		fmt.Fprintf(sb, "Selected style: %s\nPlace this exact product in %s-style settings with appropriate backgrounds and lighting.\n\n", style, style)
	} else {
		style = "creative"
	}
	fmt.Fprintf(sb, "Generate %d creative variants. Each prompt must keep the product's original appearance, apply a different %s background and setting, and vary lighting, composition, and atmosphere.", domain.VariantCount, style)
	return sb.String()
}

var _ Adapter = (*OpenAIAdapter)(nil)
