package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adstudio/internal/domain"
)

const geminiDefaultTimeout = 30 * time.Second

// GeminiOptions configures the Gemini adapter.
type GeminiOptions struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// GeminiAdapter talks to the Gemini generateContent API, using a text model
// for variants and an image-capable model for rendering.
type GeminiAdapter struct {
	apiKey     string
	model      string
	imageModel string
	baseURL    string
	client     *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// geminiResponsePart enumerates the payload shapes the API is known to use
// for image data. Parsing is a closed set: anything else fails.
type geminiResponsePart struct {
	Text            string            `json:"text,omitempty"`
	InlineData      *geminiInlineData `json:"inlineData,omitempty"`
	InlineDataSnake *geminiInlineData `json:"inline_data,omitempty"`
	Image           string            `json:"image,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiResponsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Output string `json:"output,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type geminiVariantsPayload struct {
	Variants []VariantDraft `json:"variants"`
}

// NewGeminiAdapter constructs the adapter with sane defaults.
func NewGeminiAdapter(opts GeminiOptions) *GeminiAdapter {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image-preview"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = geminiDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GeminiAdapter{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		imageModel: imageModel,
		baseURL:    baseURL,
		client:     client,
	}
}

func (g *GeminiAdapter) Name() string { return BackendGemini }

// GetVariants asks the text model for exactly three prompt/caption pairs.
// When a reference image is available it is embedded inline so the model
// writes prompts around the actual product.
func (g *GeminiAdapter) GetVariants(ctx context.Context, in GenerateInput) ([]VariantDraft, error) {
	parts := []geminiPart{}

	userPrompt := &strings.Builder{}
	fmt.Fprintf(userPrompt, "Product: %s\n\n", in.Description)

	if in.ReferenceImageURL != "" {
		if ref, err := fetchReferenceImage(ctx, g.client, in.ReferenceImageURL); err == nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MIMEType: ref.MIMEType,
				Data:     ref.Base64,
			}})
			userPrompt.WriteString("The image above shows the actual product. This exact product must appear in all generated images.\n\n")
		}
	}

	style := strings.TrimSpace(in.Style)
	if style != "" {
		fmt.Fprintf(userPrompt, "Selected style: %s\nPlace this exact product in %s-style settings with appropriate backgrounds and lighting.\n\n", style, style)
	} else {
		style = "creative"
	}
	fmt.Fprintf(userPrompt, "Generate %d creative variants. Each prompt must keep the product's original appearance, apply a different %s background and setting, and vary lighting, composition, and atmosphere.", domain.VariantCount, style)

	parts = append(parts, geminiPart{Text: variantsSystemPrompt + "\n\n" + userPrompt.String()})

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.9,
			MaxOutputTokens:  1024,
			ResponseMimeType: "application/json",
		},
	}

	var resp geminiResponse
	if err := g.invoke(ctx, g.model, payload, &resp); err != nil {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: err}
	}

	text := firstText(resp)
	fragment := extractJSONFragment(text)
	if fragment == "" {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: errors.New("no JSON payload in response")}
	}
	var parsed geminiVariantsPayload
	if err := json.Unmarshal([]byte(fragment), &parsed); err != nil {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: fmt.Errorf("decode variants: %w", err)}
	}
	return checkVariantCount(parsed.Variants)
}

// GetImageBytes renders one prompt with the image model. The response image
// may arrive under several field names; parsing fails closed when none of
// the known shapes match.
func (g *GeminiAdapter) GetImageBytes(ctx context.Context, prompt, referenceImageURL string) ([]byte, error) {
	parts := []geminiPart{}
	if referenceImageURL != "" {
		if ref, err := fetchReferenceImage(ctx, g.client, referenceImageURL); err == nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MIMEType: ref.MIMEType,
				Data:     ref.Base64,
			}})
			prompt = "Use the product shown in the image above. " + prompt
		}
	}
	parts = append(parts, geminiPart{Text: prompt})

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:        1.0,
			ResponseModalities: []string{"image"},
		},
	}

	var resp geminiResponse
	if err := g.invoke(ctx, g.imageModel, payload, &resp); err != nil {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: err}
	}

	encoded := locateImageData(resp)
	if encoded == "" {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: errors.New("no image data in response")}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: fmt.Errorf("decode image data: %w", err)}
	}
	if len(data) == 0 {
		return nil, &domain.ProviderError{Provider: BackendGemini, Err: errors.New("empty image payload")}
	}
	return data, nil
}

func (g *GeminiAdapter) invoke(ctx context.Context, model string, payload any, out any) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func firstText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

// locateImageData checks each known response shape in order: inlineData,
// inline_data, a bare image field on the part, then a top-level output
// field. Returns empty when none match.
func locateImageData(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data
			}
			if part.InlineDataSnake != nil && part.InlineDataSnake.Data != "" {
				return part.InlineDataSnake.Data
			}
			if part.Image != "" {
				return part.Image
			}
		}
	}
	return resp.Output
}

const variantsSystemPrompt = `You are a creative AI that generates 3 distinct social media image prompts and captions for products.

The user may have uploaded their actual product image. Your job is to create prompts that keep the exact product, apply different backgrounds, settings, and styles around it, and preserve the product's appearance, colors, and details.

Return a JSON object with this exact structure:
{"variants":[{"prompt":"detailed image generation prompt","caption":"engaging social media caption"},{"prompt":"...","caption":"..."},{"prompt":"...","caption":"..."}]}`

var _ Adapter = (*GeminiAdapter)(nil)
