// Package ai provides the pluggable adapter to external generative AI
// backends. One backend is active per deployment, selected by configuration;
// when credentials are absent the deterministic mock takes over so the
// pipeline stays fully exercisable offline.
package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
)

// Backend identifiers accepted by AI_PROVIDER.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendMock   = "mock"
)

// GenerateInput carries the job fields the variant phase needs.
type GenerateInput struct {
	Description       string
	ReferenceImageURL string
	Style             string
}

// VariantDraft is one prompt/caption pair produced by the variant phase,
// before any image exists.
type VariantDraft struct {
	Prompt  string `json:"prompt"`
	Caption string `json:"caption"`
}

// Adapter is the uniform capability set over a generative AI backend.
type Adapter interface {
	// Name identifies the active backend.
	Name() string
	// GetVariants returns exactly domain.VariantCount drafts or fails.
	GetVariants(ctx context.Context, in GenerateInput) ([]VariantDraft, error)
	// GetImageBytes renders one prompt to binary image data.
	GetImageBytes(ctx context.Context, prompt, referenceImageURL string) ([]byte, error)
}

// New selects the adapter for the configured backend. A backend without
// credentials degrades to mock mode rather than failing startup.
func New(cfg *infra.Config, logger infra.Logger) Adapter {
	switch strings.ToLower(strings.TrimSpace(cfg.AIProvider)) {
	case BackendOpenAI:
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIAdapter(OpenAIOptions{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   cfg.OpenAIModel,
				BaseURL: cfg.OpenAIBaseURL,
				Timeout: cfg.ProviderTimeout,
			})
		}
		logger.Warn().Msg("ai: openai api key missing, using mock adapter")
	case BackendMock:
	default:
		if cfg.GeminiAPIKey != "" {
			return NewGeminiAdapter(GeminiOptions{
				APIKey:     cfg.GeminiAPIKey,
				Model:      cfg.GeminiModel,
				ImageModel: cfg.GeminiImageModel,
				BaseURL:    cfg.GeminiBaseURL,
				Timeout:    cfg.ProviderTimeout,
			})
		}
		logger.Warn().Msg("ai: gemini api key missing, using mock adapter")
	}
	return NewMockAdapter()
}

// checkVariantCount enforces the exactly-N contract shared by all backends.
func checkVariantCount(variants []VariantDraft) ([]VariantDraft, error) {
	if len(variants) != domain.VariantCount {
		return nil, &domain.ValidationError{
			Reason: fmt.Sprintf("expected exactly %d variants, got %d", domain.VariantCount, len(variants)),
		}
	}
	return variants, nil
}

// inlineImage is a fetched reference image ready for transport embedding.
type inlineImage struct {
	MIMEType string
	Base64   string
}

// fetchReferenceImage downloads the product image so the backend can
// condition generation on it. Failures are soft: generation proceeds
// without the reference rather than failing the job.
func fetchReferenceImage(ctx context.Context, client *http.Client, rawURL string) (*inlineImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create reference request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch reference image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}
	return &inlineImage{
		MIMEType: mimeTypeForURL(rawURL),
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

func mimeTypeForURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, ".png"):
		return "image/png"
	case strings.Contains(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// extractJSONFragment pulls the JSON object out of a model response that may
// be wrapped in prose or a markdown code fence.
func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
