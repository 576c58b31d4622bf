package ai

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"adstudio/internal/domain"
)

// MockAdapter synthesizes plausible variants from the input description with
// no network calls. Output is deterministic for a given description, which
// keeps tests reproducible and lets the full pipeline run without
// credentials.
type MockAdapter struct {
	caser cases.Caser
}

// NewMockAdapter constructs the deterministic offline adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{caser: cases.Title(language.English)}
}

func (m *MockAdapter) Name() string { return BackendMock }

// GetVariants derives three fixed framings (studio, lifestyle, UGC) from the
// description text. Same description, same output.
func (m *MockAdapter) GetVariants(ctx context.Context, in GenerateInput) ([]VariantDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := in.Description
	if len(base) > 50 {
		base = base[:50]
	}
	framings := []struct {
		label   string
		tagline string
	}{
		{"studio shot", "professional studio quality"},
		{"lifestyle context", "in a real-life setting"},
		{"ugc style", "authentic user vibe"},
	}
	variants := make([]VariantDraft, 0, domain.VariantCount)
	for _, f := range framings {
		variants = append(variants, VariantDraft{
			Prompt:  fmt.Sprintf("%s: %s", m.caser.String(f.label), in.Description),
			Caption: fmt.Sprintf("%s - %s", strings.TrimSpace(base), f.tagline),
		})
	}
	return checkVariantCount(variants)
}

// GetImageBytes returns a fixed minimal placeholder image.
func (m *MockAdapter) GetImageBytes(ctx context.Context, prompt, referenceImageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return placeholderPNG(), nil
}

// placeholderPNG is a valid 1x1 transparent PNG.
func placeholderPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
		0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
		0x42, 0x60, 0x82,
	}
}

var _ Adapter = (*MockAdapter)(nil)
