package ai

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
)

func TestExtractJSONFragment(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"variants":[]}`, `{"variants":[]}`},
		{"fenced json", "```json\n{\"variants\":[]}\n```", `{"variants":[]}`},
		{"fenced upper", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", "Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"array", `[1,2,3]`, `[1,2,3]`},
		{"empty", "   ", ""},
		{"no json", "sorry, I cannot do that", "sorry, I cannot do that"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSONFragment(tc.in); got != tc.want {
				t.Fatalf("extractJSONFragment(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMimeTypeForURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.test/product.png", "image/png"},
		{"https://cdn.test/product.PNG?sig=abc", "image/png"},
		{"https://cdn.test/product.webp", "image/webp"},
		{"https://cdn.test/product.jpg", "image/jpeg"},
		{"https://cdn.test/product", "image/jpeg"},
	}
	for _, tc := range cases {
		if got := mimeTypeForURL(tc.url); got != tc.want {
			t.Fatalf("mimeTypeForURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestCheckVariantCount(t *testing.T) {
	three := []VariantDraft{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}}
	got, err := checkVariantCount(three)
	if err != nil {
		t.Fatalf("checkVariantCount(3) returned error: %v", err)
	}
	if len(got) != domain.VariantCount {
		t.Fatalf("len = %d, want %d", len(got), domain.VariantCount)
	}

	for _, bad := range [][]VariantDraft{nil, three[:1], three[:2], append(append([]VariantDraft{}, three...), VariantDraft{Prompt: "d"})} {
		if _, err := checkVariantCount(bad); err == nil {
			t.Fatalf("checkVariantCount(%d variants) returned nil error", len(bad))
		}
	}
	_, err = checkVariantCount(three[:2])
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *domain.ValidationError", err)
	}
}

func TestNewFallsBackToMockWithoutCredentials(t *testing.T) {
	logger := zerolog.New(io.Discard)

	cases := []struct {
		name string
		cfg  infra.Config
		want string
	}{
		{"default no key", infra.Config{AIProvider: "gemini"}, BackendMock},
		{"openai no key", infra.Config{AIProvider: "openai"}, BackendMock},
		{"explicit mock", infra.Config{AIProvider: "mock", GeminiAPIKey: "k"}, BackendMock},
		{"gemini with key", infra.Config{AIProvider: "gemini", GeminiAPIKey: "k"}, BackendGemini},
		{"openai with key", infra.Config{AIProvider: "openai", OpenAIAPIKey: "k"}, BackendOpenAI},
		{"unknown backend with gemini key", infra.Config{AIProvider: "", GeminiAPIKey: "k"}, BackendGemini},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := New(&tc.cfg, logger)
			if adapter.Name() != tc.want {
				t.Fatalf("Name() = %q, want %q", adapter.Name(), tc.want)
			}
		})
	}
}
