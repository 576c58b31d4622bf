package ai

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"adstudio/internal/domain"
)

func TestMockAdapterVariantsDeterministic(t *testing.T) {
	adapter := NewMockAdapter()
	in := GenerateInput{
		Description: "A ceramic mug with a blue glaze, 350ml",
		Style:       domain.StyleStudio,
	}

	first, err := adapter.GetVariants(context.Background(), in)
	if err != nil {
		t.Fatalf("GetVariants returned error: %v", err)
	}
	if len(first) != domain.VariantCount {
		t.Fatalf("len(variants) = %d, want %d", len(first), domain.VariantCount)
	}

	second, err := adapter.GetVariants(context.Background(), in)
	if err != nil {
		t.Fatalf("GetVariants returned error on repeat: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("variant %d differs between runs: %#v vs %#v", i, first[i], second[i])
		}
	}

	for i, v := range first {
		if v.Prompt == "" || v.Caption == "" {
			t.Fatalf("variant %d has empty content: %#v", i, v)
		}
		if !strings.Contains(v.Prompt, in.Description) {
			t.Fatalf("variant %d prompt %q does not carry the description", i, v.Prompt)
		}
	}
}

func TestMockAdapterCaptionTruncatesLongDescription(t *testing.T) {
	adapter := NewMockAdapter()
	long := strings.Repeat("handmade walnut chess set ", 10)
	variants, err := adapter.GetVariants(context.Background(), GenerateInput{Description: long})
	if err != nil {
		t.Fatalf("GetVariants returned error: %v", err)
	}
	for i, v := range variants {
		base, _, found := strings.Cut(v.Caption, " - ")
		if !found {
			t.Fatalf("variant %d caption %q missing tagline separator", i, v.Caption)
		}
		if len(base) > 50 {
			t.Fatalf("variant %d caption base is %d chars, want <= 50", i, len(base))
		}
	}
}

func TestMockAdapterImageIsValidPNG(t *testing.T) {
	adapter := NewMockAdapter()
	data, err := adapter.GetImageBytes(context.Background(), "any prompt", "")
	if err != nil {
		t.Fatalf("GetImageBytes returned error: %v", err)
	}
	signature := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	if !bytes.HasPrefix(data, signature) {
		t.Fatalf("image bytes do not start with the PNG signature: % x", data[:8])
	}

	again, _ := adapter.GetImageBytes(context.Background(), "another prompt", "")
	if !bytes.Equal(data, again) {
		t.Fatal("placeholder image differs between calls")
	}
}

func TestMockAdapterHonorsCancelledContext(t *testing.T) {
	adapter := NewMockAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := adapter.GetVariants(ctx, GenerateInput{Description: "mug"}); err == nil {
		t.Fatal("GetVariants with cancelled context returned nil error")
	}
	if _, err := adapter.GetImageBytes(ctx, "p", ""); err == nil {
		t.Fatal("GetImageBytes with cancelled context returned nil error")
	}
}
