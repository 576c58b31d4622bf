package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDescription(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", "A ceramic mug with a blue glaze", "A ceramic mug with a blue glaze", false},
		{"trims whitespace", "  a handmade soap bar  ", "a handmade soap bar", false},
		{"exactly min", strings.Repeat("x", MinDescriptionLen), strings.Repeat("x", MinDescriptionLen), false},
		{"exactly max", strings.Repeat("x", MaxDescriptionLen), strings.Repeat("x", MaxDescriptionLen), false},
		{"too short", "mug", "", true},
		{"whitespace only", "            ", "", true},
		{"padded short", "  short  ", "", true},
		{"too long", strings.Repeat("x", MaxDescriptionLen+1), "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateDescription(tc.in)
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("error = %v (%T), want *ValidationError", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateDescription returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	cases := []struct {
		status GenerationStatus
		want   bool
	}{
		{GenerationStatusQueued, false},
		{GenerationStatusProcessing, false},
		{GenerationStatusSucceeded, true},
		{GenerationStatusFailed, true},
	}
	for _, tc := range cases {
		gen := Generation{Status: tc.status}
		if got := gen.Terminal(); got != tc.want {
			t.Fatalf("Terminal() with status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestErrorTypesUnwrap(t *testing.T) {
	inner := errors.New("boom")

	perr := &ProviderError{Provider: "gemini", Err: inner}
	if !errors.Is(perr, inner) {
		t.Fatal("ProviderError does not unwrap to its cause")
	}
	if !strings.Contains(perr.Error(), "gemini") {
		t.Fatalf("ProviderError.Error() = %q, missing provider name", perr.Error())
	}

	serr := &StorageError{Key: "u/g/variant-1.png", Err: inner}
	if !errors.Is(serr, inner) {
		t.Fatal("StorageError does not unwrap to its cause")
	}
	if !strings.Contains(serr.Error(), "u/g/variant-1.png") {
		t.Fatalf("StorageError.Error() = %q, missing key", serr.Error())
	}
}
