package domain

import (
	"fmt"
	"strings"
	"time"
)

// GenerationStatus enumerates generation lifecycle states.
type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "queued"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusSucceeded  GenerationStatus = "succeeded"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// VariantCount is the number of variants every generation produces.
const VariantCount = 3

// Description length bounds enforced at admission.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 2000
)

// Style presets offered by the UI. Unknown styles are passed through to the
// provider as free text.
const (
	StyleStudio    = "studio"
	StyleLifestyle = "lifestyle"
	StyleUGC       = "ugc"
)

// Generation encapsulates one content-generation request and its lifecycle.
type Generation struct {
	ID                 string
	UserID             string
	ProductDescription string
	ReferenceImageURL  string
	Style              string
	Status             GenerationStatus
	Result             *GenerationResult
	ErrorMessage       string
	CreatedAt          time.Time
	StartedAt          *time.Time
	FinishedAt         *time.Time
}

// GenerationResult is the structured payload stored on the generation record.
// It is written twice: once as a partial result (captions and prompts only,
// image URLs nil) right after text generation, and once complete on success.
type GenerationResult struct {
	Variants    []Variant `json:"variants"`
	SafetyFlags []string  `json:"safety_flags"`
}

// Variant is one (prompt, caption, image) triple. ImageURL stays nil until
// the image phase completes for that variant.
type Variant struct {
	Prompt   string  `json:"prompt"`
	Caption  string  `json:"caption"`
	ImageURL *string `json:"image_url"`
}

// Terminal reports whether the generation reached a final state.
func (g *Generation) Terminal() bool {
	return g.Status == GenerationStatusSucceeded || g.Status == GenerationStatusFailed
}

// ValidateDescription trims and checks the product description bounds. It
// returns the trimmed description or a ValidationError.
func ValidateDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if len(trimmed) < MinDescriptionLen {
		return "", &ValidationError{Reason: fmt.Sprintf("product description must be at least %d characters", MinDescriptionLen)}
	}
	if len(trimmed) > MaxDescriptionLen {
		return "", &ValidationError{Reason: fmt.Sprintf("product description must be less than %d characters", MaxDescriptionLen)}
	}
	return trimmed, nil
}
