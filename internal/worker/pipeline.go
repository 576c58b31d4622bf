// Package worker drives one generation through its phases: claim, text
// generation, partial publish, parallel image generation, terminal publish.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/providers/ai"
	"adstudio/internal/storage"
	"adstudio/internal/telemetry"
)

// Outcome statuses returned by a single worker cycle.
const (
	OutcomeNoWork         = "no_work"
	OutcomeAlreadyClaimed = "already_claimed"
	OutcomeSucceeded      = "succeeded"
	OutcomeFailed         = "failed"
)

// Outcome describes the terminal result of one RunOnce invocation.
type Outcome struct {
	Status       string `json:"status"`
	GenerationID string `json:"gen_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	Repo    domain.GenerationRepository
	Store   storage.ObjectStore
	Adapter ai.Adapter
	Logger  infra.Logger
	// ImageTimeout bounds each image generation sub-task so one hung
	// upstream call cannot block the join indefinitely.
	ImageTimeout time.Duration
}

// Pipeline owns no long-running state; each RunOnce is independent and the
// atomic claim is the only synchronization point between concurrent
// invocations.
type Pipeline struct {
	repo         domain.GenerationRepository
	store        storage.ObjectStore
	adapter      ai.Adapter
	logger       infra.Logger
	imageTimeout time.Duration
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(opts Options) *Pipeline {
	timeout := opts.ImageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pipeline{
		repo:         opts.Repo,
		store:        opts.Store,
		adapter:      opts.Adapter,
		logger:       opts.Logger,
		imageTimeout: timeout,
	}
}

// RunOnce pulls at most one eligible generation and drives it to a terminal
// state. Empty queues and lost claim races are benign outcomes, not errors;
// the returned error covers only infrastructure failures talking to the
// store.
func (p *Pipeline) RunOnce(ctx context.Context) (Outcome, error) {
	next, err := p.repo.SelectNextQueued(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoWork) {
			telemetry.EmptyPolls.Inc()
			return Outcome{Status: OutcomeNoWork}, nil
		}
		return Outcome{}, fmt.Errorf("select next queued: %w", err)
	}

	gen, err := p.repo.Claim(ctx, next.ID)
	if err != nil {
		if errors.Is(err, domain.ErrClaimConflict) {
			telemetry.ClaimConflicts.Inc()
			p.logger.Debug().Str("gen_id", next.ID).Msg("worker: generation already claimed")
			return Outcome{Status: OutcomeAlreadyClaimed, GenerationID: next.ID}, nil
		}
		return Outcome{}, fmt.Errorf("claim %s: %w", next.ID, err)
	}

	p.logger.Info().Str("gen_id", gen.ID).Str("provider", p.adapter.Name()).Msg("worker: processing generation")

	result, err := p.process(ctx, gen)
	if err != nil {
		telemetry.GenerationsFailed.Inc()
		p.logger.Error().Err(err).Str("gen_id", gen.ID).Msg("worker: generation failed")
		if markErr := p.repo.MarkFailed(ctx, gen.ID, err.Error()); markErr != nil {
			return Outcome{}, fmt.Errorf("mark failed %s: %w", gen.ID, markErr)
		}
		return Outcome{Status: OutcomeFailed, GenerationID: gen.ID, Error: err.Error()}, nil
	}

	if err := p.repo.MarkSucceeded(ctx, gen.ID, result); err != nil {
		return Outcome{}, fmt.Errorf("mark succeeded %s: %w", gen.ID, err)
	}
	telemetry.GenerationsSucceeded.Inc()
	p.logger.Info().Str("gen_id", gen.ID).Msg("worker: generation succeeded")
	return Outcome{Status: OutcomeSucceeded, GenerationID: gen.ID}, nil
}

// process runs phases 3 through 5: variants, partial publish, image fan-out.
// Any returned error becomes the generation's terminal error text.
func (p *Pipeline) process(ctx context.Context, gen *domain.Generation) (*domain.GenerationResult, error) {
	drafts, err := p.adapter.GetVariants(ctx, ai.GenerateInput{
		Description:       gen.ProductDescription,
		ReferenceImageURL: gen.ReferenceImageURL,
		Style:             gen.Style,
	})
	if err != nil {
		return nil, err
	}

	// Publish prompts and captions before any image exists so consumers
	// can render text content immediately.
	partial := &domain.GenerationResult{
		Variants:    make([]domain.Variant, len(drafts)),
		SafetyFlags: []string{},
	}
	for i, d := range drafts {
		partial.Variants[i] = domain.Variant{Prompt: d.Prompt, Caption: d.Caption}
	}
	if err := p.repo.SavePartialResult(ctx, gen.ID, partial); err != nil {
		return nil, fmt.Errorf("save partial result: %w", err)
	}

	// One sub-task per variant; the join is all-or-nothing. A failed
	// sibling cancels the group context, and already-uploaded images are
	// left behind: keys are deterministic, so a later run overwrites them.
	variants := make([]domain.Variant, len(drafts))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, d := range drafts {
		g.Go(func() error {
			url, err := p.renderVariant(groupCtx, gen, i, d.Prompt)
			if err != nil {
				return err
			}
			variants[i] = domain.Variant{Prompt: d.Prompt, Caption: d.Caption, ImageURL: &url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.GenerationResult{Variants: variants, SafetyFlags: []string{}}, nil
}

// renderVariant generates one image and uploads it at a key scoped by
// owner, generation, and variant index.
func (p *Pipeline) renderVariant(ctx context.Context, gen *domain.Generation, index int, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.imageTimeout)
	defer cancel()

	data, err := p.adapter.GetImageBytes(callCtx, prompt, gen.ReferenceImageURL)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s/variant-%d.png", gen.UserID, gen.ID, index+1)
	url, err := p.store.Put(callCtx, key, data, "image/png")
	if err != nil {
		return "", err
	}
	p.logger.Debug().Str("gen_id", gen.ID).Int("variant", index+1).Str("url", url).Msg("worker: image uploaded")
	return url, nil
}
