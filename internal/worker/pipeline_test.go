package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"adstudio/internal/domain"
	"adstudio/internal/providers/ai"
)

// memRepo is an in-memory GenerationRepository with the same CAS claim
// semantics as the Postgres implementation.
type memRepo struct {
	mu   sync.Mutex
	gens map[string]*domain.Generation
}

func newMemRepo() *memRepo {
	return &memRepo{gens: map[string]*domain.Generation{}}
}

func (r *memRepo) add(gen *domain.Generation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().Add(-time.Duration(len(r.gens)) * time.Second)
	}
	r.gens[gen.ID] = gen
}

func (r *memRepo) Create(ctx context.Context, gen *domain.Generation) error {
	r.add(gen)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *gen
	return &snapshot, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Generation
	for _, gen := range r.gens {
		if gen.UserID == userID {
			out = append(out, *gen)
		}
	}
	return out, nil
}

func (r *memRepo) SelectNextQueued(ctx context.Context) (*domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Generation
	for _, gen := range r.gens {
		if gen.Status != domain.GenerationStatusQueued {
			continue
		}
		if oldest == nil || gen.CreatedAt.Before(oldest.CreatedAt) {
			oldest = gen
		}
	}
	if oldest == nil {
		return nil, domain.ErrNoWork
	}
	snapshot := *oldest
	return &snapshot, nil
}

func (r *memRepo) Claim(ctx context.Context, id string) (*domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if gen.Status != domain.GenerationStatusQueued {
		return nil, domain.ErrClaimConflict
	}
	now := time.Now()
	gen.Status = domain.GenerationStatusProcessing
	gen.StartedAt = &now
	snapshot := *gen
	return &snapshot, nil
}

func (r *memRepo) SavePartialResult(ctx context.Context, id string, result *domain.GenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return domain.ErrNotFound
	}
	copied := *result
	gen.Result = &copied
	return nil
}

func (r *memRepo) MarkSucceeded(ctx context.Context, id string, result *domain.GenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	copied := *result
	gen.Status = domain.GenerationStatusSucceeded
	gen.Result = &copied
	gen.FinishedAt = &now
	return nil
}

func (r *memRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	gen.Status = domain.GenerationStatusFailed
	gen.ErrorMessage = errorMessage
	gen.FinishedAt = &now
	return nil
}

type fakeAdapter struct {
	variantsErr error
	// imageErrAt fails the image call for this 1-based variant index.
	imageErrAt int
	imageErr   error
	// onImage runs inside each image call, letting tests observe
	// mid-pipeline state.
	onImage func(prompt string)

	mu         sync.Mutex
	imageCalls int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) GetVariants(ctx context.Context, in ai.GenerateInput) ([]ai.VariantDraft, error) {
	if f.variantsErr != nil {
		return nil, f.variantsErr
	}
	drafts := make([]ai.VariantDraft, domain.VariantCount)
	for i := range drafts {
		drafts[i] = ai.VariantDraft{
			Prompt:  fmt.Sprintf("prompt %d: %s", i+1, in.Description),
			Caption: fmt.Sprintf("caption %d", i+1),
		}
	}
	return drafts, nil
}

func (f *fakeAdapter) GetImageBytes(ctx context.Context, prompt, referenceImageURL string) ([]byte, error) {
	f.mu.Lock()
	f.imageCalls++
	call := f.imageCalls
	f.mu.Unlock()

	if f.onImage != nil {
		f.onImage(prompt)
	}
	if f.imageErrAt != 0 && call == f.imageErrAt {
		err := f.imageErr
		if err == nil {
			err = errors.New("image generation failed")
		}
		return nil, err
	}
	return []byte("png-bytes"), nil
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
	err  error
	// errOnKey fails Put for keys containing this substring.
	errOnKey string
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.errOnKey != "" && strings.Contains(key, s.errOnKey) {
		return "", &domain.StorageError{Key: key, Err: errors.New("upload rejected")}
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return "https://cdn.test/" + key, nil
}

func testPipeline(repo domain.GenerationRepository, store *fakeStore, adapter ai.Adapter) *Pipeline {
	return NewPipeline(Options{
		Repo:         repo,
		Store:        store,
		Adapter:      adapter,
		Logger:       zerolog.New(io.Discard),
		ImageTimeout: 5 * time.Second,
	})
}

func queuedGeneration(id string) *domain.Generation {
	return &domain.Generation{
		ID:                 id,
		UserID:             "user-1",
		ProductDescription: "A ceramic mug with a blue glaze, 350ml",
		Style:              domain.StyleStudio,
		Status:             domain.GenerationStatusQueued,
		CreatedAt:          time.Now().Add(-time.Minute),
	}
}

func TestRunOnceNoWork(t *testing.T) {
	repo := newMemRepo()
	pipeline := testPipeline(repo, &fakeStore{}, &fakeAdapter{})

	outcome, err := pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if outcome.Status != OutcomeNoWork {
		t.Fatalf("Status = %q, want %q", outcome.Status, OutcomeNoWork)
	}
	if len(repo.gens) != 0 {
		t.Fatalf("expected no records mutated, have %d", len(repo.gens))
	}
}

func TestRunOnceSucceeds(t *testing.T) {
	repo := newMemRepo()
	repo.add(queuedGeneration("gen-1"))
	store := &fakeStore{}
	pipeline := testPipeline(repo, store, &fakeAdapter{})

	outcome, err := pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if outcome.Status != OutcomeSucceeded {
		t.Fatalf("Status = %q, want %q", outcome.Status, OutcomeSucceeded)
	}
	if outcome.GenerationID != "gen-1" {
		t.Fatalf("GenerationID = %q, want %q", outcome.GenerationID, "gen-1")
	}

	gen, err := repo.GetByID(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if gen.Status != domain.GenerationStatusSucceeded {
		t.Fatalf("status = %q, want %q", gen.Status, domain.GenerationStatusSucceeded)
	}
	if gen.Result == nil || len(gen.Result.Variants) != domain.VariantCount {
		t.Fatalf("expected %d variants in result, got %#v", domain.VariantCount, gen.Result)
	}
	for i, v := range gen.Result.Variants {
		if v.ImageURL == nil {
			t.Fatalf("variant %d has nil image URL", i)
		}
		wantKey := fmt.Sprintf("user-1/gen-1/variant-%d.png", i+1)
		if *v.ImageURL != "https://cdn.test/"+wantKey {
			t.Fatalf("variant %d URL = %q, want suffix %q", i, *v.ImageURL, wantKey)
		}
	}
	if gen.StartedAt == nil || gen.FinishedAt == nil {
		t.Fatal("expected started and finished timestamps to be set")
	}
	if gen.FinishedAt.Before(*gen.StartedAt) {
		t.Fatalf("finished %v before started %v", gen.FinishedAt, gen.StartedAt)
	}
	if len(store.keys) != domain.VariantCount {
		t.Fatalf("uploaded %d objects, want %d", len(store.keys), domain.VariantCount)
	}
}

func TestRunOncePartialResultVisibleDuringImagePhase(t *testing.T) {
	repo := newMemRepo()
	repo.add(queuedGeneration("gen-1"))

	adapter := &fakeAdapter{}
	var observed *domain.Generation
	var once sync.Once
	adapter.onImage = func(string) {
		once.Do(func() {
			observed, _ = repo.GetByID(context.Background(), "gen-1")
		})
	}
	pipeline := testPipeline(repo, &fakeStore{}, adapter)

	if _, err := pipeline.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if observed == nil {
		t.Fatal("image phase never observed the record")
	}
	if observed.Status != domain.GenerationStatusProcessing {
		t.Fatalf("status during image phase = %q, want %q", observed.Status, domain.GenerationStatusProcessing)
	}
	if observed.Result == nil || len(observed.Result.Variants) != domain.VariantCount {
		t.Fatalf("expected partial result with %d variants, got %#v", domain.VariantCount, observed.Result)
	}
	for i, v := range observed.Result.Variants {
		if v.ImageURL != nil {
			t.Fatalf("partial variant %d should have nil image URL, got %q", i, *v.ImageURL)
		}
		if v.Prompt == "" || v.Caption == "" {
			t.Fatalf("partial variant %d missing text content", i)
		}
	}
}

func TestRunOnceProviderErrorBeforePartial(t *testing.T) {
	repo := newMemRepo()
	repo.add(queuedGeneration("gen-1"))
	adapter := &fakeAdapter{
		variantsErr: &domain.ProviderError{Provider: "fake", Err: errors.New("upstream exploded")},
	}
	pipeline := testPipeline(repo, &fakeStore{}, adapter)

	outcome, err := pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if outcome.Status != OutcomeFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, OutcomeFailed)
	}

	gen, _ := repo.GetByID(context.Background(), "gen-1")
	if gen.Status != domain.GenerationStatusFailed {
		t.Fatalf("status = %q, want %q", gen.Status, domain.GenerationStatusFailed)
	}
	if !strings.Contains(gen.ErrorMessage, "upstream exploded") {
		t.Fatalf("error message %q does not carry provider text", gen.ErrorMessage)
	}
	if gen.Result != nil {
		t.Fatalf("result should stay null on pre-partial failure, got %#v", gen.Result)
	}
	if gen.FinishedAt == nil {
		t.Fatal("expected finished timestamp on failure")
	}
}

func TestRunOnceImagePhaseFailureIsAllOrNothing(t *testing.T) {
	repo := newMemRepo()
	repo.add(queuedGeneration("gen-1"))
	adapter := &fakeAdapter{
		imageErrAt: 2,
		imageErr:   &domain.StorageError{Key: "user-1/gen-1/variant-2.png", Err: errors.New("upload rejected")},
	}
	pipeline := testPipeline(repo, &fakeStore{}, adapter)

	outcome, err := pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if outcome.Status != OutcomeFailed {
		t.Fatalf("Status = %q, want %q", outcome.Status, OutcomeFailed)
	}

	gen, _ := repo.GetByID(context.Background(), "gen-1")
	if gen.Status != domain.GenerationStatusFailed {
		t.Fatalf("status = %q, want %q", gen.Status, domain.GenerationStatusFailed)
	}
	if gen.ErrorMessage == "" {
		t.Fatal("expected error message on failed generation")
	}
	// The partial (all-nil image URLs) is the only result ever stored.
	if gen.Result != nil {
		for i, v := range gen.Result.Variants {
			if v.ImageURL != nil {
				t.Fatalf("failed generation variant %d has image URL %q", i, *v.ImageURL)
			}
		}
	}
}

func TestRunOnceConcurrentClaimExactlyOneWinner(t *testing.T) {
	repo := newMemRepo()
	repo.add(queuedGeneration("gen-1"))

	const workers = 8
	pipelines := make([]*Pipeline, workers)
	for i := range pipelines {
		pipelines[i] = testPipeline(repo, &fakeStore{}, &fakeAdapter{})
	}

	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	start := make(chan struct{})
	for i := range pipelines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcome, err := pipelines[i].RunOnce(context.Background())
			if err != nil {
				t.Errorf("worker %d: RunOnce returned error: %v", i, err)
				return
			}
			outcomes[i] = outcome
		}()
	}
	close(start)
	wg.Wait()

	var succeeded, claimed, noWork int
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSucceeded:
			succeeded++
		case OutcomeAlreadyClaimed:
			claimed++
		case OutcomeNoWork:
			noWork++
		default:
			t.Fatalf("unexpected outcome %q", o.Status)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1 (claimed=%d noWork=%d)", succeeded, claimed, noWork)
	}

	gen, _ := repo.GetByID(context.Background(), "gen-1")
	if gen.Status != domain.GenerationStatusSucceeded {
		t.Fatalf("status = %q, want %q", gen.Status, domain.GenerationStatusSucceeded)
	}
	if gen.StartedAt == nil {
		t.Fatal("expected started timestamp set by the single claim")
	}
}

func TestRunOnceServesOldestFirst(t *testing.T) {
	repo := newMemRepo()
	older := queuedGeneration("gen-old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := queuedGeneration("gen-new")
	newer.CreatedAt = time.Now().Add(-time.Minute)
	repo.add(newer)
	repo.add(older)

	pipeline := testPipeline(repo, &fakeStore{}, &fakeAdapter{})
	outcome, err := pipeline.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if outcome.GenerationID != "gen-old" {
		t.Fatalf("GenerationID = %q, want oldest %q", outcome.GenerationID, "gen-old")
	}
}
