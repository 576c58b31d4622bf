package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"adstudio/internal/domain"
	"adstudio/internal/telemetry"
)

type enqueueRequest struct {
	UserID             string `json:"user_id"`
	ProductDescription string `json:"product_description"`
	ReferenceImageURL  string `json:"reference_image_url,omitempty"`
	Style              string `json:"style,omitempty"`
}

type enqueueResponse struct {
	GenID  string `json:"gen_id"`
	Status string `json:"status"`
}

type generationResponse struct {
	ID                 string                   `json:"id"`
	UserID             string                   `json:"user_id"`
	ProductDescription string                   `json:"product_description"`
	ReferenceImageURL  string                   `json:"reference_image_url,omitempty"`
	Style              string                   `json:"style,omitempty"`
	Status             domain.GenerationStatus  `json:"status"`
	Result             *domain.GenerationResult `json:"result,omitempty"`
	Error              string                   `json:"error,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	StartedAt          *time.Time               `json:"started_at,omitempty"`
	FinishedAt         *time.Time               `json:"finished_at,omitempty"`
}

// Enqueue validates the request and creates a queued generation, then fires
// a best-effort wake of the worker. A dropped wake signal is harmless: the
// worker binary polls on a timer, so the job is picked up regardless.
func (a *App) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	description, err := domain.ValidateDescription(req.ProductDescription)
	if err != nil {
		a.writeError(w, err)
		return
	}
	userID := req.UserID
	if userID == "" {
		a.json(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	gen := &domain.Generation{
		ID:                 uuid.New().String(),
		UserID:             userID,
		ProductDescription: description,
		ReferenceImageURL:  req.ReferenceImageURL,
		Style:              req.Style,
		Status:             domain.GenerationStatusQueued,
	}
	if err := a.Repo.Create(r.Context(), gen); err != nil {
		a.writeError(w, err)
		return
	}
	telemetry.GenerationsEnqueued.Inc()

	if a.Pipeline != nil {
		go a.wakeWorker()
	}

	a.json(w, http.StatusAccepted, enqueueResponse{GenID: gen.ID, Status: string(gen.Status)})
}

// wakeWorker runs one opportunistic cycle detached from the request.
func (a *App) wakeWorker() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := a.Pipeline.RunOnce(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http: wake cycle failed")
	}
}

// GetGeneration returns one generation for consumer polling.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gen, err := a.Repo.GetByID(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(gen))
}

// ListGenerations returns a user's recent generations, newest first.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		a.json(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}
	gens, err := a.Repo.ListByUser(r.Context(), userID, 20)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]generationResponse, 0, len(gens))
	for i := range gens {
		out = append(out, toGenerationResponse(&gens[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"generations": out})
}

func toGenerationResponse(gen *domain.Generation) generationResponse {
	return generationResponse{
		ID:                 gen.ID,
		UserID:             gen.UserID,
		ProductDescription: gen.ProductDescription,
		ReferenceImageURL:  gen.ReferenceImageURL,
		Style:              gen.Style,
		Status:             gen.Status,
		Result:             gen.Result,
		Error:              gen.ErrorMessage,
		CreatedAt:          gen.CreatedAt,
		StartedAt:          gen.StartedAt,
		FinishedAt:         gen.FinishedAt,
	}
}
