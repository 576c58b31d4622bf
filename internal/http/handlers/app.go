package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/worker"
)

// PipelineRunner is the worker surface the trigger endpoint needs. It is
// satisfied by *worker.Pipeline.
type PipelineRunner interface {
	RunOnce(ctx context.Context) (worker.Outcome, error)
}

// App is the handler container holding shared collaborators.
type App struct {
	Repo     domain.GenerationRepository
	Pipeline PipelineRunner
	Logger   infra.Logger
}

// NewApp wires the handler container.
func NewApp(repo domain.GenerationRepository, pipeline PipelineRunner, logger infra.Logger) *App {
	return &App{Repo: repo, Pipeline: pipeline, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func (a *App) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		a.json(w, http.StatusBadRequest, errorResponse{Error: validation.Reason})
	case errors.Is(err, domain.ErrNotFound):
		a.json(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		a.Logger.Error().Err(err).Msg("http: internal error")
		a.json(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
