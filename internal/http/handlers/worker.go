package handlers

import "net/http"

// RunWorker is the trigger endpoint: it runs exactly one worker cycle and
// reports its outcome. "no_work" and "already_claimed" are normal responses
// under an empty queue or a lost claim race.
func (a *App) RunWorker(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.Pipeline.RunOnce(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.json(w, http.StatusOK, outcome)
}
