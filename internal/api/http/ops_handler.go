package http

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"carrental-backend/internal/jobs"
)

// OpsHandler exposes operational endpoints for the scheduler daemon:
// a health check and manual job triggering.
type OpsHandler struct {
	db   *sql.DB
	jobs *jobs.JobRunner
}

func NewOpsHandler(db *sql.DB, jobRunner *jobs.JobRunner) *OpsHandler {
	return &OpsHandler{
		db:   db,
		jobs: jobRunner,
	}
}

// Router builds the ops router.
func (h *OpsHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{name}/run", h.HandleRunJob).Methods(http.MethodPost)
	return r
}

// HandleHealth reports liveness, including database reachability.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRunJob triggers a single lifecycle job immediately. Jobs are
// idempotent, so running one out of schedule is always safe.
func (h *OpsHandler) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	switch name {
	case "activate-contracts":
		h.jobs.ActivateConfirmedContracts()
	case "complete-contracts":
		h.jobs.CompleteActiveContracts()
	case "all":
		h.jobs.RunAllLifecycleJobs()
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown job: " + name,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
