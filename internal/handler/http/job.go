package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
	"github.com/sitepass/subscription-whitelist/internal/pkg/cron"
)

// JobRunner is the part of the scheduler the admin API drives.
type JobRunner interface {
	Jobs() []cron.JobInfo
	RunJob(ctx context.Context, name string) error
}

type JobHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Run(w http.ResponseWriter, r *http.Request)
}

type jobHandlerImpl struct {
	runner JobRunner
}

func NewJobHandler(runner JobRunner) JobHandler {
	return &jobHandlerImpl{runner: runner}
}

// List returns the registered maintenance jobs
// GET /api/v1/admin/jobs - Admin
func (h *jobHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.runner.Jobs())
}

// Run executes a job synchronously and reports its outcome
// POST /api/v1/admin/jobs/{name}/run - Admin
func (h *jobHandlerImpl) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.runner.RunJob(r.Context(), name); err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "Job completed", map[string]string{"job": name})
}
