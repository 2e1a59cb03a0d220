package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/firesafe/ledger/internal/infrastructure/scheduler"
	"github.com/firesafe/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// JobRunner runs registered background jobs on demand
type JobRunner interface {
	Jobs() []string
	RunNow(ctx context.Context, name string) (string, error)
}

// JobsHandler exposes the ledger maintenance jobs for manual runs
type JobsHandler struct {
	BaseHandler
	runner JobRunner
}

// NewJobsHandler creates a new JobsHandler
func NewJobsHandler(runner JobRunner) *JobsHandler {
	return &JobsHandler{runner: runner}
}

// JobRunResponse is the outcome of a manual run
type JobRunResponse struct {
	Job     string `json:"job"`
	Outcome string `json:"outcome"`
}

// ListJobs returns the registered job names
func (h *JobsHandler) ListJobs(c *gin.Context) {
	h.Success(c, h.runner.Jobs())
}

// RunJob runs a job now under the same cross-instance lock as a scheduled run
func (h *JobsHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	outcome, err := h.runner.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Unknown job "+name)
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}
	h.Success(c, JobRunResponse{Job: name, Outcome: outcome})
}
