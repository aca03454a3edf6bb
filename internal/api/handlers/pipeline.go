package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// ChainRunner is the part of the scheduler the pipeline endpoints drive
type ChainRunner interface {
	RunChain(ctx context.Context, jobName string) ([]scheduler.JobResult, error)
	GetAllJobs() []string
	Roots() []string
	GetJobStats() map[string]scheduler.JobStats
}

// PipelineHandler exposes job status and manual triggering
// ⭐ SSOT: 파이프라인 API 핸들러는 여기서만
type PipelineHandler struct {
	runner ChainRunner
	logger *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(runner ChainRunner, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		runner: runner,
		logger: log,
	}
}

// GetJobs returns statistics of every job in registration order
// GET /api/pipeline/jobs
func (h *PipelineHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.runner.GetJobStats()
	items := make([]scheduler.JobStats, 0, len(stats))
	for _, name := range h.runner.GetAllJobs() {
		items = append(items, stats[name])
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": items,
	})
}

// Run executes the whole pipeline synchronously
// POST /api/pipeline/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	roots := h.runner.Roots()
	if len(roots) == 0 {
		respondError(w, http.StatusInternalServerError, "no pipeline registered")
		return
	}

	// 클라이언트 연결이 끊겨도 실행은 끝까지 진행
	ctx := context.WithoutCancel(r.Context())

	all := make([]scheduler.JobResult, 0)
	for _, root := range roots {
		results, err := h.runner.RunChain(ctx, root)
		all = append(all, results...)

		if errors.Is(err, scheduler.ErrChainRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			h.logger.WithError(err).WithField("job", root).Warn("Manual pipeline run failed")
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"status": "failed",
				"error":  err.Error(),
				"jobs":   all,
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"jobs":   all,
	})
}
