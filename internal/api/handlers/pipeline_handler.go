package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/andresuchdata/stockzero/backend-go/internal/pipeline"
	"github.com/gin-gonic/gin"
)

type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	runs         pipeline.Repository
	sources      map[string]pipeline.Source
}

func NewPipelineHandler(orchestrator *pipeline.Orchestrator, runs pipeline.Repository, sources map[string]pipeline.Source) *PipelineHandler {
	return &PipelineHandler{orchestrator: orchestrator, runs: runs, sources: sources}
}

func (h *PipelineHandler) sourceNames() []string {
	names := make([]string, 0, len(h.sources))
	for name := range h.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TriggerRun imports every file of ?source= (default local) and analyzes the result.
func (h *PipelineHandler) TriggerRun(c *gin.Context) {
	name := c.DefaultQuery("source", "local")
	src, ok := h.sources[name]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown pipeline source",
			"details": fmt.Sprintf("%q is not one of %v", name, h.sourceNames()),
		})
		return
	}

	result, err := h.orchestrator.Run(c.Request.Context(), src)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": "pipeline run failed", "details": err.Error()}
		if result != nil {
			body["run"] = result.Run
			body["jobs"] = result.Jobs
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run":      result.Run,
		"jobs":     result.Jobs,
		"analysis": result.Report,
		"outputs":  result.Outputs,
	})
}

func (h *PipelineHandler) RetryFailed(c *gin.Context) {
	results, err := h.orchestrator.RetryFailed(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to retry pipeline files")
		return
	}

	runs := make([]*pipeline.Run, 0, len(results))
	for _, r := range results {
		runs = append(runs, r.Run)
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)
	runs, err := h.runs.ListPipelineRuns(c.Request.Context(), c.Query("name"), limit)
	if err != nil {
		writeError(c, err, "failed to fetch pipeline runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *PipelineHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pipeline run id"})
		return
	}

	run, err := h.runs.GetPipelineRun(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch pipeline run")
		return
	}
	jobs, err := h.runs.GetFileJobs(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch pipeline jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "jobs": jobs})
}
