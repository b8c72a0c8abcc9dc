package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

// fetchRequest is the body for POST /api/v1/movies/fetch. Both fields are
// optional; blanks fall back to the configured defaults.
type fetchRequest struct {
	SearchTerm string `json:"searchTerm"`
	Year       string `json:"year"`
}

// startFetch handles POST /api/v1/movies/fetch. The job runs in the
// background; the response only acknowledges acceptance.
func (r *Router) startFetch(c *gin.Context) {
	var req fetchRequest
	// An empty body means "use the defaults", only malformed JSON is rejected.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	searchTerm, year := r.jobs.Normalize(req.SearchTerm, req.Year)
	jobID := r.jobs.StartJob(c.Request.Context(), searchTerm, year)

	r.logger.Info("Fetch job requested",
		logger.String("job_id", jobID),
		logger.String("search_term", searchTerm),
		logger.String("year", year),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"requestId": jobID,
		"message":   fmt.Sprintf("Started fetching %s movies for year %s", searchTerm, year),
		"success":   true,
	})
}

// activeJobs handles GET /api/v1/movies/fetch/jobs.
func (r *Router) activeJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"activeJobs": r.registry.ActiveJobs(),
	})
}

// cancelFetch handles POST /api/v1/movies/fetch/cancel/:requestId.
// Cancelling an unknown job is not an HTTP error; the body says whether
// anything was actually stopped.
func (r *Router) cancelFetch(c *gin.Context) {
	requestID := c.Param("requestId")

	if r.registry.Cancel(requestID) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": fmt.Sprintf("Job %s cancelled successfully", requestID),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"message": fmt.Sprintf("No active fetch job found with ID %s", requestID),
	})
}
