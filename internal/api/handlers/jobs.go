package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"printrelay/internal/blob"
	"printrelay/internal/db"
	"printrelay/internal/notify"
)

type JobResponse struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	PrinterID    string    `json:"printer_id"`
	Options      string    `json:"options"`
	Context      string    `json:"context,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListJobsQuery struct {
	ClientID string `form:"client_id"`
	Status   string `form:"status"`
	Limit    int    `form:"limit" binding:"max=100"`
	Offset   int    `form:"offset"`
}

type QueueResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

type JobHandler struct {
	payloads  blob.Store
	publisher notify.Publisher
	logger    *slog.Logger
}

func NewJobHandler(payloads blob.Store, publisher notify.Publisher, logger *slog.Logger) *JobHandler {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &JobHandler{
		payloads:  payloads,
		publisher: publisher,
		logger:    logger,
	}
}

// SubmitJob accepts a multipart print submission. The payload is stored
// before the job row is written, so a visible job always has a fetchable
// payload behind it. The notify publish is best-effort: workers poll as a
// fallback, so a failed publish delays the job, never loses it.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	clientID := c.PostForm("clientId")
	printerID := c.PostForm("printerId")
	options := c.PostForm("cupsOptions")
	jobContext := c.PostForm("context")

	if clientID == "" || printerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId and printerId are required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer file.Close()

	ref := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.payloads.Put(c.Request.Context(), ref, file, fileHeader.Size, contentType); err != nil {
		h.logger.Error("failed to store payload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store payload"})
		return
	}

	job := &db.PrintJob{
		ClientID:   clientID,
		PrinterID:  printerID,
		PayloadRef: ref,
		Options:    options,
		Context:    jobContext,
	}

	if err := db.Jobs.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to create job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := h.publisher.JobCreated(c.Request.Context(), clientID); err != nil {
		h.logger.Warn("failed to publish job notification", "job_id", job.ID, "error", err)
	}

	h.logger.Info("job submitted",
		"job_id", job.ID, "client_id", clientID, "printer_id", printerID)

	c.JSON(http.StatusCreated, gin.H{
		"id":      job.ID,
		"status":  job.Status,
		"message": "job submitted successfully",
	})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}

	jobs, err := db.Jobs.ListJobs(c.Request.Context(), db.JobFilter{
		ClientID: query.ClientID,
		Status:   query.Status,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobToResponse(job))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   responses,
		"limit":  query.Limit,
		"offset": query.Offset,
		"count":  len(responses),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := db.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	job, err := db.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	if job.Status == "processing" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete processing job"})
		return
	}

	if err := db.Jobs.DeleteJob(c.Request.Context(), job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}

	// The payload stays until the cleanup sweep confirms nothing else
	// references it.
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (h *JobHandler) GetQueue(c *gin.Context) {
	counts, err := db.Jobs.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue stats"})
		return
	}

	resp := QueueResponse{
		Pending:    counts["pending"],
		Processing: counts["processing"],
		Completed:  counts["completed"],
		Failed:     counts["failed"],
	}
	resp.Total = resp.Pending + resp.Processing + resp.Completed + resp.Failed

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/:id", h.GetJob)
	r.DELETE("/jobs/:id", h.DeleteJob)
	r.GET("/queue", h.GetQueue)
}

func jobToResponse(job *db.PrintJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		ClientID:     job.ClientID,
		PrinterID:    job.PrinterID,
		Options:      job.Options,
		Context:      job.Context,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
	}
}
