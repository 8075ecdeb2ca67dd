package apihandlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"triage/internal/app"
	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/store"
)

// maxBodyBytes bounds request bodies on the message endpoints.
const maxBodyBytes = 64 * 1024

// MessageProcessor is the part of the message service the handlers call.
type MessageProcessor interface {
	Prepare(msg models.CustomerMessage) (models.CustomerMessage, error)
	Process(ctx context.Context, msg models.CustomerMessage) (*models.ProcessedMessage, error)
}

// UsageSummarizer reports usage ledger totals.
type UsageSummarizer interface {
	GetSummary(ctx context.Context) (models.UsageSummary, error)
}

type APIHandler struct {
	Messages MessageProcessor
	Jobs     store.JobClient // nil when Redis is not configured
	Usage    UsageSummarizer // nil when no ledger database is configured
	Provider string
	Model    string
}

// NewAPIHandler builds a handler from the initialised application.
func NewAPIHandler(a *app.App) *APIHandler {
	h := &APIHandler{
		Messages: a.MessageService,
		Jobs:     a.JobClient,
		Provider: a.Config.Classifier.Provider,
		Model:    a.Config.Classifier.Model,
	}
	if a.CostService != nil {
		h.Usage = a.CostService
	}
	return h
}

// JobAccepted is the 202 body of the async endpoint.
type JobAccepted struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}

// JobResponse describes an async classification job.
type JobResponse struct {
	JobID     string                   `json:"job_id"`
	Queue     string                   `json:"queue"`
	Status    string                   `json:"status"`
	Retried   int                      `json:"retried"`
	LastError string                   `json:"last_error,omitempty"`
	Result    *models.ProcessedMessage `json:"result,omitempty"`
}

// ProcessMessageHandler classifies one message synchronously.
func (h *APIHandler) ProcessMessageHandler(c *gin.Context) {
	msg, ok := bindMessage(c)
	if !ok {
		return
	}

	result, err := h.Messages.Process(c.Request.Context(), msg)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EnqueueMessageHandler validates a message and queues it for the worker.
func (h *APIHandler) EnqueueMessageHandler(c *gin.Context) {
	if h.Jobs == nil {
		Unavailable(c, "async processing is not configured (redis.address is empty)")
		return
	}
	msg, ok := bindMessage(c)
	if !ok {
		return
	}

	prepared, err := h.Messages.Prepare(msg)
	if err != nil {
		RespondError(c, err)
		return
	}

	info, err := h.Jobs.EnqueueClassification(c.Request.Context(), prepared)
	if err != nil {
		Internal(c, fmt.Sprintf("failed to enqueue message: %v", err))
		return
	}

	log.WithFields(log.Fields{
		"request_id":  requestctx.RequestID(c.Request.Context()),
		"customer_id": prepared.CustomerID,
		"job_id":      info.ID,
	}).Info("Message queued for classification")
	c.JSON(http.StatusAccepted, JobAccepted{JobID: info.ID, Queue: info.Queue})
}

// GetJobHandler reports the state of an async job and its result once
// completed.
func (h *APIHandler) GetJobHandler(c *gin.Context) {
	if h.Jobs == nil {
		Unavailable(c, "async processing is not configured (redis.address is empty)")
		return
	}
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "job id is required")
		return
	}

	info, err := h.Jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}

	resp := JobResponse{
		JobID:     info.ID,
		Queue:     info.Queue,
		Status:    store.JobStatus(info),
		Retried:   info.Retried,
		LastError: info.LastErr,
	}
	if resp.Status == models.JobStatusCompleted && len(info.Result) > 0 {
		var result models.ProcessedMessage
		if err := json.Unmarshal(info.Result, &result); err != nil {
			Internal(c, fmt.Sprintf("failed to decode job result: %v", err))
			return
		}
		resp.Result = &result
	}
	c.JSON(http.StatusOK, resp)
}

// UsageSummaryHandler returns the usage ledger totals.
func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	if h.Usage == nil {
		Unavailable(c, "usage ledger is not configured (database.dsn is empty)")
		return
	}
	summary, err := h.Usage.GetSummary(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Customer Message Processor API is running"})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": h.Provider, "model": h.Model})
}

// bindMessage decodes the request body. Binding failures are input
// validation errors.
func bindMessage(c *gin.Context) (models.CustomerMessage, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var msg models.CustomerMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return msg, false
	}
	return msg, true
}
