package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	notifdomain "msomi-backend/internal/notification/domain"
	notifdto "msomi-backend/internal/notification/dto"
	"msomi-backend/internal/notification/usecase"

	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes the fan-out submission and observability routes.
type NotificationHandler struct {
	fanoutUsecase usecase.FanoutUsecase
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(fanoutUsecase usecase.FanoutUsecase) *NotificationHandler {
	return &NotificationHandler{
		fanoutUsecase: fanoutUsecase,
	}
}

// SendCourseAlert enqueues a push fan-out to every device subscribed to a
// course. The response carries the job id; delivery happens asynchronously.
func (h *NotificationHandler) SendCourseAlert(c *gin.Context) {
	var req notifdto.CourseAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "courseCode, title, and body are required"})
		return
	}
	if req.Urgency == "" {
		req.Urgency = notifdomain.UrgencyNormal
	}

	job, recipients, err := h.fanoutUsecase.SubmitCourseAlert(c.Request.Context(), req.CourseCode, req.Title, req.Body, req.Urgency)
	if err != nil {
		if errors.Is(err, usecase.ErrNoRecipients) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no devices found for course " + req.CourseCode})
			return
		}
		if errors.Is(err, notifdomain.ErrInvalidJobPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":        true,
		"jobId":          job.ID,
		"recipientCount": recipients,
	})
}

// Send enqueues a raw fan-out submission (push, telegram or batch).
func (h *NotificationHandler) Send(c *gin.Context) {
	var req notifdto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "type is required"})
		return
	}

	payload := notifdomain.JobPayload{
		Type:       req.Type,
		Tokens:     req.Tokens,
		CourseCode: req.CourseCode,
		Urgency:    req.Urgency,
		ChatID:     req.ChatID,
		Message: notifdomain.Message{
			Title: req.Message.Title,
			Body:  req.Message.Body,
			Data:  req.Message.Data,
		},
	}

	job, err := h.fanoutUsecase.Submit(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, notifdomain.ErrInvalidJobPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "jobId": job.ID})
}

// GetJob returns the current state, attempts and progress of one job.
func (h *NotificationHandler) GetJob(c *gin.Context) {
	job, err := h.fanoutUsecase.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, notifdomain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"id":           job.ID,
		"state":        job.State,
		"attemptsMade": job.AttemptsMade,
		"progress":     job.Progress,
		"lastError":    job.LastError,
	})
}

// RetryJob re-queues a failed job.
func (h *NotificationHandler) RetryJob(c *gin.Context) {
	err := h.fanoutUsecase.RetryJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, notifdomain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "job not found"})
			return
		}
		if errors.Is(err, notifdomain.ErrInvalidStateTransition) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "queued for retry"})
}

// GetQueueStats returns a snapshot of job counts per state.
func (h *NotificationHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.fanoutUsecase.QueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ClearQueue removes completed and failed jobs from the durable store.
func (h *NotificationHandler) ClearQueue(c *gin.Context) {
	if err := h.fanoutUsecase.ClearQueue(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "queue cleared"})
}

// GetHistory returns delivery records, newest first.
func (h *NotificationHandler) GetHistory(c *gin.Context) {
	filter := notifdomain.RecordFilter{
		CourseCode: c.Query("courseCode"),
	}
	if limit := c.Query("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filter.Limit = parsed
		}
	}
	if since := c.Query("since"); since != "" {
		if parsed, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = parsed
		}
	}

	records, err := h.fanoutUsecase.History(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(records), "notifications": records})
}
