package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
)

type createSubmissionPayload struct {
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Photo      string `json:"photo"`
	Prompt     string `json:"prompt"`
	CustomText string `json:"custom_text"`
}

func (h *httpHandler) handleCreateSubmission(c *gin.Context) {
	var request createSubmissionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), submissions.CreateRequest{
		EventID:    request.EventID,
		Name:       request.Name,
		Email:      request.Email,
		Phone:      request.Phone,
		Photo:      request.Photo,
		Prompt:     request.Prompt,
		CustomText: request.CustomText,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.submissionToPayload(submission))
}

type submissionListPayload struct {
	Submissions []submissionPayload `json:"submissions"`
	Total       int64               `json:"total"`
	Limit       int                 `json:"limit"`
	Skip        int                 `json:"skip"`
	HasMore     bool                `json:"has_more"`
}

func (h *httpHandler) handleListSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	skip, _ := strconv.Atoi(c.Query("skip"))

	result, err := h.submissions.List(c.Request.Context(), submissions.ListRequest{
		EventID: c.Query("event_id"),
		Status:  c.Query("status"),
		Limit:   limit,
		Skip:    skip,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	response := submissionListPayload{
		Submissions: make([]submissionPayload, 0, len(result.Submissions)),
		Total:       result.Total,
		Limit:       result.Limit,
		Skip:        result.Skip,
		HasMore:     result.HasMore,
	}
	for _, submission := range result.Submissions {
		response.Submissions = append(response.Submissions, h.submissionToPayload(submission))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetSubmission(c *gin.Context) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

// handleSubmissionThumbnail serves the review-grid projection: just enough to
// render a card without shipping logs and image lists.
func (h *httpHandler) handleSubmissionThumbnail(c *gin.Context) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        submission.ID,
		"photo_url": submission.PhotoURL,
		"status":    string(submission.Status),
		"name":      submission.Name,
	})
}

type updateSubmissionPayload struct {
	PhotoURL            *string    `json:"photo_url"`
	Prompt              *string    `json:"prompt"`
	CustomText          *string    `json:"custom_text"`
	ProcessingStartedAt *time.Time `json:"processing_started_at"`
}

func (h *httpHandler) handleUpdateSubmissionFields(c *gin.Context) {
	var request updateSubmissionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	submission, err := h.submissions.UpdateFields(c.Request.Context(), c.Param("id"), submissions.FieldUpdate{
		PhotoURL:            request.PhotoURL,
		Prompt:              request.Prompt,
		CustomText:          request.CustomText,
		ProcessingStartedAt: request.ProcessingStartedAt,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

type transitionStatusPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleTransitionStatus(c *gin.Context) {
	var request transitionStatusPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	status, err := submissions.ParseStatus(request.Status)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	submission, err := h.submissions.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleApproveSubmission(c *gin.Context) {
	submission, err := h.submissions.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleRejectSubmission(c *gin.Context) {
	submission, err := h.submissions.SetStatus(c.Request.Context(), c.Param("id"), submissions.StatusRejected)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleAddToQueue(c *gin.Context) {
	submission, err := h.submissions.AddToQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleRetrySubmission(c *gin.Context) {
	submission, err := h.submissions.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleRegenerateSubmission(c *gin.Context) {
	clone, err := h.submissions.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.submissionToPayload(clone))
}

func (h *httpHandler) handleVerifySubmission(c *gin.Context) {
	result, err := h.submissions.VerifyStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fixed":      result.Fixed,
		"message":    result.Message,
		"submission": h.submissionToPayload(result.Submission),
	})
}

type failSubmissionPayload struct {
	Reason string `json:"reason"`
}

func (h *httpHandler) handleFailSubmission(c *gin.Context) {
	var request failSubmissionPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	submission, err := h.submissions.MarkFailed(c.Request.Context(), c.Param("id"), request.Reason)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

type appendLogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func (h *httpHandler) handleAppendLog(c *gin.Context) {
	var request appendLogPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	submission, err := h.submissions.AppendLog(c.Request.Context(), c.Param("id"), request.Message, submissions.LogLevel(request.Level))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

type completeImagesPayload struct {
	Images []completeImagePayload `json:"images"`
}

type completeImagePayload struct {
	Data      string    `json:"data"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *httpHandler) handleCompleteWithImages(c *gin.Context) {
	var request completeImagesPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	uploads := make([]submissions.ImageUpload, 0, len(request.Images))
	for _, image := range request.Images {
		data, err := submissions.DecodePhotoPayload(image.Data)
		if err != nil {
			h.respondDomainError(c, err)
			return
		}
		uploads = append(uploads, submissions.ImageUpload{
			Data:      data,
			Filename:  image.Filename,
			CreatedAt: image.CreatedAt,
		})
	}

	submission, err := h.submissions.CompleteWithImages(c.Request.Context(), c.Param("id"), uploads)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(submission))
}

func (h *httpHandler) handleDeleteSubmission(c *gin.Context) {
	if err := h.submissions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
