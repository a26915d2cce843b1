package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleClaimNext hands the single oldest approved submission to the
// processor. 204 means the queue is empty. The processor is expected to flip
// the item to processing immediately via the status endpoint.
func (h *httpHandler) handleClaimNext(c *gin.Context) {
	submission, err := h.submissions.ClaimNext(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	if submission == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, h.submissionToPayload(*submission))
}

func (h *httpHandler) handleRecoverStale(c *gin.Context) {
	result, err := h.submissions.RecoverStale(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	reset := make([]submissionPayload, 0, len(result.Submissions))
	for _, submission := range result.Submissions {
		reset = append(reset, h.submissionToPayload(submission))
	}
	c.JSON(http.StatusOK, gin.H{
		"reset":       result.Reset,
		"submissions": reset,
	})
}

func (h *httpHandler) handleHeartbeat(c *gin.Context) {
	now := h.clock().UTC()
	h.heartbeat.Beat(now)
	c.JSON(http.StatusOK, gin.H{"recorded_at": now})
}

type processorStatusPayload struct {
	Healthy  bool       `json:"healthy"`
	LastBeat *time.Time `json:"last_beat,omitempty"`
}

// handleProcessorStatus feeds the admin health banner.
func (h *httpHandler) handleProcessorStatus(c *gin.Context) {
	response := processorStatusPayload{Healthy: h.heartbeat.Healthy(h.clock().UTC())}
	if last := h.heartbeat.LastBeat(); !last.IsZero() {
		response.LastBeat = &last
	}
	c.JSON(http.StatusOK, response)
}
