package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListPresets(c *gin.Context) {
	listed, err := h.presets.List(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	response := make([]presetPayload, 0, len(listed))
	for _, preset := range listed {
		response = append(response, presetToPayload(preset))
	}
	c.JSON(http.StatusOK, gin.H{"presets": response})
}

type createPresetPayload struct {
	Name       string `json:"name"`
	Prompt     string `json:"prompt"`
	CustomText string `json:"custom_text"`
}

func (h *httpHandler) handleCreatePreset(c *gin.Context) {
	var request createPresetPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	preset, err := h.presets.Create(c.Request.Context(), request.Name, request.Prompt, request.CustomText)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presetToPayload(preset))
}

func (h *httpHandler) handleDeletePreset(c *gin.Context) {
	if err := h.presets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
