package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/auth"
	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
)

type createEventPayload struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EventDate   time.Time `json:"event_date"`
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	var request createEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	event, err := h.events.Create(c.Request.Context(), events.CreateRequest{
		Name:        request.Name,
		Description: request.Description,
		EventDate:   request.EventDate,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.eventToPayload(event))
}

// handleListEvents serves both roles: kiosk clients always get the active
// set, admins can request archived events too.
func (h *httpHandler) handleListEvents(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true" &&
		c.GetString(roleContextKey) == string(auth.RoleAdmin)

	listed, err := h.events.List(c.Request.Context(), includeArchived)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	response := make([]eventPayload, 0, len(listed))
	for _, entry := range listed {
		payload := h.eventToPayload(entry.Event)
		pending, total := entry.PendingCount, entry.TotalCount
		payload.PendingCount = &pending
		payload.TotalCount = &total
		response = append(response, payload)
	}
	c.JSON(http.StatusOK, gin.H{"events": response})
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.eventToPayload(event))
}

type captureSettingsPayload struct {
	PromptMode            string                 `json:"prompt_mode"`
	LockedPromptTitle     string                 `json:"locked_prompt_title"`
	LockedPromptValue     string                 `json:"locked_prompt_value"`
	PromptPresets         []captureOptionPayload `json:"prompt_presets"`
	CustomTextMode        string                 `json:"custom_text_mode"`
	LockedCustomTextValue string                 `json:"locked_custom_text_value"`
	CustomTextPresets     []captureOptionPayload `json:"custom_text_presets"`
}

type updateEventPayload struct {
	Name            *string                 `json:"name"`
	Description     *string                 `json:"description"`
	EventDate       *time.Time              `json:"event_date"`
	CaptureSettings *captureSettingsPayload `json:"capture_settings"`
	Branding        *brandingPayload        `json:"branding"`
}

func (h *httpHandler) handleUpdateEvent(c *gin.Context) {
	var request updateEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	update := events.UpdateRequest{
		Name:        request.Name,
		Description: request.Description,
		EventDate:   request.EventDate,
	}
	if request.CaptureSettings != nil {
		settings := request.CaptureSettings
		update.CaptureSettings = &events.CaptureSettingsUpdate{
			PromptMode:            events.CaptureMode(settings.PromptMode),
			LockedPromptTitle:     settings.LockedPromptTitle,
			LockedPromptValue:     settings.LockedPromptValue,
			PromptPresets:         toCaptureOptions(settings.PromptPresets),
			CustomTextMode:        events.CaptureMode(settings.CustomTextMode),
			LockedCustomTextValue: settings.LockedCustomTextValue,
			CustomTextPresets:     toCaptureOptions(settings.CustomTextPresets),
		}
	}
	if request.Branding != nil {
		branding := request.Branding
		update.Branding = &events.BrandingUpdate{
			Enabled:         branding.Enabled,
			LogoURL:         branding.LogoURL,
			PositionXPct:    branding.PositionX,
			PositionYPct:    branding.PositionY,
			SizePct:         branding.Size,
			OpacityPct:      branding.Opacity,
			LockAspectRatio: branding.LockAspectRatio,
		}
	}

	event, err := h.events.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.eventToPayload(event))
}

func toCaptureOptions(options []captureOptionPayload) []events.CaptureOption {
	converted := make([]events.CaptureOption, 0, len(options))
	for _, option := range options {
		converted = append(converted, events.CaptureOption{Name: option.Name, Value: option.Value})
	}
	return converted
}

type archiveEventPayload struct {
	Archived bool `json:"archived"`
}

func (h *httpHandler) handleArchiveEvent(c *gin.Context) {
	var request archiveEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	event, err := h.events.SetArchived(c.Request.Context(), c.Param("id"), request.Archived)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.eventToPayload(event))
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
