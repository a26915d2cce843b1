package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
	"github.com/lumetrymedia/stickerbooth/backend/internal/presets"
	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
	"go.uber.org/zap"
)

type generatedImagePayload struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

type logEntryPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
}

type submissionPayload struct {
	ID                  string                  `json:"id"`
	EventID             string                  `json:"event_id"`
	Name                string                  `json:"name"`
	Email               string                  `json:"email,omitempty"`
	Phone               string                  `json:"phone,omitempty"`
	PhotoURL            string                  `json:"photo_url"`
	Prompt              string                  `json:"prompt"`
	CustomText          string                  `json:"custom_text,omitempty"`
	Status              string                  `json:"status"`
	GeneratedImages     []generatedImagePayload `json:"generated_images"`
	ProcessingLogs      []logEntryPayload       `json:"processing_logs"`
	ApprovedAt          *time.Time              `json:"approved_at,omitempty"`
	ProcessingStartedAt *time.Time              `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time              `json:"processed_at,omitempty"`
	RetryCount          int                     `json:"retry_count"`
	FailureReason       string                  `json:"failure_reason,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

func (h *httpHandler) submissionToPayload(submission submissions.Submission) submissionPayload {
	payload := submissionPayload{
		ID:                  submission.ID,
		EventID:             submission.EventID,
		Name:                submission.Name,
		Email:               submission.Email,
		Phone:               submission.Phone,
		PhotoURL:            submission.PhotoURL,
		Prompt:              submission.Prompt,
		CustomText:          submission.CustomText,
		Status:              string(submission.Status),
		GeneratedImages:     []generatedImagePayload{},
		ProcessingLogs:      []logEntryPayload{},
		ApprovedAt:          submission.ApprovedAt,
		ProcessingStartedAt: submission.ProcessingStartedAt,
		ProcessedAt:         submission.ProcessedAt,
		RetryCount:          submission.RetryCount,
		FailureReason:       submission.FailureReason,
		CreatedAt:           submission.CreatedAt,
	}

	images, err := submission.GeneratedImages()
	if err != nil {
		h.logger.Warn("failed to decode generated images",
			zap.String("submission_id", submission.ID), zap.Error(err))
	}
	for _, image := range images {
		payload.GeneratedImages = append(payload.GeneratedImages, generatedImagePayload{
			URL:       image.URL,
			Filename:  image.Filename,
			CreatedAt: image.CreatedAt,
		})
	}

	logs, err := submission.ProcessingLogs()
	if err != nil {
		h.logger.Warn("failed to decode processing logs",
			zap.String("submission_id", submission.ID), zap.Error(err))
	}
	for _, entry := range logs {
		payload.ProcessingLogs = append(payload.ProcessingLogs, logEntryPayload{
			Timestamp: entry.Timestamp,
			Message:   entry.Message,
			Level:     string(entry.Level),
		})
	}

	return payload
}

type captureOptionPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type brandingPayload struct {
	Enabled         bool    `json:"enabled"`
	LogoURL         string  `json:"logo_url"`
	PositionX       float64 `json:"position_x"`
	PositionY       float64 `json:"position_y"`
	Size            float64 `json:"size"`
	Opacity         float64 `json:"opacity"`
	LockAspectRatio bool    `json:"lock_aspect_ratio"`
}

type eventPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	EventDate   time.Time `json:"event_date"`
	IsArchived  bool      `json:"is_archived"`

	PromptMode            string                 `json:"prompt_mode"`
	LockedPromptTitle     string                 `json:"locked_prompt_title,omitempty"`
	LockedPromptValue     string                 `json:"locked_prompt_value,omitempty"`
	PromptPresets         []captureOptionPayload `json:"prompt_presets"`
	CustomTextMode        string                 `json:"custom_text_mode"`
	LockedCustomTextValue string                 `json:"locked_custom_text_value,omitempty"`
	CustomTextPresets     []captureOptionPayload `json:"custom_text_presets"`

	Branding brandingPayload `json:"branding"`

	PendingCount *int64 `json:"pending_count,omitempty"`
	TotalCount   *int64 `json:"total_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *httpHandler) eventToPayload(event events.Event) eventPayload {
	payload := eventPayload{
		ID:                    event.ID,
		Name:                  event.Name,
		Description:           event.Description,
		EventDate:             event.EventDate,
		IsArchived:            event.IsArchived,
		PromptMode:            string(event.PromptMode),
		LockedPromptTitle:     event.LockedPromptTitle,
		LockedPromptValue:     event.LockedPromptValue,
		PromptPresets:         []captureOptionPayload{},
		CustomTextMode:        string(event.CustomTextMode),
		LockedCustomTextValue: event.LockedCustomTextValue,
		CustomTextPresets:     []captureOptionPayload{},
		CreatedAt:             event.CreatedAt,
		UpdatedAt:             event.UpdatedAt,
	}

	branding := event.Branding()
	payload.Branding = brandingPayload{
		Enabled:         branding.Enabled,
		LogoURL:         branding.LogoURL,
		PositionX:       branding.PositionXPct,
		PositionY:       branding.PositionYPct,
		Size:            branding.SizePct,
		Opacity:         branding.OpacityPct,
		LockAspectRatio: branding.LockAspectRatio,
	}

	promptPresets, err := event.PromptPresets()
	if err != nil {
		h.logger.Warn("failed to decode prompt presets",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	for _, option := range promptPresets {
		payload.PromptPresets = append(payload.PromptPresets, captureOptionPayload{Name: option.Name, Value: option.Value})
	}

	customTextPresets, err := event.CustomTextPresets()
	if err != nil {
		h.logger.Warn("failed to decode custom text presets",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	for _, option := range customTextPresets {
		payload.CustomTextPresets = append(payload.CustomTextPresets, captureOptionPayload{Name: option.Name, Value: option.Value})
	}

	return payload
}

type presetPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Prompt     string `json:"prompt"`
	CustomText string `json:"custom_text,omitempty"`
}

func presetToPayload(preset presets.Preset) presetPayload {
	return presetPayload{
		ID:         preset.ID,
		Name:       preset.Name,
		Prompt:     preset.Prompt,
		CustomText: preset.CustomText,
	}
}

// respondDomainError translates service errors into HTTP responses. Domain
// rule violations carry their message to the client; everything else stays a
// generic internal error.
func (h *httpHandler) respondDomainError(c *gin.Context, err error) {
	var hasSubmissions *events.HasSubmissionsError
	switch {
	case errors.Is(err, submissions.ErrNotFound),
		errors.Is(err, events.ErrNotFound),
		errors.Is(err, presets.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, submissions.ErrMissingFields),
		errors.Is(err, events.ErrMissingFields),
		errors.Is(err, presets.ErrMissingFields),
		errors.Is(err, submissions.ErrInvalidPhoto),
		errors.Is(err, submissions.ErrInvalidStatus),
		errors.Is(err, submissions.ErrInvalidTransition),
		errors.Is(err, submissions.ErrEventArchived),
		errors.Is(err, events.ErrInvalidCaptureMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, presets.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &hasSubmissions):
		c.JSON(http.StatusConflict, gin.H{"error": hasSubmissions.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
