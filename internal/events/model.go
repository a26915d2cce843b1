package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CaptureMode controls how the capture client collects a field from attendees.
type CaptureMode string

const (
	// CaptureModeFree lets attendees type any value.
	CaptureModeFree CaptureMode = "free"
	// CaptureModeLocked forces the operator-configured value.
	CaptureModeLocked CaptureMode = "locked"
	// CaptureModePresets restricts input to a named multiple-choice list.
	CaptureModePresets CaptureMode = "presets"
	// CaptureModeSuggestions offers the preset list as tappable chips but allows free entry.
	CaptureModeSuggestions CaptureMode = "suggestions"
)

// ErrInvalidCaptureMode indicates an unrecognized capture mode value.
var ErrInvalidCaptureMode = errors.New("events: invalid capture mode")

// ParseCaptureMode validates a raw capture mode string, defaulting empty input to free entry.
func ParseCaptureMode(value string) (CaptureMode, error) {
	switch CaptureMode(value) {
	case CaptureModeFree, CaptureModeLocked, CaptureModePresets, CaptureModeSuggestions:
		return CaptureMode(value), nil
	case "":
		return CaptureModeFree, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCaptureMode, value)
	}
}

// CaptureOption is a named value offered by preset or suggestion capture modes.
type CaptureOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BrandingConfig describes the optional logo overlay applied to generated images.
// Position and size are percentages of the target canvas; opacity is 0-100.
type BrandingConfig struct {
	Enabled        bool    `json:"enabled"`
	LogoURL        string  `json:"logoUrl"`
	PositionXPct   float64 `json:"positionX"`
	PositionYPct   float64 `json:"positionY"`
	SizePct        float64 `json:"size"`
	OpacityPct     float64 `json:"opacity"`
	LockAspectRatio bool   `json:"lockAspectRatio"`
}

// Event groups submissions and carries per-event capture and branding configuration.
type Event struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name        string    `gorm:"column:name;size:190;not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	EventDate   time.Time `gorm:"column:event_date;not null;index:idx_events_date"`
	IsArchived  bool      `gorm:"column:is_archived;not null;default:false"`

	PromptMode            CaptureMode `gorm:"column:prompt_mode;size:32;not null;default:'free'"`
	LockedPromptTitle     string      `gorm:"column:locked_prompt_title;not null;default:''"`
	LockedPromptValue     string      `gorm:"column:locked_prompt_value;type:text;not null;default:''"`
	PromptPresetsJSON     string      `gorm:"column:prompt_presets_json;type:text;not null;default:'[]'"`
	CustomTextMode        CaptureMode `gorm:"column:custom_text_mode;size:32;not null;default:'free'"`
	LockedCustomTextValue string      `gorm:"column:locked_custom_text_value;type:text;not null;default:''"`
	CustomTextPresetsJSON string      `gorm:"column:custom_text_presets_json;type:text;not null;default:'[]'"`

	BrandingEnabled    bool    `gorm:"column:branding_enabled;not null;default:false"`
	BrandingLogoURL    string  `gorm:"column:branding_logo_url;not null;default:''"`
	BrandingPositionX  float64 `gorm:"column:branding_position_x;not null;default:0"`
	BrandingPositionY  float64 `gorm:"column:branding_position_y;not null;default:0"`
	BrandingSizePct    float64 `gorm:"column:branding_size_pct;not null;default:0"`
	BrandingOpacityPct float64 `gorm:"column:branding_opacity_pct;not null;default:100"`
	BrandingAspectLock bool    `gorm:"column:branding_aspect_lock;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}

// PromptPresets decodes the stored prompt preset list.
func (e *Event) PromptPresets() ([]CaptureOption, error) {
	return decodeOptions(e.PromptPresetsJSON)
}

// SetPromptPresets encodes and stores the prompt preset list.
func (e *Event) SetPromptPresets(options []CaptureOption) error {
	encoded, err := encodeOptions(options)
	if err != nil {
		return err
	}
	e.PromptPresetsJSON = encoded
	return nil
}

// CustomTextPresets decodes the stored custom-text preset list.
func (e *Event) CustomTextPresets() ([]CaptureOption, error) {
	return decodeOptions(e.CustomTextPresetsJSON)
}

// SetCustomTextPresets encodes and stores the custom-text preset list.
func (e *Event) SetCustomTextPresets(options []CaptureOption) error {
	encoded, err := encodeOptions(options)
	if err != nil {
		return err
	}
	e.CustomTextPresetsJSON = encoded
	return nil
}

// Branding assembles the overlay configuration for the compositing pipeline.
func (e *Event) Branding() BrandingConfig {
	return BrandingConfig{
		Enabled:         e.BrandingEnabled,
		LogoURL:         e.BrandingLogoURL,
		PositionXPct:    e.BrandingPositionX,
		PositionYPct:    e.BrandingPositionY,
		SizePct:         e.BrandingSizePct,
		OpacityPct:      e.BrandingOpacityPct,
		LockAspectRatio: e.BrandingAspectLock,
	}
}

func decodeOptions(raw string) ([]CaptureOption, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var options []CaptureOption
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, err
	}
	return options, nil
}

func encodeOptions(options []CaptureOption) (string, error) {
	if len(options) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
