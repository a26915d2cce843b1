package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the event id does not resolve.
	ErrNotFound = errors.New("events: event not found")
	// ErrMissingFields indicates a create request omitted required fields.
	ErrMissingFields = errors.New("events: name and event date are required")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// HasSubmissionsError rejects deletion of an event that still owns submissions.
type HasSubmissionsError struct {
	Count int64
}

func (e *HasSubmissionsError) Error() string {
	return fmt.Sprintf("cannot delete event with %d submission(s), archive it instead", e.Count)
}

// ServiceError carries a dotted operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "events.service.new"
	opCreate     = "events.create"
	opUpdate     = "events.update"
	opList       = "events.list"
	opGet        = "events.get"
	opArchive    = "events.archive"
	opDelete     = "events.delete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for new events.
type IDProvider interface {
	NewID() (string, error)
}

// SubmissionCounter reports submission totals per event without importing the
// submissions package.
type SubmissionCounter interface {
	CountForEvent(ctx context.Context, eventID string) (pending int64, total int64, err error)
}

// ServiceConfig describes the dependencies of the event service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Submissions SubmissionCounter
	Logger      *zap.Logger
}

// Service manages events and their capture configuration.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	submissions SubmissionCounter
	logger      *zap.Logger
}

// NewService constructs the event service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		submissions: cfg.Submissions,
		logger:      logger,
	}, nil
}

// AttachSubmissionCounter wires the submission counter after construction.
// The submission service depends on this service for event lookups, so one
// side of the pair has to be attached late.
func (s *Service) AttachSubmissionCounter(counter SubmissionCounter) {
	s.submissions = counter
}

// CreateRequest carries the fields accepted when creating an event.
type CreateRequest struct {
	Name        string
	Description string
	EventDate   time.Time
}

// Create persists a new event with default free-entry capture settings.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Event, error) {
	if strings.TrimSpace(req.Name) == "" || req.EventDate.IsZero() {
		return Event{}, ErrMissingFields
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Event{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	event := Event{
		ID:                    id,
		Name:                  req.Name,
		Description:           req.Description,
		EventDate:             req.EventDate,
		PromptMode:            CaptureModeFree,
		CustomTextMode:        CaptureModeFree,
		PromptPresetsJSON:     "[]",
		CustomTextPresetsJSON: "[]",
		BrandingOpacityPct:    100,
		BrandingAspectLock:    true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("event_name", req.Name))
		return Event{}, newServiceError(opCreate, "insert_failed", err)
	}
	return event, nil
}

// CaptureSettingsUpdate replaces the capture configuration of an event.
type CaptureSettingsUpdate struct {
	PromptMode            CaptureMode
	LockedPromptTitle     string
	LockedPromptValue     string
	PromptPresets         []CaptureOption
	CustomTextMode        CaptureMode
	LockedCustomTextValue string
	CustomTextPresets     []CaptureOption
}

// BrandingUpdate replaces the branding overlay configuration of an event.
type BrandingUpdate struct {
	Enabled         bool
	LogoURL         string
	PositionXPct    float64
	PositionYPct    float64
	SizePct         float64
	OpacityPct      float64
	LockAspectRatio bool
}

// UpdateRequest carries optional field updates; nil members are left untouched.
type UpdateRequest struct {
	Name            *string
	Description     *string
	EventDate       *time.Time
	CaptureSettings *CaptureSettingsUpdate
	Branding        *BrandingUpdate
}

// Update applies the provided changes to an existing event.
func (s *Service) Update(ctx context.Context, eventID string, req UpdateRequest) (Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		event.Name = *req.Name
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.EventDate != nil && !req.EventDate.IsZero() {
		event.EventDate = *req.EventDate
	}
	if req.CaptureSettings != nil {
		settings := req.CaptureSettings
		promptMode, err := ParseCaptureMode(string(settings.PromptMode))
		if err != nil {
			return Event{}, err
		}
		customTextMode, err := ParseCaptureMode(string(settings.CustomTextMode))
		if err != nil {
			return Event{}, err
		}
		event.PromptMode = promptMode
		event.LockedPromptTitle = settings.LockedPromptTitle
		event.LockedPromptValue = settings.LockedPromptValue
		event.CustomTextMode = customTextMode
		event.LockedCustomTextValue = settings.LockedCustomTextValue
		if err := event.SetPromptPresets(settings.PromptPresets); err != nil {
			return Event{}, newServiceError(opUpdate, "encode_presets_failed", err)
		}
		if err := event.SetCustomTextPresets(settings.CustomTextPresets); err != nil {
			return Event{}, newServiceError(opUpdate, "encode_presets_failed", err)
		}
	}
	if req.Branding != nil {
		branding := req.Branding
		event.BrandingEnabled = branding.Enabled
		event.BrandingLogoURL = branding.LogoURL
		event.BrandingPositionX = branding.PositionXPct
		event.BrandingPositionY = branding.PositionYPct
		event.BrandingSizePct = branding.SizePct
		event.BrandingOpacityPct = branding.OpacityPct
		event.BrandingAspectLock = branding.LockAspectRatio
	}

	event.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&event).Error; err != nil {
		s.logError(opUpdate, "save_failed", err, zap.String("event_id", eventID))
		return Event{}, newServiceError(opUpdate, "save_failed", err)
	}
	return event, nil
}

// Get loads a single event by id.
func (s *Service) Get(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("event_id", eventID))
		return Event{}, newServiceError(opGet, "query_failed", err)
	}
	return event, nil
}

// EventWithCounts pairs an event with its submission totals for list views.
type EventWithCounts struct {
	Event
	PendingCount int64
	TotalCount   int64
}

// List returns events newest-first. Archived events are included only when
// requested; capture clients always see the active set.
func (s *Service) List(ctx context.Context, includeArchived bool) ([]EventWithCounts, error) {
	query := s.db.WithContext(ctx).Order("event_date DESC")
	if !includeArchived {
		query = query.Where("is_archived = ?", false)
	}

	var events []Event
	if err := query.Find(&events).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}

	withCounts := make([]EventWithCounts, 0, len(events))
	for _, event := range events {
		entry := EventWithCounts{Event: event}
		if s.submissions != nil {
			pending, total, err := s.submissions.CountForEvent(ctx, event.ID)
			if err != nil {
				s.logError(opList, "count_failed", err, zap.String("event_id", event.ID))
				return nil, newServiceError(opList, "count_failed", err)
			}
			entry.PendingCount = pending
			entry.TotalCount = total
		}
		withCounts = append(withCounts, entry)
	}
	return withCounts, nil
}

// SetArchived toggles the archive flag. Archived events stay queryable for
// history but disappear from capture clients.
func (s *Service) SetArchived(ctx context.Context, eventID string, archived bool) (Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	event.IsArchived = archived
	event.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&event).Error; err != nil {
		s.logError(opArchive, "save_failed", err, zap.String("event_id", eventID))
		return Event{}, newServiceError(opArchive, "save_failed", err)
	}
	return event, nil
}

// Delete removes an event. Deletion is refused while any submission still
// references it; the error carries the exact count for the operator.
func (s *Service) Delete(ctx context.Context, eventID string) error {
	if s.submissions != nil {
		_, total, err := s.submissions.CountForEvent(ctx, eventID)
		if err != nil {
			s.logError(opDelete, "count_failed", err, zap.String("event_id", eventID))
			return newServiceError(opDelete, "count_failed", err)
		}
		if total > 0 {
			return &HasSubmissionsError{Count: total}
		}
	}

	result := s.db.WithContext(ctx).Where("id = ?", eventID).Delete(&Event{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("event_id", eventID))
		return newServiceError(opDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("events service error", attrs...)
}
