package submissions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
)

var (
	// ErrNotFound indicates the submission id does not resolve.
	ErrNotFound = errors.New("submissions: submission not found")
	// ErrMissingFields indicates a create request omitted required fields.
	ErrMissingFields = errors.New("submissions: event, name, photo, and prompt are required")
	// ErrEventArchived rejects submissions against archived events.
	ErrEventArchived = errors.New("submissions: cannot submit to archived event")
	// ErrInvalidPhoto indicates the photo payload could not be decoded.
	ErrInvalidPhoto = errors.New("submissions: invalid photo payload")
	// ErrInvalidTransition rejects a lifecycle operation from the wrong state.
	ErrInvalidTransition = errors.New("submissions: invalid status transition")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingStore      = errors.New("object store is required")
	errMissingEvents     = errors.New("event lookup is required")
	noOpLogger           = zap.NewNop()
)

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
	opServiceNew   = "submissions.service.new"
	opCreate       = "submissions.create"
	opList         = "submissions.list"
	opGet          = "submissions.get"
	opUpdateFields = "submissions.update_fields"
	opSetStatus    = "submissions.set_status"
	opApprove      = "submissions.approve"
	opAddToQueue   = "submissions.add_to_queue"
	opRetryFailed  = "submissions.retry_failed"
	opRegenerate   = "submissions.regenerate"
	opMarkFailed   = "submissions.mark_failed"
	opAppendLog    = "submissions.append_log"
	opDelete       = "submissions.delete"
	opCount        = "submissions.count_for_event"
	opClaimNext    = "submissions.claim_next"
	opRecoverStale = "submissions.recover_stale"
	opVerifyStatus = "submissions.verify_status"
	opComplete     = "submissions.complete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for new submissions.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the submission service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Store      ObjectStore
	Events     EventLookup
	Notifier   CompletionNotifier
	Compositor LogoCompositor
	Logger     *zap.Logger
}

// Service owns the submission lifecycle state machine. All coordination with
// the capture client, operator, and processor happens through single-row reads
// and writes against the shared datastore; there is no in-process locking.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	store      ObjectStore
	events     EventLookup
	notifier   CompletionNotifier
	compositor LogoCompositor
	logger     *zap.Logger
}

// NewService constructs the submission service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Events == nil {
		return nil, newServiceError(opServiceNew, "missing_events", errMissingEvents)
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
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		store:      cfg.Store,
		events:     cfg.Events,
		notifier:   cfg.Notifier,
		compositor: cfg.Compositor,
		logger:     logger,
	}, nil
}

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// DecodePhotoPayload strips an optional data-URL prefix and decodes base64
// image data.
func DecodePhotoPayload(payload string) ([]byte, error) {
	trimmed := dataURLPrefix.ReplaceAllString(strings.TrimSpace(payload), "")
	if trimmed == "" {
		return nil, ErrInvalidPhoto
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
	}
	return data, nil
}

// CreateRequest carries the fields supplied by the capture client.
type CreateRequest struct {
	EventID    string
	Name       string
	Email      string
	Phone      string
	Photo      string // base64, with or without a data-URL prefix
	Prompt     string
	CustomText string
}

// Create validates the request, uploads the captured photo, and persists a new
// pending submission. The record is written only after the upload succeeds.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Submission, error) {
	if strings.TrimSpace(req.EventID) == "" || strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.Photo) == "" || strings.TrimSpace(req.Prompt) == "" {
		return Submission{}, ErrMissingFields
	}

	event, err := s.events.Get(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return Submission{}, events.ErrNotFound
		}
		s.logError(opCreate, "event_lookup_failed", err, zap.String("event_id", req.EventID))
		return Submission{}, newServiceError(opCreate, "event_lookup_failed", err)
	}
	if event.IsArchived {
		return Submission{}, ErrEventArchived
	}

	photoData, err := DecodePhotoPayload(req.Photo)
	if err != nil {
		return Submission{}, err
	}

	photoURL, err := s.store.Put(ctx, photoData, "image/jpeg", "submissions")
	if err != nil {
		s.logError(opCreate, "photo_upload_failed", err, zap.String("event_id", req.EventID))
		return Submission{}, newServiceError(opCreate, "photo_upload_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Submission{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	submission := Submission{
		ID:                  id,
		EventID:             req.EventID,
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		PhotoURL:            photoURL,
		Prompt:              req.Prompt,
		CustomText:          req.CustomText,
		Status:              StatusPending,
		GeneratedImagesJSON: "[]",
		ProcessingLogsJSON:  "[]",
		CreatedAt:           s.clock().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("submission_id", id))
		return Submission{}, newServiceError(opCreate, "insert_failed", err)
	}

	s.logger.Info("submission created",
		zap.String("submission_id", id),
		zap.String("event_id", req.EventID))
	return submission, nil
}

// ListRequest filters and paginates the submission list.
type ListRequest struct {
	EventID string
	Status  string
	Limit   int
	Skip    int
}

// ListResult is one page of submissions plus pagination bookkeeping.
type ListResult struct {
	Submissions []Submission
	Total       int64
	Limit       int
	Skip        int
	HasMore     bool
}

const defaultListLimit = 50

// List returns submissions newest-first, optionally filtered by event and status.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	skip := req.Skip
	if skip < 0 {
		skip = 0
	}

	query := s.db.WithContext(ctx).Model(&Submission{})
	if req.EventID != "" {
		query = query.Where("event_id = ?", req.EventID)
	}
	if req.Status != "" {
		status, err := ParseStatus(req.Status)
		if err != nil {
			return ListResult{}, err
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logError(opList, "count_failed", err)
		return ListResult{}, newServiceError(opList, "count_failed", err)
	}

	var items []Submission
	if err := query.Order("created_at DESC").Limit(limit).Offset(skip).Find(&items).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return ListResult{}, newServiceError(opList, "query_failed", err)
	}

	return ListResult{
		Submissions: items,
		Total:       total,
		Limit:       limit,
		Skip:        skip,
		HasMore:     int64(skip+limit) < total,
	}, nil
}

// Get loads a single submission by id.
func (s *Service) Get(ctx context.Context, submissionID string) (Submission, error) {
	var submission Submission
	err := s.db.WithContext(ctx).Where("id = ?", submissionID).Take(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opGet, "query_failed", err)
	}
	return submission, nil
}

// FieldUpdate patches mutable detail fields; nil members are left untouched.
// The processor uses ProcessingStartedAt when claiming an item.
type FieldUpdate struct {
	PhotoURL            *string
	Prompt              *string
	CustomText          *string
	ProcessingStartedAt *time.Time
}

// UpdateFields applies a detail patch to an existing submission.
func (s *Service) UpdateFields(ctx context.Context, submissionID string, update FieldUpdate) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	if update.PhotoURL != nil {
		submission.PhotoURL = *update.PhotoURL
	}
	if update.Prompt != nil {
		submission.Prompt = *update.Prompt
	}
	if update.CustomText != nil {
		submission.CustomText = *update.CustomText
	}
	if update.ProcessingStartedAt != nil {
		submission.ProcessingStartedAt = update.ProcessingStartedAt
	}

	if err := s.save(ctx, opUpdateFields, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// SetStatus applies a validated status transition. Flipping to completed
// stamps processedAt; claiming (approved to processing) stamps
// processingStartedAt when the caller has not set it already.
func (s *Service) SetStatus(ctx context.Context, submissionID string, status Status) (Submission, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Submission{}, err
	}

	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	now := s.clock().UTC()
	submission.Status = status
	switch status {
	case StatusCompleted:
		submission.ProcessedAt = &now
	case StatusProcessing:
		if submission.ProcessingStartedAt == nil {
			submission.ProcessingStartedAt = &now
		}
	}

	if err := s.save(ctx, opSetStatus, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// Approve moves a submission into the processor queue: approvedAt is stamped
// and the retry counter resets.
func (s *Service) Approve(ctx context.Context, submissionID string) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	now := s.clock().UTC()
	submission.Status = StatusApproved
	submission.ApprovedAt = &now
	submission.RetryCount = 0

	if err := s.save(ctx, opApprove, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// AddToQueue requeues a submission. Terminal entries (completed, rejected,
// failed) go back to pending and must be re-approved before the processor can
// claim them; a stuck processing entry is requeued as approved immediately.
func (s *Service) AddToQueue(ctx context.Context, submissionID string) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	switch submission.Status {
	case StatusCompleted, StatusRejected, StatusFailed:
		submission.Status = StatusPending
		submission.ApprovedAt = nil
	default:
		now := s.clock().UTC()
		submission.Status = StatusApproved
		submission.ApprovedAt = &now
	}
	submission.RetryCount = 0

	if err := s.save(ctx, opAddToQueue, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// RetryFailed requeues a failed submission as approved. The retry counter
// resets like every other explicit operator requeue.
func (s *Service) RetryFailed(ctx context.Context, submissionID string) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if submission.Status != StatusFailed {
		return Submission{}, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, submission.Status)
	}

	now := s.clock().UTC()
	submission.Status = StatusApproved
	submission.ApprovedAt = &now
	submission.RetryCount = 0

	if err := s.save(ctx, opRetryFailed, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// Regenerate clones a submission into a fresh approved record. The original is
// never touched; regeneration must not rewrite history.
func (s *Service) Regenerate(ctx context.Context, submissionID string) (Submission, error) {
	original, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegenerate, "id_generation_failed", err)
		return Submission{}, newServiceError(opRegenerate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	clone := Submission{
		ID:                  id,
		EventID:             original.EventID,
		Name:                original.Name,
		Email:               original.Email,
		Phone:               original.Phone,
		PhotoURL:            original.PhotoURL,
		Prompt:              original.Prompt,
		CustomText:          original.CustomText,
		Status:              StatusApproved,
		GeneratedImagesJSON: "[]",
		ProcessingLogsJSON:  "[]",
		ApprovedAt:          &now,
		CreatedAt:           now,
	}
	if err := clone.AppendProcessingLog(LogEntry{
		Timestamp: now,
		Message:   fmt.Sprintf("Regenerated from submission %s", original.ID),
		Level:     LogLevelInfo,
	}); err != nil {
		return Submission{}, newServiceError(opRegenerate, "encode_log_failed", err)
	}

	if err := s.db.WithContext(ctx).Create(&clone).Error; err != nil {
		s.logError(opRegenerate, "insert_failed", err, zap.String("submission_id", submissionID))
		return Submission{}, newServiceError(opRegenerate, "insert_failed", err)
	}
	return clone, nil
}

// MarkFailed records a terminal processor failure. Failed submissions are
// never auto-retried; recovery requires operator action.
func (s *Service) MarkFailed(ctx context.Context, submissionID, reason string) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	submission.Status = StatusFailed
	submission.FailureReason = reason
	if err := submission.AppendProcessingLog(LogEntry{
		Timestamp: s.clock().UTC(),
		Message:   fmt.Sprintf("Failed: %s", reason),
		Level:     LogLevelError,
	}); err != nil {
		return Submission{}, newServiceError(opMarkFailed, "encode_log_failed", err)
	}

	if err := s.save(ctx, opMarkFailed, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// AppendLog appends one processor log entry to the audit trail.
func (s *Service) AppendLog(ctx context.Context, submissionID, message string, level LogLevel) (Submission, error) {
	parsedLevel, err := ParseLogLevel(string(level))
	if err != nil {
		return Submission{}, err
	}

	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	if err := submission.AppendProcessingLog(LogEntry{
		Timestamp: s.clock().UTC(),
		Message:   message,
		Level:     parsedLevel,
	}); err != nil {
		return Submission{}, newServiceError(opAppendLog, "encode_log_failed", err)
	}

	if err := s.save(ctx, opAppendLog, &submission); err != nil {
		return Submission{}, err
	}
	return submission, nil
}

// Delete removes a submission and its stored images. Image deletion is
// best-effort; the database row is removed even when the store fails.
func (s *Service) Delete(ctx context.Context, submissionID string) error {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return err
	}

	if submission.PhotoURL != "" {
		s.store.Delete(ctx, submission.PhotoURL)
	}
	images, err := submission.GeneratedImages()
	if err != nil {
		s.logError(opDelete, "decode_images_failed", err, zap.String("submission_id", submissionID))
	}
	for _, image := range images {
		if image.URL != "" {
			s.store.Delete(ctx, image.URL)
		}
	}

	if err := s.db.WithContext(ctx).Where("id = ?", submissionID).Delete(&Submission{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("submission_id", submissionID))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

// CountForEvent reports pending and total submission counts for an event.
// It satisfies the events package's SubmissionCounter.
func (s *Service) CountForEvent(ctx context.Context, eventID string) (int64, int64, error) {
	var pending int64
	if err := s.db.WithContext(ctx).Model(&Submission{}).
		Where("event_id = ? AND status = ?", eventID, StatusPending).
		Count(&pending).Error; err != nil {
		s.logError(opCount, "pending_count_failed", err, zap.String("event_id", eventID))
		return 0, 0, newServiceError(opCount, "pending_count_failed", err)
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Submission{}).
		Where("event_id = ?", eventID).
		Count(&total).Error; err != nil {
		s.logError(opCount, "total_count_failed", err, zap.String("event_id", eventID))
		return 0, 0, newServiceError(opCount, "total_count_failed", err)
	}

	return pending, total, nil
}

func (s *Service) save(ctx context.Context, operation string, submission *Submission) error {
	if err := s.db.WithContext(ctx).Save(submission).Error; err != nil {
		s.logError(operation, "save_failed", err, zap.String("submission_id", submission.ID))
		return newServiceError(operation, "save_failed", err)
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
	s.logger.Error("submissions service error", attrs...)
}
