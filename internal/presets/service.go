package presets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the preset id does not resolve.
	ErrNotFound = errors.New("presets: preset not found")
	// ErrMissingFields indicates a create request omitted required fields.
	ErrMissingFields = errors.New("presets: name and prompt are required")
	// ErrDuplicateName rejects creation of a preset whose name is already taken.
	ErrDuplicateName = errors.New("presets: preset name already exists")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
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
	opServiceNew = "presets.service.new"
	opCreate     = "presets.create"
	opList       = "presets.list"
	opDelete     = "presets.delete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for new presets.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the preset service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages the shared preset catalog.
type Service struct {
	db         *gorm.DB
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the preset service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Create persists a new preset. Names are unique; a collision leaves no record behind.
func (s *Service) Create(ctx context.Context, name, prompt, customText string) (Preset, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(prompt) == "" {
		return Preset{}, ErrMissingFields
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&Preset{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		s.logError(opCreate, "lookup_failed", err, zap.String("preset_name", name))
		return Preset{}, newServiceError(opCreate, "lookup_failed", err)
	}
	if existing > 0 {
		return Preset{}, ErrDuplicateName
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Preset{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	preset := Preset{ID: id, Name: name, Prompt: prompt, CustomText: customText}
	if err := s.db.WithContext(ctx).Create(&preset).Error; err != nil {
		// The unique index backstops the pre-check under concurrent creates.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return Preset{}, ErrDuplicateName
		}
		s.logError(opCreate, "insert_failed", err, zap.String("preset_name", name))
		return Preset{}, newServiceError(opCreate, "insert_failed", err)
	}
	return preset, nil
}

// List returns all presets ordered by name.
func (s *Service) List(ctx context.Context) ([]Preset, error) {
	var presets []Preset
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&presets).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return presets, nil
}

// Delete removes a preset by id.
func (s *Service) Delete(ctx context.Context, presetID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", presetID).Delete(&Preset{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("preset_id", presetID))
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
	s.logger.Error("presets service error", attrs...)
}
