package submissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status enumerates the lifecycle states of a submission.
type Status string

const (
	// StatusPending awaits operator review.
	StatusPending Status = "pending"
	// StatusApproved is queued for the processor.
	StatusApproved Status = "approved"
	// StatusProcessing is claimed by the processor.
	StatusProcessing Status = "processing"
	// StatusCompleted has generated images attached.
	StatusCompleted Status = "completed"
	// StatusRejected was declined by the operator.
	StatusRejected Status = "rejected"
	// StatusFailed was reported failed by the processor.
	StatusFailed Status = "failed"
)

// ErrInvalidStatus indicates an unrecognized status value.
var ErrInvalidStatus = errors.New("submissions: invalid status")

// ParseStatus validates a raw status string.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusApproved, StatusProcessing, StatusCompleted, StatusRejected, StatusFailed:
		return Status(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// LogLevel classifies processing log entries.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ParseLogLevel validates a raw log level, defaulting empty input to info.
func ParseLogLevel(value string) (LogLevel, error) {
	switch LogLevel(value) {
	case LogLevelInfo, LogLevelWarning, LogLevelError:
		return LogLevel(value), nil
	case "":
		return LogLevelInfo, nil
	default:
		return "", fmt.Errorf("submissions: invalid log level %q", value)
	}
}

// GeneratedImage is one rendered sticker attached to a completed submission.
type GeneratedImage struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogEntry is one line of the append-only processing audit trail.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
}

// Submission is the central entity coordinating capture client, operator, and
// processor. Generated images and processing logs are stored as JSON text;
// both lists are ordered and the log list is append-only.
type Submission struct {
	ID         string `gorm:"column:id;primaryKey;size:190;not null"`
	EventID    string `gorm:"column:event_id;size:190;not null;index:idx_submissions_event"`
	Name       string `gorm:"column:name;size:190;not null"`
	Email      string `gorm:"column:email;size:190;not null;default:''"`
	Phone      string `gorm:"column:phone;size:64;not null;default:''"`
	PhotoURL   string `gorm:"column:photo_url;not null"`
	Prompt     string `gorm:"column:prompt;type:text;not null"`
	CustomText string `gorm:"column:custom_text;type:text;not null;default:''"`

	Status              Status     `gorm:"column:status;size:32;not null;default:'pending';index:idx_submissions_status"`
	GeneratedImagesJSON string     `gorm:"column:generated_images_json;type:text;not null;default:'[]'"`
	ProcessingLogsJSON  string     `gorm:"column:processing_logs_json;type:text;not null;default:'[]'"`
	ApprovedAt          *time.Time `gorm:"column:approved_at;index:idx_submissions_queue,priority:1"`
	ProcessingStartedAt *time.Time `gorm:"column:processing_started_at"`
	ProcessedAt         *time.Time `gorm:"column:processed_at"`
	RetryCount          int        `gorm:"column:retry_count;not null;default:0;index:idx_submissions_queue,priority:2"`
	FailureReason       string     `gorm:"column:failure_reason;type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// GeneratedImages decodes the stored image list.
func (s *Submission) GeneratedImages() ([]GeneratedImage, error) {
	if s.GeneratedImagesJSON == "" || s.GeneratedImagesJSON == "[]" {
		return nil, nil
	}
	var images []GeneratedImage
	if err := json.Unmarshal([]byte(s.GeneratedImagesJSON), &images); err != nil {
		return nil, err
	}
	return images, nil
}

// SetGeneratedImages encodes and stores the image list.
func (s *Submission) SetGeneratedImages(images []GeneratedImage) error {
	encoded, err := encodeList(images)
	if err != nil {
		return err
	}
	s.GeneratedImagesJSON = encoded
	return nil
}

// ProcessingLogs decodes the stored audit trail.
func (s *Submission) ProcessingLogs() ([]LogEntry, error) {
	if s.ProcessingLogsJSON == "" || s.ProcessingLogsJSON == "[]" {
		return nil, nil
	}
	var entries []LogEntry
	if err := json.Unmarshal([]byte(s.ProcessingLogsJSON), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendProcessingLog appends one entry to the audit trail. Existing entries
// are never rewritten.
func (s *Submission) AppendProcessingLog(entry LogEntry) error {
	entries, err := s.ProcessingLogs()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	encoded, err := encodeList(entries)
	if err != nil {
		return err
	}
	s.ProcessingLogsJSON = encoded
	return nil
}

func encodeList(value any) (string, error) {
	switch v := value.(type) {
	case []GeneratedImage:
		if len(v) == 0 {
			return "[]", nil
		}
	case []LogEntry:
		if len(v) == 0 {
			return "[]", nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
