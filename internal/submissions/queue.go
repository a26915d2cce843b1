package submissions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// StaleThreshold is the fixed wall-clock delta after which a processing
	// submission is presumed orphaned by a crashed processor. It is a liveness
	// heuristic, not a correctness guarantee.
	StaleThreshold = 2 * time.Minute

	// completedImageFloor is the generated-image count at which a submission
	// stuck in processing is assumed to have finished generation before the
	// status flip was lost.
	completedImageFloor = 4
)

// ClaimNext returns the single oldest approved submission, least-retried
// first, or nil when the queue is empty. The claim read and the processing
// write are deliberately separate calls: the processor re-marks the item
// immediately, and the watchdog repairs any loser of that window.
func (s *Service) ClaimNext(ctx context.Context) (*Submission, error) {
	var items []Submission
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusApproved).
		Order("approved_at ASC").
		Order("retry_count ASC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		s.logError(opClaimNext, "query_failed", err)
		return nil, newServiceError(opClaimNext, "query_failed", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// RecoveryResult summarizes a bulk watchdog pass.
type RecoveryResult struct {
	Reset       int
	Submissions []Submission
}

const stuckResetMessage = "Reset from stuck processing state"

// RecoverStale rolls every stale processing submission back to approved,
// incrementing its retry counter and appending a warning to its audit trail.
// Rolled-back items no longer match the scan, so repeated passes are no-ops.
func (s *Service) RecoverStale(ctx context.Context) (RecoveryResult, error) {
	cutoff := s.clock().UTC().Add(-StaleThreshold)

	var stuck []Submission
	err := s.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", StatusProcessing, cutoff).
		Find(&stuck).Error
	if err != nil {
		s.logError(opRecoverStale, "query_failed", err)
		return RecoveryResult{}, newServiceError(opRecoverStale, "query_failed", err)
	}

	result := RecoveryResult{Submissions: make([]Submission, 0, len(stuck))}
	for i := range stuck {
		submission := stuck[i]
		submission.Status = StatusApproved
		submission.RetryCount++
		if err := submission.AppendProcessingLog(LogEntry{
			Timestamp: s.clock().UTC(),
			Message:   stuckResetMessage,
			Level:     LogLevelWarning,
		}); err != nil {
			return RecoveryResult{}, newServiceError(opRecoverStale, "encode_log_failed", err)
		}
		if err := s.save(ctx, opRecoverStale, &submission); err != nil {
			return RecoveryResult{}, err
		}
		s.logger.Warn("rolled back stale processing submission",
			zap.String("submission_id", submission.ID),
			zap.Int("retry_count", submission.RetryCount))
		result.Reset++
		result.Submissions = append(result.Submissions, submission)
	}
	return result, nil
}

// VerifyResult reports the outcome of a targeted reconciliation check.
type VerifyResult struct {
	Fixed      bool
	Message    string
	Submission Submission
}

// VerifyStatus reconciles one submission. A processing entry that already has
// a full image set is force-completed (the crash happened after the image
// write, before the status flip); a stale processing entry without images is
// rolled back to approved; anything else is reported as already correct.
func (s *Service) VerifyStatus(ctx context.Context, submissionID string) (VerifyResult, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return VerifyResult{}, err
	}

	images, err := submission.GeneratedImages()
	if err != nil {
		s.logError(opVerifyStatus, "decode_images_failed", err, zap.String("submission_id", submissionID))
		return VerifyResult{}, newServiceError(opVerifyStatus, "decode_images_failed", err)
	}

	now := s.clock().UTC()
	switch {
	case submission.Status == StatusProcessing && len(images) >= completedImageFloor:
		submission.Status = StatusCompleted
		submission.ProcessedAt = &now
		if err := s.save(ctx, opVerifyStatus, &submission); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{
			Fixed:      true,
			Message:    fmt.Sprintf("Fixed: Found %d images, marked as completed", len(images)),
			Submission: submission,
		}, nil

	case submission.Status == StatusProcessing && submission.ProcessingStartedAt != nil:
		if submission.ProcessingStartedAt.Before(now.Add(-StaleThreshold)) {
			submission.Status = StatusApproved
			submission.RetryCount++
			submission.ProcessingStartedAt = nil
			if err := s.save(ctx, opVerifyStatus, &submission); err != nil {
				return VerifyResult{}, err
			}
			return VerifyResult{
				Fixed:      true,
				Message:    "Reset stuck processing submission to approved",
				Submission: submission,
			}, nil
		}
		return VerifyResult{
			Message:    "Still processing (less than 2 minutes)",
			Submission: submission,
		}, nil

	default:
		return VerifyResult{
			Message:    fmt.Sprintf("Status %s is correct", submission.Status),
			Submission: submission,
		}, nil
	}
}

// ImageUpload is one generated image reported by the processor.
type ImageUpload struct {
	Data      []byte
	Filename  string
	CreatedAt time.Time
}

// CompleteWithImages uploads the processor's rendered images, attaches them,
// and flips the submission to completed. Branding is composited before upload
// when the owning event enables it, and a completion notification is
// dispatched afterward. Individual upload and composite failures are logged
// and skipped; none of them prevent completion.
func (s *Service) CompleteWithImages(ctx context.Context, submissionID string, uploads []ImageUpload) (Submission, error) {
	submission, err := s.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	event, err := s.events.Get(ctx, submission.EventID)
	if err != nil {
		s.logError(opComplete, "event_lookup_failed", err, zap.String("submission_id", submissionID))
		// Completion proceeds without branding or an event name.
	}

	branding := event.Branding()
	now := s.clock().UTC()
	stored := make([]GeneratedImage, 0, len(uploads))
	for _, upload := range uploads {
		data := upload.Data
		if branding.Enabled && s.compositor != nil {
			composited, compositeErr := s.compositor.Composite(ctx, data, branding)
			if compositeErr != nil {
				s.logger.Warn("logo composite failed, uploading unbranded image",
					zap.String("submission_id", submissionID),
					zap.String("filename", upload.Filename),
					zap.Error(compositeErr))
			} else {
				data = composited
			}
		}

		url, uploadErr := s.store.Put(ctx, data, "image/png", "results")
		if uploadErr != nil {
			s.logger.Warn("generated image upload failed, skipping",
				zap.String("submission_id", submissionID),
				zap.String("filename", upload.Filename),
				zap.Error(uploadErr))
			continue
		}

		createdAt := upload.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		stored = append(stored, GeneratedImage{URL: url, Filename: upload.Filename, CreatedAt: createdAt})
	}

	if err := submission.SetGeneratedImages(stored); err != nil {
		return Submission{}, newServiceError(opComplete, "encode_images_failed", err)
	}
	submission.Status = StatusCompleted
	submission.ProcessedAt = &now

	if err := s.save(ctx, opComplete, &submission); err != nil {
		return Submission{}, err
	}

	if s.notifier != nil {
		s.notifier.NotifyCompletion(ctx, CompletionNotice{
			SubmissionID: submission.ID,
			Name:         submission.Name,
			Email:        submission.Email,
			Phone:        submission.Phone,
			EventName:    event.Name,
		})
	}

	s.logger.Info("submission completed",
		zap.String("submission_id", submission.ID),
		zap.Int("image_count", len(stored)))
	return submission, nil
}
