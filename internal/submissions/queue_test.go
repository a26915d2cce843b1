package submissions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestClaimNextReturnsOldestLeastRetried(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1", "sub-2", "sub-3"})

	first := mustCreateSubmission(t, harness, "Avery")
	second := mustCreateSubmission(t, harness, "Blake")
	third := mustCreateSubmission(t, harness, "Casey")

	// Same approval instant but a retry already recorded; loses the tie.
	if _, err := harness.service.Approve(context.Background(), second.ID); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}
	retried := mustReload(t, harness, second.ID)
	retried.RetryCount = 1
	if err := harness.db.Save(&retried).Error; err != nil {
		t.Fatalf("failed to bump retry count: %v", err)
	}
	if _, err := harness.service.Approve(context.Background(), first.ID); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}
	harness.advance(time.Minute)
	if _, err := harness.service.Approve(context.Background(), third.ID); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}

	claimed, err := harness.service.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed == nil {
		t.Fatalf("expected an item from the queue")
	}
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest least-retried submission %s, got %s", first.ID, claimed.ID)
	}
}

func TestClaimNextReturnsNilWhenQueueEmpty(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	mustCreateSubmission(t, harness, "Avery")

	claimed, err := harness.service.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty queue, got %s", claimed.ID)
	}
}

func TestClaimNextIgnoresProcessingSubmissions(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	if _, err := harness.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}
	if _, err := harness.service.SetStatus(context.Background(), created.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}

	claimed, err := harness.service.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected claimed item to leave the queue, got %s", claimed.ID)
	}
}

func TestRecoverStaleRollsBackAndIsIdempotent(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1", "sub-2"})

	stale := mustCreateSubmission(t, harness, "Avery")
	fresh := mustCreateSubmission(t, harness, "Blake")
	if _, err := harness.service.SetStatus(context.Background(), stale.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}
	harness.advance(StaleThreshold + time.Second)
	if _, err := harness.service.SetStatus(context.Background(), fresh.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}

	result, err := harness.service.RecoverStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reset != 1 || len(result.Submissions) != 1 {
		t.Fatalf("expected exactly one rollback, got %d", result.Reset)
	}
	if result.Submissions[0].ID != stale.ID {
		t.Fatalf("expected the stale submission, got %s", result.Submissions[0].ID)
	}

	recovered := mustReload(t, harness, stale.ID)
	if recovered.Status != StatusApproved {
		t.Fatalf("expected rollback to approved, got %s", recovered.Status)
	}
	if recovered.RetryCount != 1 {
		t.Fatalf("expected retry count increment, got %d", recovered.RetryCount)
	}
	logs, err := recovered.ProcessingLogs()
	if err != nil {
		t.Fatalf("failed to decode logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != LogLevelWarning || logs[0].Message != "Reset from stuck processing state" {
		t.Fatalf("expected rollback warning log, got %+v", logs)
	}

	untouched := mustReload(t, harness, fresh.ID)
	if untouched.Status != StatusProcessing {
		t.Fatalf("expected fresh processing submission untouched, got %s", untouched.Status)
	}

	again, err := harness.service.RecoverStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Reset != 0 {
		t.Fatalf("expected second pass to be a no-op, got %d", again.Reset)
	}
}

func TestVerifyStatusForceCompletesWithFullImageSet(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	if _, err := harness.service.SetStatus(context.Background(), created.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}

	stored := mustReload(t, harness, created.ID)
	images := make([]GeneratedImage, 4)
	for i := range images {
		images[i] = GeneratedImage{URL: "https://cdn.test/results/img.png", Filename: "sticker.png", CreatedAt: harness.now}
	}
	if err := stored.SetGeneratedImages(images); err != nil {
		t.Fatalf("failed to set images: %v", err)
	}
	if err := harness.db.Save(&stored).Error; err != nil {
		t.Fatalf("failed to save images: %v", err)
	}

	result, err := harness.service.VerifyStatus(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fixed {
		t.Fatalf("expected force-complete to report fixed")
	}
	if result.Message != "Fixed: Found 4 images, marked as completed" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if result.Submission.Status != StatusCompleted || result.Submission.ProcessedAt == nil {
		t.Fatalf("expected completed submission with processed timestamp")
	}
}

func TestVerifyStatusRollsBackStaleProcessing(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	if _, err := harness.service.SetStatus(context.Background(), created.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}
	harness.advance(StaleThreshold + time.Second)

	result, err := harness.service.VerifyStatus(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fixed {
		t.Fatalf("expected stale rollback to report fixed")
	}
	if result.Message != "Reset stuck processing submission to approved" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if result.Submission.Status != StatusApproved {
		t.Fatalf("expected approved status, got %s", result.Submission.Status)
	}
	if result.Submission.ProcessingStartedAt != nil {
		t.Fatalf("expected processing start cleared")
	}
	if result.Submission.RetryCount != 1 {
		t.Fatalf("expected retry count increment, got %d", result.Submission.RetryCount)
	}
}

func TestVerifyStatusReportsFreshProcessing(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	if _, err := harness.service.SetStatus(context.Background(), created.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to set processing: %v", err)
	}
	harness.advance(time.Minute)

	result, err := harness.service.VerifyStatus(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fixed {
		t.Fatalf("expected no fix for fresh processing")
	}
	if result.Message != "Still processing (less than 2 minutes)" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestVerifyStatusReportsCorrectStatuses(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	result, err := harness.service.VerifyStatus(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fixed {
		t.Fatalf("expected no fix for a pending submission")
	}
	if result.Message != "Status pending is correct" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestCompleteWithImagesUploadsAndNotifies(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created, err := harness.service.Create(context.Background(), CreateRequest{
		EventID: "event-1",
		Name:    "Avery",
		Email:   "avery@example.com",
		Phone:   "5551234567",
		Photo:   photoPayload(t, "raw-photo"),
		Prompt:  "a space explorer",
	})
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	uploads := []ImageUpload{
		{Data: []byte("img-1"), Filename: "sticker_1.png"},
		{Data: []byte("img-2"), Filename: "sticker_2.png"},
	}
	completed, err := harness.service.CompleteWithImages(context.Background(), created.ID, uploads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != StatusCompleted || completed.ProcessedAt == nil {
		t.Fatalf("expected completed submission with timestamp")
	}

	images, err := completed.GeneratedImages()
	if err != nil {
		t.Fatalf("failed to decode images: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected two stored images, got %d", len(images))
	}
	if images[0].Filename != "sticker_1.png" || !strings.Contains(images[0].URL, "results/") {
		t.Fatalf("unexpected stored image %+v", images[0])
	}

	if harness.compositor.calls != 0 {
		t.Fatalf("expected no composite without branding, got %d calls", harness.compositor.calls)
	}
	if len(harness.notifier.notices) != 1 {
		t.Fatalf("expected one completion notice, got %d", len(harness.notifier.notices))
	}
	notice := harness.notifier.notices[0]
	if notice.SubmissionID != created.ID || notice.Email != "avery@example.com" || notice.EventName != "Launch Party" {
		t.Fatalf("unexpected notice %+v", notice)
	}
}

func TestCompleteWithImagesAppliesBranding(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	event := harness.lookup.events["event-1"]
	event.BrandingEnabled = true
	event.BrandingLogoURL = "https://cdn.test/logos/logo.png"
	event.BrandingSizePct = 20
	harness.lookup.events["event-1"] = event

	created := mustCreateSubmission(t, harness, "Avery")
	completed, err := harness.service.CompleteWithImages(context.Background(), created.ID, []ImageUpload{
		{Data: []byte("img-1"), Filename: "sticker_1.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if harness.compositor.calls != 1 {
		t.Fatalf("expected one composite call, got %d", harness.compositor.calls)
	}
	// Upload index 0 is the captured photo from Create.
	if string(harness.store.uploads[1]) != "branded:img-1" {
		t.Fatalf("expected branded bytes uploaded, got %q", harness.store.uploads[1])
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
}

func TestCompleteWithImagesFallsBackWhenCompositeFails(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	event := harness.lookup.events["event-1"]
	event.BrandingEnabled = true
	event.BrandingLogoURL = "https://cdn.test/logos/logo.png"
	harness.lookup.events["event-1"] = event
	harness.compositor.err = errors.New("logo fetch failed")

	created := mustCreateSubmission(t, harness, "Avery")
	completed, err := harness.service.CompleteWithImages(context.Background(), created.ID, []ImageUpload{
		{Data: []byte("img-1"), Filename: "sticker_1.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(harness.store.uploads[1]) != "img-1" {
		t.Fatalf("expected unbranded fallback upload, got %q", harness.store.uploads[1])
	}
	images, err := completed.GeneratedImages()
	if err != nil || len(images) != 1 {
		t.Fatalf("expected one stored image, got %d (%v)", len(images), err)
	}
}

func TestCrashRecoveryRoundTrip(t *testing.T) {
	harness := newServiceHarness(t, []string{"sub-1"})
	created := mustCreateSubmission(t, harness, "Avery")

	if _, err := harness.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("failed to approve: %v", err)
	}

	claimed, err := harness.service.ClaimNext(context.Background())
	if err != nil || claimed == nil {
		t.Fatalf("expected to claim the approved submission, got %v", err)
	}
	if _, err := harness.service.SetStatus(context.Background(), claimed.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to mark processing: %v", err)
	}

	// Processor crashes here; nothing reports back.
	harness.advance(StaleThreshold + time.Second)

	recovered, err := harness.service.RecoverStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered.Reset != 1 {
		t.Fatalf("expected one rollback, got %d", recovered.Reset)
	}

	reclaimed, err := harness.service.ClaimNext(context.Background())
	if err != nil || reclaimed == nil {
		t.Fatalf("expected the submission back in the queue, got %v", err)
	}
	if reclaimed.ID != created.ID {
		t.Fatalf("expected the same submission, got %s", reclaimed.ID)
	}
	if reclaimed.RetryCount != 1 {
		t.Fatalf("expected retry count 1 after recovery, got %d", reclaimed.RetryCount)
	}

	if _, err := harness.service.SetStatus(context.Background(), reclaimed.ID, StatusProcessing); err != nil {
		t.Fatalf("failed to mark processing: %v", err)
	}
	completed, err := harness.service.CompleteWithImages(context.Background(), reclaimed.ID, []ImageUpload{
		{Data: []byte("img-1"), Filename: "sticker_1.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	idle, err := harness.service.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idle != nil {
		t.Fatalf("expected an empty queue after completion, got %s", idle.ID)
	}
}
