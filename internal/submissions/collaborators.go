package submissions

import (
	"context"

	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
)

// ObjectStore uploads and removes binary image payloads. Put returns a stable
// public URL; Delete is best-effort and never reports failure to callers.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType, folder string) (string, error)
	Delete(ctx context.Context, url string)
}

// EventLookup resolves the event a submission belongs to.
type EventLookup interface {
	Get(ctx context.Context, eventID string) (events.Event, error)
}

// CompletionNotice carries the fields the notification dispatcher needs after
// a submission completes.
type CompletionNotice struct {
	SubmissionID string
	Name         string
	Email        string
	Phone        string
	EventName    string
}

// CompletionNotifier dispatches completion notifications. Implementations
// swallow their own failures; a completed submission is never rolled back
// because a notification could not be delivered.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, notice CompletionNotice)
}

// LogoCompositor overlays event branding onto a rendered image. A failed
// composite falls back to the unbranded original at the call site.
type LogoCompositor interface {
	Composite(ctx context.Context, image []byte, branding events.BrandingConfig) ([]byte, error)
}
