package notify

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare-ten-digit", raw: "5551234567", want: "+15551234567"},
		{name: "formatted", raw: "(555) 123-4567", want: "+15551234567"},
		{name: "already-e164", raw: "+447911123456", want: "+447911123456"},
		{name: "eleven-digit", raw: "15551234567", want: "+15551234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.raw); got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGalleryURL(t *testing.T) {
	dispatcher := NewDispatcher(Config{BaseURL: "https://stickers.example.com/"}, zap.NewNop())
	got := dispatcher.GalleryURL("sub-1")
	want := "https://stickers.example.com/gallery.html?id=sub-1"
	if got != want {
		t.Fatalf("GalleryURL = %q, want %q", got, want)
	}
}

func TestDispatchSkipsUnconfiguredChannels(t *testing.T) {
	dispatcher := NewDispatcher(Config{BaseURL: "http://localhost:8080"}, zap.NewNop())

	results := dispatcher.Dispatch(context.Background(), submissions.CompletionNotice{
		SubmissionID: "sub-1",
		Name:         "Ada",
		Email:        "ada@example.com",
		Phone:        "5551234567",
	})

	if results.Email.Sent {
		t.Fatalf("expected email to be skipped without credentials")
	}
	if results.Email.Reason != "sendgrid not configured" {
		t.Fatalf("unexpected email reason: %q", results.Email.Reason)
	}
	if results.SMS.Sent {
		t.Fatalf("expected sms to be skipped without credentials")
	}
	if results.SMS.Reason != "twilio not configured" {
		t.Fatalf("unexpected sms reason: %q", results.SMS.Reason)
	}
}

func TestDispatchSkipsMissingRecipients(t *testing.T) {
	dispatcher := NewDispatcher(Config{BaseURL: "http://localhost:8080"}, zap.NewNop())

	results := dispatcher.Dispatch(context.Background(), submissions.CompletionNotice{
		SubmissionID: "sub-2",
		Name:         "Grace",
	})

	if results.Email.Attempted || results.SMS.Attempted {
		t.Fatalf("expected no channel to be attempted without recipients")
	}
}
