package storage

import (
	"strings"
	"testing"
	"time"
)

func TestObjectKeyShape(t *testing.T) {
	gateway := &Gateway{
		bucket: "stickers",
		clock:  func() time.Time { return time.UnixMilli(1700000000000).UTC() },
	}

	key, err := gateway.objectKey("submissions", "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "submissions/1700000000000-") {
		t.Fatalf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key suffix: %s", key)
	}

	other, err := gateway.objectKey("submissions", "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == other {
		t.Fatalf("expected random suffix to differ between keys")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{contentType: "image/png", want: "png"},
		{contentType: "image/webp", want: "webp"},
		{contentType: "image/jpeg", want: "jpg"},
		{contentType: "application/octet-stream", want: "jpg"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.contentType); got != tt.want {
			t.Fatalf("extensionFor(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "virtual-hosted",
			url:  "https://stickers.s3.us-east-1.amazonaws.com/results/1700000000000-abcd.png",
			want: "results/1700000000000-abcd.png",
		},
		{
			name: "nested-folder",
			url:  "https://stickers.s3.us-east-1.amazonaws.com/submissions/1-ff.jpg",
			want: "submissions/1-ff.jpg",
		},
		{
			name:    "no-key",
			url:     "https://stickers.s3.us-east-1.amazonaws.com/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("keyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
