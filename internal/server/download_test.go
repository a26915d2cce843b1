package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
)

func TestDownloadServesPrintPreparedImage(t *testing.T) {
	source := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			source.SetNRGBA(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, source); err != nil {
		t.Fatalf("failed to encode source image: %v", err)
	}

	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(encoded.Bytes())
	}))
	defer imageServer.Close()

	harness := newRouterHarness(t)
	event := mustCreateTestEvent(t, harness, "Launch Party")
	created := mustCreateTestSubmission(t, harness, event.ID, "Avery")

	var stored submissions.Submission
	if err := harness.db.Where("id = ?", created.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload submission: %v", err)
	}
	if err := stored.SetGeneratedImages([]submissions.GeneratedImage{
		{URL: imageServer.URL + "/results/sticker.png", Filename: "sticker_1_ComfyUI_00042_.png", CreatedAt: harness.now},
	}); err != nil {
		t.Fatalf("failed to set generated images: %v", err)
	}
	if err := harness.db.Save(&stored).Error; err != nil {
		t.Fatalf("failed to save submission: %v", err)
	}

	recorder := harness.do(t, http.MethodGet, "/api/submissions/"+created.ID+"/download/0", harness.adminToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("download failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected png content type, got %q", got)
	}
	if got := recorder.Header().Get("Content-Disposition"); !strings.Contains(got, "LumStickers00042.png") {
		t.Fatalf("expected print filename in disposition, got %q", got)
	}

	decoded, err := png.Decode(bytes.NewReader(recorder.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to decode prepared image: %v", err)
	}
	if decoded.Bounds().Dy() != 1500 {
		t.Fatalf("expected 1500px print height, got %d", decoded.Bounds().Dy())
	}
}

func TestDownloadRejectsBadImageIndex(t *testing.T) {
	harness := newRouterHarness(t)
	event := mustCreateTestEvent(t, harness, "Launch Party")
	created := mustCreateTestSubmission(t, harness, event.ID, "Avery")

	recorder := harness.do(t, http.MethodGet, "/api/submissions/"+created.ID+"/download/0", harness.adminToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no images exist, got %d", recorder.Code)
	}

	recorder = harness.do(t, http.MethodGet, "/api/submissions/"+created.ID+"/download/nope", harness.adminToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-numeric index, got %d", recorder.Code)
	}
}
