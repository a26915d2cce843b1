// Package imaging implements the raster post-processing applied to generated
// stickers: event logo compositing before upload, and the print-preparation
// transform applied at download time.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
)

const logoFetchTimeout = 15 * time.Second

// Compositor overlays an event's branding logo onto rendered stickers.
type Compositor struct {
	client *http.Client
	logger *zap.Logger
}

// NewCompositor builds a compositor with its own HTTP client for logo fetches.
func NewCompositor(logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{
		client: &http.Client{Timeout: logoFetchTimeout},
		logger: logger,
	}
}

// Composite downloads the configured logo and draws it onto the image at the
// configured position, size, and opacity. Position and size are percentages
// of the canvas; opacity is 0-100. The caller falls back to the original
// image on error.
func (c *Compositor) Composite(ctx context.Context, imageData []byte, branding events.BrandingConfig) ([]byte, error) {
	if !branding.Enabled || branding.LogoURL == "" {
		return imageData, nil
	}

	canvas, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode canvas: %w", err)
	}

	logoData, err := c.fetchLogo(ctx, branding.LogoURL)
	if err != nil {
		return nil, err
	}
	logo, err := imaging.Decode(bytes.NewReader(logoData))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode logo: %w", err)
	}

	canvasBounds := canvas.Bounds()
	targetWidth := int(float64(canvasBounds.Dx()) * clampPct(branding.SizePct) / 100)
	if targetWidth < 1 {
		targetWidth = 1
	}
	var scaled image.Image
	if branding.LockAspectRatio {
		scaled = imaging.Resize(logo, targetWidth, 0, imaging.Lanczos)
	} else {
		targetHeight := int(float64(canvasBounds.Dy()) * clampPct(branding.SizePct) / 100)
		if targetHeight < 1 {
			targetHeight = 1
		}
		scaled = imaging.Resize(logo, targetWidth, targetHeight, imaging.Lanczos)
	}

	offsetX := int(float64(canvasBounds.Dx()) * clampPct(branding.PositionXPct) / 100)
	offsetY := int(float64(canvasBounds.Dy()) * clampPct(branding.PositionYPct) / 100)
	opacity := clampPct(branding.OpacityPct) / 100

	composited := imaging.Overlay(canvas, scaled, image.Pt(offsetX, offsetY), opacity)

	var out bytes.Buffer
	if err := imaging.Encode(&out, composited, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imaging: encode composite: %w", err)
	}
	return out.Bytes(), nil
}

func (c *Compositor) fetchLogo(ctx context.Context, logoURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("imaging: logo request: %w", err)
	}
	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("imaging: fetch logo: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imaging: fetch logo: status %d", response.StatusCode)
	}
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("imaging: read logo: %w", err)
	}
	return data, nil
}

func clampPct(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
