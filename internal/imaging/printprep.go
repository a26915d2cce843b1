package imaging

import (
	"bytes"
	"fmt"
	"image"
	"regexp"

	"github.com/disintegration/imaging"
)

const (
	// printTargetHeight is 2.5 inches at 600 DPI.
	printTargetHeight = 1500

	// alphaKeepThreshold: pixels above it become fully opaque, everything
	// else fully transparent, removing semi-transparent edge fringing.
	alphaKeepThreshold = 240
)

// PreparePrint resizes an image to the fixed print target and cleans up its
// alpha channel: edges are hard-thresholded, then transparency reachable from
// the canvas border is kept as exterior background while enclosed transparent
// regions are filled opaque. The transform is deterministic and idempotent.
func PreparePrint(imageData []byte) ([]byte, error) {
	decoded, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dy() == 0 {
		return nil, fmt.Errorf("imaging: empty image")
	}
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	targetWidth := int(float64(printTargetHeight)*aspect + 0.5)
	if targetWidth < 1 {
		targetWidth = 1
	}

	resized := imaging.Resize(decoded, targetWidth, printTargetHeight, imaging.Lanczos)
	cleaned := cleanAlpha(resized)

	var out bytes.Buffer
	if err := imaging.Encode(&out, cleaned, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return out.Bytes(), nil
}

// cleanAlpha thresholds the alpha channel and fills interior holes. RGB
// values are left untouched.
func cleanAlpha(img *image.NRGBA) *image.NRGBA {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	for i := 0; i < width*height; i++ {
		alphaIdx := i*4 + 3
		if img.Pix[alphaIdx] > alphaKeepThreshold {
			img.Pix[alphaIdx] = 255
		} else {
			img.Pix[alphaIdx] = 0
		}
	}

	exterior := markExterior(img.Pix, width, height)

	// Transparent pixels not reachable from the border are interior holes.
	for i := 0; i < width*height; i++ {
		if img.Pix[i*4+3] == 0 && !exterior[i] {
			img.Pix[i*4+3] = 255
		}
	}
	return img
}

// markExterior flood-fills transparent pixels from all four canvas edges.
func markExterior(pix []uint8, width, height int) []bool {
	exterior := make([]bool, width*height)
	queue := make([]int, 0, 2*(width+height))

	enqueue := func(idx int) {
		if pix[idx*4+3] == 0 && !exterior[idx] {
			exterior[idx] = true
			queue = append(queue, idx)
		}
	}

	for x := 0; x < width; x++ {
		enqueue(x)
		enqueue((height-1)*width + x)
	}
	for y := 0; y < height; y++ {
		enqueue(y * width)
		enqueue(y*width + width - 1)
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		x := idx % width
		y := idx / width

		if x > 0 {
			enqueue(idx - 1)
		}
		if x < width-1 {
			enqueue(idx + 1)
		}
		if y > 0 {
			enqueue(idx - width)
		}
		if y < height-1 {
			enqueue(idx + width)
		}
	}
	return exterior
}

var printSequencePattern = regexp.MustCompile(`(\d{5})`)

// PrintFilename derives the download filename from the generated image's
// source filename, reusing its five-digit render sequence when present.
func PrintFilename(sourceFilename string) string {
	sequence := "00000"
	if match := printSequencePattern.FindStringSubmatch(sourceFilename); match != nil {
		sequence = match[1]
	}
	return fmt.Sprintf("LumStickers%s.png", sequence)
}
