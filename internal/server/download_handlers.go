package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/imaging"
	"go.uber.org/zap"
)

// maxDownloadSourceBytes caps how much image data the download endpoint will
// pull from the store in one request.
const maxDownloadSourceBytes = 32 << 20

// handleDownloadImage serves a generated image prepared for print: resized to
// cutter height with cleaned alpha, as a PNG attachment.
func (h *httpHandler) handleDownloadImage(c *gin.Context) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	images, err := submission.GeneratedImages()
	if err != nil {
		h.logger.Error("failed to decode generated images",
			zap.String("submission_id", submission.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= len(images) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		return
	}
	image := images[index]

	source, err := h.fetchImage(c, image.URL)
	if err != nil {
		h.logger.Error("failed to fetch generated image",
			zap.String("submission_id", submission.ID),
			zap.String("url", image.URL),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image_fetch_failed"})
		return
	}

	prepared, err := imaging.PreparePrint(source)
	if err != nil {
		h.logger.Error("print preparation failed",
			zap.String("submission_id", submission.ID),
			zap.String("filename", image.Filename),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "print_prep_failed"})
		return
	}

	filename := imaging.PrintFilename(image.Filename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "image/png", prepared)
}

func (h *httpHandler) fetchImage(c *gin.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := h.imageClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching image", response.StatusCode)
	}
	return io.ReadAll(io.LimitReader(response.Body, maxDownloadSourceBytes))
}
