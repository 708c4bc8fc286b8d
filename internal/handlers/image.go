// Package handlers exposes the image loader over HTTP.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KalilDev/cached-sized-image/internal/loader"
	"github.com/KalilDev/cached-sized-image/internal/sizing"
)

// ImageHandler serves GET /image requests.
type ImageHandler struct {
	loader *loader.Loader
	logger *slog.Logger
}

func NewImageHandler(l *loader.Loader, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{loader: l, logger: logger}
}

// Get loads and serves one image variant. Query parameters: url
// (required), width and height (together, in display units), dpr
// (defaults to 1). Omitting width/height serves the original.
func (h *ImageHandler) Get(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	size, err := parseSize(c.Query("width"), c.Query("height"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dpr := 1.0
	if raw := c.Query("dpr"); raw != "" {
		dpr, err = strconv.ParseFloat(raw, 64)
		if err != nil || dpr <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid dpr"})
			return
		}
	}

	// Caller-supplied credentials pass through to the origin untouched.
	headers := http.Header{}
	if auth := c.GetHeader("Authorization"); auth != "" {
		headers.Set("Authorization", auth)
	}

	res, err := h.loader.Load(c.Request.Context(), loader.Request{
		URL:     rawURL,
		Size:    size,
		Density: dpr,
		Headers: headers,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "image unavailable"})
		return
	}

	c.Header("X-Image-Size", res.Size.Name())
	c.Data(http.StatusOK, http.DetectContentType(res.Data), res.Data)
}

func parseSize(widthStr, heightStr string) (*sizing.Size, error) {
	if widthStr == "" && heightStr == "" {
		return nil, nil
	}
	if widthStr == "" || heightStr == "" {
		return nil, errParam("width and height must be given together")
	}
	w, err := strconv.ParseFloat(widthStr, 64)
	if err != nil || w < 0 {
		return nil, errParam("invalid width")
	}
	h, err := strconv.ParseFloat(heightStr, 64)
	if err != nil || h < 0 {
		return nil, errParam("invalid height")
	}
	size := sizing.NewSize(w, h)
	return &size, nil
}

type errParam string

func (e errParam) Error() string { return string(e) }
