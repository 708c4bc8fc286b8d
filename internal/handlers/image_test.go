package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/KalilDev/cached-sized-image/internal/catalog"
	"github.com/KalilDev/cached-sized-image/internal/fetch"
	"github.com/KalilDev/cached-sized-image/internal/loader"
	"github.com/KalilDev/cached-sized-image/internal/resize"
	"github.com/KalilDev/cached-sized-image/internal/store"
)

func pngOrigin(t *testing.T, w, h int) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(filepath.Join(dir, "images"), nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	cat := catalog.NewFile(filepath.Join(dir, "catalog.json"), logger)
	worker := resize.NewWorker(logger)
	t.Cleanup(worker.Close)
	gateway := fetch.NewHTTPGateway(fetch.Options{}, logger)
	l := loader.New(cat, st, gateway, worker, nil, logger)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/image", NewImageHandler(l, logger).Get)
	return engine
}

func TestGetImageServesVariant(t *testing.T) {
	origin := pngOrigin(t, 640, 480)
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/image?url="+origin.URL+"/cat.png&width=300&height=200&dpr=2", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Image-Size"); got != "600x400" {
		t.Errorf("X-Image-Size = %s, want 600x400", got)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not PNG: %v", err)
	}
	if img.Bounds().Dx() != 600 || img.Bounds().Dy() != 400 {
		t.Fatalf("served %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestGetImageFullWhenNoSize(t *testing.T) {
	origin := pngOrigin(t, 320, 240)
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/image?url="+origin.URL+"/cat.png", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("X-Image-Size"); got != "full" {
		t.Errorf("X-Image-Size = %s, want full", got)
	}
}

func TestGetImageRequiresURL(t *testing.T) {
	engine := testEngine(t)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestGetImageRejectsLoneWidth(t *testing.T) {
	engine := testEngine(t)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image?url=http://x/y.png&width=100", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestGetImageUpstreamFailure(t *testing.T) {
	origin := pngOrigin(t, 10, 10)
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/image?url="+origin.URL+"/missing.png", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}
