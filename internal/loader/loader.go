// Package loader orchestrates one image load: consult the catalog, read
// the store, fetch from the origin, or queue a resize, then hand decoded
// pixels back to the caller. All failures stop at this boundary.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/disintegration/imaging"

	"github.com/KalilDev/cached-sized-image/internal/catalog"
	"github.com/KalilDev/cached-sized-image/internal/fetch"
	"github.com/KalilDev/cached-sized-image/internal/memcache"
	"github.com/KalilDev/cached-sized-image/internal/resize"
	"github.com/KalilDev/cached-sized-image/internal/sizing"
	"github.com/KalilDev/cached-sized-image/internal/store"
)

var (
	loadsTotal   = metrics.NewCounter("image_loads_total")
	loadFailures = metrics.NewCounter("image_load_failures_total")
	variantHits  = metrics.NewCounter("image_variant_hits_total")
	fetchesTotal = metrics.NewCounter("image_fetches_total")
	resizesTotal = metrics.NewCounter("image_resizes_total")
	loadDuration = metrics.NewHistogram("image_load_duration_seconds")
)

// Request describes one image load.
type Request struct {
	URL     string
	Size    *sizing.Size // nil requests the original resolution
	Density float64
	Headers http.Header
	OnError func(error) // invoked at most once, on terminal failure
}

// Result is a delivered image: the decoded pixels, the stored bytes they
// came from, and the bucket they were served under.
type Result struct {
	Image image.Image
	Data  []byte
	Size  sizing.Size
}

// Loader wires the catalog, store, fetch gateway and resize worker
// together. Construct with New; every collaborator is injected.
type Loader struct {
	catalog *catalog.File
	store   *store.Store
	gateway fetch.Gateway
	worker  *resize.Worker
	hot     *memcache.Cache // may be nil
	logger  *slog.Logger
}

func New(cat *catalog.File, st *store.Store, gw fetch.Gateway, w *resize.Worker, hot *memcache.Cache, logger *slog.Logger) *Loader {
	return &Loader{
		catalog: cat,
		store:   st,
		gateway: gw,
		worker:  w,
		hot:     hot,
		logger:  logger,
	}
}

// Key is the cache identity of a load: two requests with equal URL, equal
// density and equal normalized size are the same work. Consumers use it
// to deduplicate in-flight loads; the loader itself does not.
func Key(url string, size *sizing.Size, density float64) string {
	norm := sizing.Normalize(size, density)
	return url + "#" + strconv.FormatFloat(density, 'f', -1, 64) + "#" + norm.Name()
}

// Load runs the request to completion. On terminal failure it returns a
// nil result, logs, and invokes the request's failure callback once.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	loadsTotal.Inc()
	start := time.Now()
	res, err := l.load(ctx, req)
	loadDuration.Update(time.Since(start).Seconds())
	if err != nil {
		loadFailures.Inc()
		l.logger.Warn("image load failed", "url", req.URL, "error", err)
		if req.OnError != nil {
			req.OnError(err)
		}
		return nil, err
	}
	return res, nil
}

func (l *Loader) load(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New("empty url")
	}
	norm := sizing.Normalize(req.Size, req.Density)

	if l.hot != nil {
		if data, ok := l.hot.Get(memcache.Key(req.URL, norm)); ok {
			if res, err := l.deliver(req.URL, norm, data); err == nil {
				variantHits.Inc()
				return res, nil
			}
			// Undecodable hot entry falls through to the durable path.
		}
	}

	// Serve an already materialized variant without touching the network
	// or the worker. A recorded size whose file is missing or empty is an
	// integrity miss and falls through to recomputation.
	if !norm.IsFull() {
		if entry, ok := l.catalog.Lookup(req.URL); ok && entry.HasSize(norm) {
			data, err := l.store.ReadSize(req.URL, norm)
			if err == nil {
				variantHits.Inc()
				return l.deliver(req.URL, norm, data)
			}
			if !errors.Is(err, store.ErrNotCached) {
				return nil, err
			}
			l.logger.Warn("catalog lists size but file unusable, recomputing",
				"url", req.URL, "size", norm.Name())
		}
	}

	// Make sure the original is on disk, downloading it once if needed.
	var fullData []byte
	justFetched := false
	if !l.store.HasFull(req.URL) {
		fetchesTotal.Inc()
		data, err := l.gateway.Fetch(ctx, req.URL, req.Headers)
		if err != nil {
			return nil, fmt.Errorf("download failed: %w", err)
		}
		if err := l.store.WriteFull(req.URL, data); err != nil {
			return nil, err
		}
		fullData = data
		justFetched = true
	}

	if norm.IsFull() {
		if !justFetched {
			data, err := l.store.ReadFull(req.URL)
			if err != nil {
				return nil, err
			}
			fullData = data
		}
		if err := l.commit(req.URL, norm); err != nil {
			return nil, err
		}
		return l.deliver(req.URL, norm, fullData)
	}

	// Resize off the request path. Source from the bytes still in memory
	// when this call just downloaded them, else from the full file.
	op := resize.Op{Width: int(norm.Width), Height: int(norm.Height)}
	if justFetched {
		op.Data = fullData
	} else {
		op.Path = l.store.FullPath(req.URL)
	}
	resizesTotal.Inc()
	variant, err := l.worker.Submit(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("resize failed: %w", err)
	}

	if err := l.store.WriteSize(req.URL, norm, variant); err != nil {
		return nil, err
	}
	if err := l.commit(req.URL, norm); err != nil {
		return nil, err
	}
	return l.deliver(req.URL, norm, variant)
}

// commit records a materialized size in the catalog. The store write
// always precedes this, so a catalog record implies bytes on disk.
func (l *Loader) commit(url string, size sizing.Size) error {
	entry := catalog.Entry{
		Folder: store.FolderFor(url),
		URL:    url,
		Sizes:  []sizing.Size{size},
	}
	if err := l.catalog.Commit(entry); err != nil {
		return fmt.Errorf("record size %s: %w", size.Name(), err)
	}
	return nil
}

func (l *Loader) deliver(url string, size sizing.Size, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if l.hot != nil {
		l.hot.Add(memcache.Key(url, size), data)
	}
	return &Result{Image: img, Data: data, Size: size}, nil
}
