// Package resize runs crop-and-scale jobs on a single background worker.
// One transform runs at a time system-wide; jobs queue FIFO and results
// come back in submission order, tagged with a sequence number.
package resize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"

	// Downloaded originals may be webp or bmp; register their decoders so
	// anything the store holds can be re-decoded here.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrClosed is returned by Enqueue and Submit after Close.
var ErrClosed = errors.New("resize: worker closed")

const queueDepth = 64

// Op is one resize request: a source (in-memory bytes, or a file path
// when the bytes are not already resident) and target dimensions.
type Op struct {
	Data   []byte
	Path   string
	Width  int
	Height int
}

// Ticket tracks one submitted op. It is fulfilled exactly once, in FIFO
// order relative to other tickets from the same worker.
type Ticket struct {
	Seq  uint64
	done chan struct{}
	data []byte
	err  error
}

// Done is closed when the ticket's result is available.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the result is available or ctx is cancelled.
func (t *Ticket) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.data, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pending struct {
	op     Op
	ticket *Ticket
}

// Worker owns the queue and the single processing goroutine. Construct it
// explicitly with NewWorker and stop it with Close; it is injected into
// the loader rather than shared as a global.
type Worker struct {
	queue  chan pending
	seq    atomic.Uint64
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorker starts the processing goroutine.
func NewWorker(logger *slog.Logger) *Worker {
	w := &Worker{
		queue:  make(chan pending, queueDepth),
		logger: logger,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue adds an op to the queue and returns its ticket immediately.
func (w *Worker) Enqueue(op Op) (*Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	t := &Ticket{
		Seq:  w.seq.Add(1),
		done: make(chan struct{}),
	}
	w.queue <- pending{op: op, ticket: t}
	return t, nil
}

// Submit enqueues op and waits for its result.
func (w *Worker) Submit(ctx context.Context, op Op) ([]byte, error) {
	t, err := w.Enqueue(op)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

// Close stops accepting work and waits for queued jobs to drain.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for p := range w.queue {
		data, err := w.process(p.op)
		if err != nil {
			w.logger.Warn("resize failed", "seq", p.ticket.Seq, "error", err)
		}
		p.ticket.data = data
		p.ticket.err = err
		close(p.ticket.done)
	}
}

// process runs one transform. A failure, including a decoder panic, is
// confined to this op; the queue keeps draining.
func (w *Worker) process(op Op) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("transform panic: %v", r)
		}
	}()

	if op.Width <= 0 || op.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", op.Width, op.Height)
	}

	src := op.Data
	if src == nil {
		src, err = os.ReadFile(op.Path)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", op.Path, err)
		}
	}
	if len(src) == 0 {
		return nil, errors.New("empty source image")
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	cropped := cropToAspect(img, op.Width, op.Height)
	scaled := imaging.Resize(cropped, op.Width, op.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode variant: %w", err)
	}
	return buf.Bytes(), nil
}

// cropToAspect selects the largest region of the target aspect ratio,
// anchored at the origin.
func cropToAspect(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()

	var cropW, cropH int
	// Target wider than source: keep full width, trim height. Comparison
	// is targetW/targetH > iw/ih, cross-multiplied to stay in integers.
	if targetW*ih > iw*targetH {
		cropW = iw
		cropH = iw * targetH / targetW
	} else {
		cropH = ih
		cropW = ih * targetW / targetH
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}
	return imaging.Crop(img, image.Rect(0, 0, cropW, cropH))
}
