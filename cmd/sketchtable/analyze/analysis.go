package analyzecmder

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/papercomputeco/sketchtable/pkg/dotdir"
	"github.com/papercomputeco/sketchtable/pkg/history"
	"github.com/papercomputeco/sketchtable/pkg/history/worker"
	"github.com/papercomputeco/sketchtable/pkg/imagefile"
	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/stream"
)

// runner starts and cancels analyses for the front ends.
type runner interface {
	start(ctx context.Context) (<-chan stream.Event, error)
	cancel()
}

// analysis runs the same sketch and prompt through a coordinator, once per
// start. The image is re-encoded on every start so edits are picked up.
type analysis struct {
	imagePath string
	params    llm.AnalysisParams

	coord     *stream.Coordinator
	dotdir    *dotdir.Manager
	configDir string
	pool      *worker.Pool
	logger    *slog.Logger

	mu      sync.Mutex
	current <-chan stream.Event
	stopped bool
}

var errStopped = errors.New("analysis stopped")

var _ runner = (*analysis)(nil)

func (a *analysis) request() (llm.StreamRequest, error) {
	img, err := imagefile.Encode(a.imagePath)
	if err != nil {
		return llm.StreamRequest{}, err
	}

	p := a.params
	p.ImageBase64 = img.Base64
	p.ImageMediaType = img.MediaType
	p.ImageWidth = img.Width
	p.ImageHeight = img.Height

	return llm.NewAnalysisRequest(p), nil
}

func (a *analysis) start(ctx context.Context) (<-chan stream.Event, error) {
	req, err := a.request()
	if err != nil {
		return nil, err
	}

	a.logger.Info("starting analysis",
		"image", a.imagePath,
		"model", req.Payload.Model,
		"width", req.ImageWidth,
		"height", req.ImageHeight,
	)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil, errStopped
	}

	events, err := a.coord.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	a.current = events
	return events, nil
}

func (a *analysis) cancel() {
	a.coord.Cancel()
}

// stop cancels the running stream, refuses further starts and waits for
// the stream's result to be handed to the history pool.
func (a *analysis) stop() {
	a.mu.Lock()
	a.stopped = true
	events := a.current
	a.mu.Unlock()

	a.coord.Cancel()
	drain(events)
	a.coord.Wait()
}

// finished runs on the stream worker after the terminal event.
func (a *analysis) finished(res stream.Result) {
	if err := a.pool.Enqueue(worker.Job{Record: history.NewRecord(res, a.imagePath)}); err != nil {
		a.logger.Warn("analysis not recorded", "id", res.ID, "error", err)
	}

	last := &dotdir.LastAnalysis{
		ID:        res.ID,
		ImagePath: a.imagePath,
		Prompt:    a.params.Prompt,
		StartedAt: res.StartedAt,
	}
	if err := a.dotdir.SaveLastAnalysis(last, a.configDir); err != nil {
		a.logger.Warn("saving last analysis", "error", err)
	}
}

// drain discards the remaining events of a stream so its worker can finish.
func drain(events <-chan stream.Event) {
	if events == nil {
		return
	}
	for range events {
	}
}
