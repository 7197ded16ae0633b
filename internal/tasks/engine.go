package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
)

// Default batch sizes.
const (
	DefaultSourceBatchSize   = 30 // concurrent source requests per group
	DefaultUploadBatchSize   = 10 // concurrent byte uploads per group
	DefaultContentBatchLimit = 50 // items per batchCreate call, the destination maximum
	DefaultTokenTTL          = 23 * time.Hour
)

// Tally is the result of one stage pass.
type Tally struct {
	Succeeded int
	Attempted int
}

// Converged reports whether every attempted entity succeeded.
func (t Tally) Converged() bool {
	return t.Succeeded == t.Attempted
}

func (t Tally) String() string {
	return fmt.Sprintf("%d/%d", t.Succeeded, t.Attempted)
}

func (t *Tally) add(other Tally) {
	t.Succeeded += other.Succeeded
	t.Attempted += other.Attempted
}

// Stage is one idempotent pass over the library.
//
// Process never returns an error for a single entity failing; those only lower the tally. A
// returned error is fatal and stops the [Retrier].
type Stage interface {
	Name() string
	Process(ctx context.Context) (Tally, error)
}

// Patcher adds a capture date to image bytes that lack one.
type Patcher interface {
	Patch(data []byte, posted time.Time) ([]byte, bool, error)
}

// EngineOpts configures an [Engine]. Zero values select the defaults.
type EngineOpts struct {
	SourceBatchSize   int
	UploadBatchSize   int
	ContentBatchLimit int
	TokenTTL          time.Duration
	MediaRoot         string // where downloads are written, one subdirectory per collection
	Patcher           Patcher
	Logger            *log.Logger
	Progress          chan<- ProgressUpdate
	Now               func() time.Time
}

// Engine builds the pipeline stages over a library and two remote clients.
type Engine struct {
	source  services.Source
	dest    services.Destination
	library *store.Library
	opts    EngineOpts
	logger  *log.Logger
}

// NewEngine creates an Engine. Either client may be nil when only stages that do not need it are run.
func NewEngine(source services.Source, dest services.Destination, library *store.Library, opts EngineOpts) *Engine {
	if opts.SourceBatchSize <= 0 {
		opts.SourceBatchSize = DefaultSourceBatchSize
	}
	if opts.UploadBatchSize <= 0 {
		opts.UploadBatchSize = DefaultUploadBatchSize
	}
	if opts.ContentBatchLimit <= 0 || opts.ContentBatchLimit > DefaultContentBatchLimit {
		opts.ContentBatchLimit = DefaultContentBatchLimit
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{source: source, dest: dest, library: library, opts: opts, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(update ProgressUpdate) {
	if e.opts.Progress == nil {
		return
	}
	select {
	case e.opts.Progress <- update:
	default:
	}
}

func (e *Engine) stageLogger(name string) *log.Logger {
	return shared.WithLogger(e.logger, "stage", name)
}

func (e *Engine) requireSource() error {
	if e.source == nil {
		return fmt.Errorf("%w: source client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (e *Engine) requireDestination() error {
	if e.dest == nil {
		return fmt.Errorf("%w: destination client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}
