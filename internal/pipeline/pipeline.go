// Package pipeline orchestrates a full extraction run: resolve the input to
// a USRDIR root, then execute the selected converters sequentially in a
// fixed order, recording per-task outcomes in a run report.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"psprip/internal/audio"
	"psprip/internal/cache"
	"psprip/internal/config"
	"psprip/internal/datatables"
	"psprip/internal/extract"
	"psprip/internal/fontmetrics"
	"psprip/internal/geometry"
	"psprip/internal/ingest"
	"psprip/internal/levels"
	"psprip/internal/logging"
	"psprip/internal/movies"
	"psprip/internal/report"
	"psprip/internal/textures"
)

// Options selects what one run extracts and where it writes.
type Options struct {
	// Input is a UMD image file or an extracted directory.
	Input string
	// OutputRoot is the destination directory for all converter output.
	OutputRoot string
	// Kinds selects the converters to run; empty means all of them.
	Kinds []report.Kind
}

// Option adjusts pipeline construction.
type Option func(*Pipeline)

// WithConverter replaces the converter registered for its kind, primarily
// for tests.
func WithConverter(conv extract.Converter) Option {
	return func(p *Pipeline) {
		if conv != nil {
			p.converters[conv.Kind()] = conv
		}
	}
}

// Pipeline runs converters against a resolved asset root.
type Pipeline struct {
	resolver   *ingest.Resolver
	converters map[report.Kind]extract.Converter
	logger     *slog.Logger
}

// New builds a pipeline with the full converter set. The cache store may be
// nil, in which case only directory inputs are accepted.
func New(cfg *config.Config, store *cache.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: ingest.NewResolver(store, logger),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		converters: map[report.Kind]extract.Converter{
			report.KindTextures:    textures.New(cfg),
			report.KindGeometry:    geometry.New(cfg),
			report.KindAudio:       audio.New(cfg),
			report.KindLevels:      levels.New(cfg),
			report.KindMovies:      movies.New(cfg),
			report.KindDataTables:  datatables.New(cfg),
			report.KindFontMetrics: fontmetrics.New(cfg),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resolves the input once and executes the selected converters in the
// declared order. One converter failing never stops the ones after it;
// cancellation marks every remaining task skipped.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Run, error) {
	if strings.TrimSpace(opts.Input) == "" {
		return nil, extract.Wrap(extract.ErrUsage, "pipeline", "run", "input path is required", nil)
	}
	if strings.TrimSpace(opts.OutputRoot) == "" {
		return nil, extract.Wrap(extract.ErrUsage, "pipeline", "run", "output root is required", nil)
	}
	kinds, err := normalizeKinds(opts.Kinds)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputRoot, 0o755); err != nil {
		return nil, extract.Wrap(extract.ErrUsage, "pipeline", "run", "create output root", err)
	}

	source, err := p.resolver.Resolve(ctx, opts.Input)
	if err != nil {
		return nil, err
	}

	run := report.NewRun(opts.Input, opts.OutputRoot, kinds)
	p.logger.InfoContext(ctx, "run started",
		logging.String("run_id", run.ID),
		logging.String("input", opts.Input),
		logging.String("asset_root", source.Root),
		logging.Int("tasks", len(run.Tasks)),
	)

	for _, kind := range kinds {
		task := run.Task(kind)
		if ctx.Err() != nil {
			task.Status = report.StatusSkipped
			task.Reason = report.CancelledReason
			continue
		}
		p.runTask(ctx, task, source.Root, opts.OutputRoot)
	}

	run.Finish()
	p.logger.InfoContext(ctx, "run finished",
		logging.String("run_id", run.ID),
		logging.Bool("succeeded", run.Succeeded()),
		logging.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

func (p *Pipeline) runTask(ctx context.Context, task *report.Task, inputRoot, outputRoot string) {
	conv := p.converters[task.Kind]
	taskLogger := logging.NewComponentLogger(p.logger, string(task.Kind))

	task.Status = report.StatusRunning
	task.StartedAt = time.Now().UTC()

	res, err := conv.Run(ctx, extract.Request{
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Log: func(line string) {
			task.AppendLog(line)
			taskLogger.InfoContext(ctx, line)
		},
	})

	task.Found = res.Found
	task.Converted = res.Converted
	task.Skipped = res.Skipped
	task.FinishedAt = time.Now().UTC()
	task.Status = extract.StatusForError(err)
	if err != nil {
		task.Reason = err.Error()
		if task.Status == report.StatusSkipped {
			taskLogger.WarnContext(ctx, "task skipped", logging.Error(err))
		} else {
			taskLogger.ErrorContext(ctx, "task failed", logging.Error(err))
		}
		return
	}
	taskLogger.InfoContext(ctx, "task succeeded",
		logging.Int("found", task.Found),
		logging.Int("converted", task.Converted),
		logging.Int("skipped", task.Skipped),
	)
}

// normalizeKinds dedupes the requested kinds and reorders them into the
// declared execution order. Empty input selects everything.
func normalizeKinds(requested []report.Kind) ([]report.Kind, error) {
	if len(requested) == 0 {
		return report.AllKinds(), nil
	}
	selected := make(map[report.Kind]bool, len(requested))
	for _, kind := range requested {
		normalized, ok := report.ParseKind(string(kind))
		if !ok {
			return nil, extract.Wrap(extract.ErrUsage, "pipeline", "run", "unknown kind "+string(kind), nil)
		}
		selected[normalized] = true
	}
	var kinds []report.Kind
	for _, kind := range report.AllKinds() {
		if selected[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}
