package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pmx/internal/media"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// clients names the remote services a stage talks to.
type clients int

const (
	needSource clients = 1 << iota
	needDestination
	wantSource // opened when configured, the stage works without it
)

// Seed lists the source library into the store.
func (r *Runner) Seed(ctx context.Context, cmd *cli.Command) error {
	return r.runStage(ctx, cmd, needSource, func(e *tasks.Engine) tasks.Stage {
		return e.Seed()
	})
}

// Populate fills in metadata and the best source URL of seeded photos.
func (r *Runner) Populate(ctx context.Context, cmd *cli.Command) error {
	return r.runStage(ctx, cmd, needSource, func(e *tasks.Engine) tasks.Stage {
		return e.Populate()
	})
}

// Download fetches original files into the media root.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	root := cmd.String("path")
	if root == "" {
		root = r.config.Store.MediaRoot
	}
	root, err := shared.ExpandPath(root)
	if err != nil {
		return err
	}

	opts := tasks.DownloadOpts{
		All:        cmd.Bool("all"),
		VideosOnly: cmd.Bool("videos-only"),
		Root:       root,
	}
	return r.runStage(ctx, cmd, needSource, func(e *tasks.Engine) tasks.Stage {
		return e.Download(opts)
	})
}

// Albums creates destination albums.
func (r *Runner) Albums(ctx context.Context, cmd *cli.Command) error {
	return r.runStage(ctx, cmd, needDestination, func(e *tasks.Engine) tasks.Stage {
		return e.CreateAlbums()
	})
}

// Upload uploads downloaded files and links them into their albums.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.UploadOpts{
		All:             cmd.Bool("all"),
		VideosOnly:      cmd.Bool("videos-only"),
		MissingEXIFOnly: cmd.Bool("missing-exif-only"),
	}
	return r.runStage(ctx, cmd, needDestination|wantSource, func(e *tasks.Engine) tasks.Stage {
		return e.Upload(opts)
	})
}

// runStage opens what the stage needs, drives it with a [tasks.Retrier] and prints progress and the
// final outcome. Fatal and exhausted outcomes are returned as errors.
func (r *Runner) runStage(ctx context.Context, cmd *cli.Command, needs clients, build func(*tasks.Engine) tasks.Stage) error {
	library, err := r.openLibrary()
	if err != nil {
		return err
	}

	var source services.Source
	if needs&(needSource|wantSource) != 0 {
		source, err = r.openSource()
		if err != nil && needs&needSource != 0 {
			return err
		}
		if err != nil {
			r.logger.Debug("continuing without source client", "error", err)
			source = nil
		}
	}

	var dest services.Destination
	if needs&needDestination != 0 {
		if dest, err = r.openDestination(ctx); err != nil {
			return err
		}
	}

	mediaRoot, err := shared.ExpandPath(r.config.Store.MediaRoot)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.printUpdate(update)
		}
	}()

	pipeline := r.config.Pipeline
	engine := tasks.NewEngine(source, dest, library, tasks.EngineOpts{
		SourceBatchSize:   pipeline.SourceBatchSize,
		UploadBatchSize:   pipeline.UploadBatchSize,
		ContentBatchLimit: pipeline.ContentBatchLimit,
		MediaRoot:         mediaRoot,
		Patcher:           media.NewDatePatcher(),
		Logger:            r.logger,
		Progress:          progress,
	})
	stage := build(engine)

	budget := cmd.Int("retries")
	if budget <= 0 {
		budget = pipeline.RetryLimit
	}
	retrier := &tasks.Retrier{
		Budget: budget,
		Delay:  pipeline.RetryDelay(),
		Logger: r.logger,
	}
	if runs, err := r.openRuns(); err != nil {
		r.logger.Warn("passes will not be recorded", "error", err)
	} else {
		retrier.Recorder = runs
	}

	outcome := retrier.Run(ctx, stage)
	close(progress)
	<-done

	r.writePlainHeader(fmt.Sprintf("%s: %s", stage.Name(), outcome.Status))
	r.writePlain("%s\n", outcome.Summary())

	switch outcome.Status {
	case tasks.Fatal:
		return outcome.Err
	case tasks.Exhausted:
		return fmt.Errorf("%w: %s after %d passes (%s)", shared.ErrRetriesExhausted, stage.Name(), outcome.Passes, outcome.Last)
	}
	return nil
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ListSource:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.SeedLibrary:
		r.writePlain("🌱 %s\n", update.Message)
	case tasks.CreateAlbums:
		r.writePlain("📁 %s\n", update.Message)
	case tasks.LinkItems:
		r.writePlain("🔗 %s\n", update.Message)
	default:
		r.writePlain("   %s\n", update.Message)
	}
}
