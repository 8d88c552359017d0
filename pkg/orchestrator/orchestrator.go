// Package orchestrator implements stage sequencing, self-healing
// eligibility (each stage always processes every currently-eligible row,
// never merely the rows the previous stage just touched), and graceful
// shutdown across the three pipeline stages.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/syncstage"
)

// Config wires the orchestrator to one already-constructed Stage per
// pipeline phase. A nil stage means that phase is skipped by RunFull, and
// the matching single-stage Run* method returns an empty result and no error.
type Config struct {
	Sync    *syncstage.Stage
	Extract *extractstage.Stage
	Index   *indexstage.Stage

	log *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.log == nil {
		c.log = logger.With("component", "orchestrator")
	}
}

// Options parameterizes one full-pipeline invocation. Each field reaches
// the correspondingly-named stage's own RunOptions. DryRun is not one of
// these fields: it is a construction-time Config.DryRun on each stage,
// since it changes what a stage does per-record, not what it selects.
type Options struct {
	ForceFullSync bool
	RetryFailed   bool
	MaxFiles      int
}

// Result tallies one RunFull invocation across all three stages.
type Result struct {
	Sync    syncstage.Result
	Extract extractstage.Result
	Index   indexstage.Result
}

// Orchestrator sequences the sync, extract, and index stages and enforces
// the self-healing and graceful-shutdown rules.
type Orchestrator struct {
	cfg Config
}

// New constructs an Orchestrator from cfg, applying defaults.
func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{cfg: cfg}
}

// RunFull runs sync, then extract, then index, sequentially, stopping
// early (without error) if ctx is cancelled between stages. Each stage
// discovers and processes its own full eligible set — see RunExtract and
// RunIndex — so a crash mid-stage is repaired by the next RunFull, not by
// threading digests from one stage's output into the next stage's input.
func (o *Orchestrator) RunFull(ctx context.Context, opts Options) (Result, error) {
	var result Result

	if o.cfg.Sync != nil {
		log := o.cfg.log.With(logger.Stage("sync"))
		syncResult, err := o.cfg.Sync.Run(ctx, syncstage.RunOptions{
			ForceFullSync: opts.ForceFullSync,
			MaxNewUploads: opts.MaxFiles,
		})
		if err != nil {
			return result, err
		}
		result.Sync = syncResult
		log.Info("sync complete",
			slog.Int("examined", syncResult.Examined),
			slog.Int("new_uploads", syncResult.NewUploads),
			slog.Int("failed", syncResult.Failed))
	}

	if ctx.Err() != nil {
		return result, nil
	}

	extractResult, err := o.RunExtract(ctx, opts)
	if err != nil {
		return result, err
	}
	result.Extract = extractResult

	if ctx.Err() != nil {
		return result, nil
	}

	indexResult, err := o.RunIndex(ctx, opts)
	if err != nil {
		return result, err
	}
	result.Index = indexResult

	return result, nil
}

// RunExtract runs only the extraction stage, over every row currently in
// synced (and, with RetryFailed, failed_process) — never merely digests
// a preceding sync produced.
func (o *Orchestrator) RunExtract(ctx context.Context, opts Options) (extractstage.Result, error) {
	if o.cfg.Extract == nil {
		return extractstage.Result{}, nil
	}
	log := o.cfg.log.With(logger.Stage("extract"))
	result, err := o.cfg.Extract.Run(ctx, extractstage.RunOptions{
		RetryFailed: opts.RetryFailed,
		MaxFiles:    opts.MaxFiles,
	})
	if err != nil {
		return result, err
	}
	log.Info("extract complete",
		slog.Int("examined", result.Examined),
		slog.Int("failed", result.Failed),
		slog.Int("empty", result.Empty))
	return result, nil
}

// RunIndex runs only the indexing stage, over every row currently in
// processed (and, with RetryFailed, failed_index).
func (o *Orchestrator) RunIndex(ctx context.Context, opts Options) (indexstage.Result, error) {
	if o.cfg.Index == nil {
		return indexstage.Result{}, nil
	}
	log := o.cfg.log.With(logger.Stage("index"))
	result, err := o.cfg.Index.Run(ctx, indexstage.RunOptions{
		RetryFailed: opts.RetryFailed,
		MaxFiles:    opts.MaxFiles,
	})
	if err != nil {
		return result, err
	}
	log.Info("index complete",
		slog.Int("examined", result.Examined),
		slog.Int("indexed", result.Indexed),
		slog.Int("failed", result.Failed))
	return result, nil
}
