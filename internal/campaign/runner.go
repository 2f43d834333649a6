// Package campaign runs fault-injection sweeps: a fault-free baseline
// followed by independent faulted trials, each scored against the baseline.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"snnfault/internal/logging"
	"snnfault/internal/model"
	"snnfault/internal/snn"
	"snnfault/internal/stats"
	"snnfault/internal/storage"
)

var tracer = otel.Tracer("snnfault.campaign")

var (
	ErrNilBuilder       = errors.New("campaign requires a network builder")
	ErrInvalidTrials    = errors.New("trial count must be non-negative")
	ErrInvalidErrorKind = errors.New("invalid error kind")
)

type Config struct {
	Store storage.Store
	// ArtifactsDir receives one directory per campaign. Empty disables artifacts.
	ArtifactsDir string
	Logger       *slog.Logger
}

type Runner struct {
	store        storage.Store
	artifactsDir string
	logger       *slog.Logger
	now          func() time.Time
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		logger:       logging.OrDiscard(cfg.Logger),
		now:          time.Now,
	}
}

// Request describes one sweep. Trial i builds its network with a generator
// seeded from Seed+i, so results do not depend on worker scheduling.
type Request struct {
	CampaignID  string
	Builder     *snn.Builder
	Input       [][]uint8
	Components  []model.Component
	ErrorKind   model.ErrorKind
	Trials      int
	Seed        int64
	Workers     int
	NeuronModel string
}

type Result struct {
	Campaign     model.CampaignRecord
	Trials       []model.TrialRecord
	Summary      stats.Summary
	ArtifactsDir string
}

// NewCampaignID returns a fresh campaign identifier.
func NewCampaignID() string {
	return "campaign-" + uuid.NewString()
}

// Run executes the sweep, persists it when a store is configured and writes
// artifacts when an artifacts directory is configured. Cancellation is
// observed between trials; a trial that already started runs to completion
// and the cancelled campaign is not persisted.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.CampaignID == "" {
		req.CampaignID = NewCampaignID()
	}
	if req.Workers < 1 {
		req.Workers = 1
	}
	if req.NeuronModel == "" {
		req.NeuronModel = snn.ModelLIF
	}

	ctx, span := tracer.Start(ctx, "campaign.Run",
		trace.WithAttributes(
			attribute.String("campaign.id", req.CampaignID),
			attribute.String("campaign.error_kind", req.ErrorKind.String()),
			attribute.Int("campaign.trials", req.Trials),
			attribute.Int("campaign.workers", req.Workers),
			attribute.Int64("campaign.seed", req.Seed),
		),
	)
	defer span.End()

	result, err := r.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		campaignsTotal.WithLabelValues(outcomeError).Inc()
		r.logger.Error("campaign failed", "campaign_id", req.CampaignID, "error", err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("campaign.affected", result.Summary.Affected),
		attribute.Float64("campaign.max_impact", result.Summary.MaxImpact),
	)
	span.SetStatus(codes.Ok, "")
	campaignsTotal.WithLabelValues(outcomeOK).Inc()
	return result, nil
}

func (r *Runner) run(ctx context.Context, req Request) (Result, error) {
	started := r.now().UTC()

	baseline, err := Baseline(ctx, req.Builder, req.Input)
	if err != nil {
		return Result{}, fmt.Errorf("baseline: %w", err)
	}
	shapes, err := req.Builder.Shapes()
	if err != nil {
		return Result{}, err
	}
	layers := make([]int, len(shapes))
	for i, s := range shapes {
		layers[i] = s.Neurons
	}

	r.logger.Info("campaign started",
		"campaign_id", req.CampaignID,
		"trials", req.Trials,
		"workers", req.Workers,
		"error_kind", req.ErrorKind.String(),
	)

	trials := make([]model.TrialRecord, req.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for i := 0; i < req.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trial, err := r.runTrial(gctx, req, i, baseline)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			trials[i] = trial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	campaign := model.CampaignRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              req.CampaignID,
		CreatedAtUTC:    started.Format(time.RFC3339Nano),
		NeuronModel:     req.NeuronModel,
		Layers:          layers,
		Components:      append([]model.Component(nil), req.Components...),
		ErrorKind:       req.ErrorKind,
		Trials:          req.Trials,
		Seed:            req.Seed,
		Workers:         req.Workers,
		Input:           model.SpikeMatrix(req.Input),
		Baseline:        model.SpikeMatrix(baseline),
	}
	summary := stats.Summarize(trials)
	result := Result{Campaign: campaign, Trials: trials, Summary: summary}

	if r.store != nil {
		if err := r.store.SaveCampaign(ctx, campaign); err != nil {
			return Result{}, fmt.Errorf("save campaign: %w", err)
		}
		if err := r.store.SaveTrials(ctx, campaign.ID, trials); err != nil {
			return Result{}, fmt.Errorf("save trials: %w", err)
		}
	}
	if r.artifactsDir != "" {
		dir, err := stats.WriteCampaignArtifacts(r.artifactsDir, stats.CampaignArtifacts{
			Campaign: campaign,
			Trials:   trials,
			Summary:  summary,
		})
		if err != nil {
			return Result{}, fmt.Errorf("write artifacts: %w", err)
		}
		if err := stats.AppendCampaignIndex(r.artifactsDir, stats.IndexEntry(campaign, summary)); err != nil {
			return Result{}, fmt.Errorf("update campaign index: %w", err)
		}
		result.ArtifactsDir = dir
	}

	r.logger.Info("campaign complete",
		"campaign_id", campaign.ID,
		"trials", summary.Total,
		"affected", summary.Affected,
		"max_impact", stats.FormatImpact(summary.MaxImpact),
		"elapsed", time.Since(started).String(),
	)
	return result, nil
}

func (r *Runner) runTrial(ctx context.Context, req Request, index int, baseline [][]uint8) (model.TrialRecord, error) {
	ctx, span := tracer.Start(ctx, "campaign.trial",
		trace.WithAttributes(attribute.Int("trial.index", index)),
	)
	defer span.End()

	start := time.Now()
	seed := req.Seed + int64(index)
	sim, err := simulate(ctx, req.Builder, req.Input, baseline, rand.New(rand.NewSource(seed)), req.Components, req.ErrorKind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		trialsTotal.WithLabelValues("unknown", req.ErrorKind.String(), outcomeError).Inc()
		return model.TrialRecord{}, err
	}
	elapsed := time.Since(start)

	trial := model.TrialRecord{
		VersionedRecord: storage.CurrentVersion(),
		CampaignID:      req.CampaignID,
		Index:           index,
		Seed:            seed,
		Fault:           sim.Fault,
		FireTime:        sim.FireTime,
		Accuracy:        sim.Accuracy,
		Degradation:     sim.Degradation,
		DurationMS:      float64(elapsed.Microseconds()) / 1000,
	}

	component := "none"
	if sim.Fault != nil {
		component = sim.Fault.Component.String()
		span.SetAttributes(
			attribute.String("fault.component", component),
			attribute.Int("fault.layer", sim.Fault.Layer),
			attribute.Int("fault.neuron", sim.Fault.Neuron),
			attribute.Int("fault.bit", int(sim.Fault.Bit)),
		)
	}
	span.SetAttributes(attribute.Float64("trial.degradation", trial.Degradation))
	span.SetStatus(codes.Ok, "")

	trialsTotal.WithLabelValues(component, req.ErrorKind.String(), trialOutcome(trial.Degradation)).Inc()
	trialDegradation.WithLabelValues(component).Observe(trial.Degradation)
	trialDuration.Observe(elapsed.Seconds())

	r.logger.Debug("trial complete",
		"campaign_id", req.CampaignID,
		"trial", index,
		"component", component,
		"fire_time", trial.FireTime,
		"degradation", trial.Degradation,
	)
	return trial, nil
}

func (req Request) validate() error {
	if req.Builder == nil {
		return ErrNilBuilder
	}
	if req.Trials < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTrials, req.Trials)
	}
	if len(req.Components) > 0 && !req.ErrorKind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidErrorKind, int(req.ErrorKind))
	}
	return nil
}
