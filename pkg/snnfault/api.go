package snnfault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"snnfault/internal/campaign"
	"snnfault/internal/config"
	"snnfault/internal/logging"
	"snnfault/internal/model"
	"snnfault/internal/snn"
	"snnfault/internal/stats"
	"snnfault/internal/storage"
)

const (
	defaultArtifactsDir = "campaigns"
	defaultExportsDir   = "exports"
	defaultDBPath       = "snnfault.db"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNoCampaigns      = errors.New("no campaigns available")
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	runner *campaign.Runner
	logger *slog.Logger

	artifactsDir string
	exportsDir   string

	initMu      sync.Mutex
	initialized bool
}

type SimulateRequest struct {
	Config *config.Config
}

type CampaignRequest struct {
	Config *config.Config
	// CampaignID is generated when empty.
	CampaignID string
}

type CampaignsRequest struct {
	Limit int
}

type CampaignItem struct {
	CampaignID   string
	CreatedAtUTC string
	ErrorKind    model.ErrorKind
	Components   []model.Component
	Layers       []int
	Trials       int
	Seed         int64
}

type TrialsRequest struct {
	CampaignID string
	Latest     bool
}

type ReportRequest struct {
	CampaignID string
	Latest     bool
}

type ExportRequest struct {
	CampaignID string
	Latest     bool
	OutDir     string
}

type ExportSummary struct {
	CampaignID string
	Directory  string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := logging.OrDiscard(opts.Logger)

	return &Client{
		store: store,
		runner: campaign.NewRunner(campaign.Config{
			Store:        store,
			ArtifactsDir: artifactsDir,
			Logger:       logger,
		}),
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the backing store. Every other method calls it lazily.
func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Simulate runs the configured network once with the configured fault
// selection, seeded from the campaign seed.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (campaign.Simulation, error) {
	in, err := c.prepare(req.Config)
	if err != nil {
		return campaign.Simulation{}, err
	}
	return campaign.Simulate(ctx, in.builder, in.input, req.Config.Campaign.Seed, in.components, in.kind)
}

// RunCampaign runs the configured sweep and persists it.
func (c *Client) RunCampaign(ctx context.Context, req CampaignRequest) (campaign.Result, error) {
	if err := c.Init(ctx); err != nil {
		return campaign.Result{}, err
	}
	in, err := c.prepare(req.Config)
	if err != nil {
		return campaign.Result{}, err
	}
	cfg := req.Config
	return c.runner.Run(ctx, campaign.Request{
		CampaignID:  req.CampaignID,
		Builder:     in.builder,
		Input:       in.input,
		Components:  in.components,
		ErrorKind:   in.kind,
		Trials:      cfg.Campaign.Trials,
		Seed:        cfg.Campaign.Seed,
		Workers:     cfg.Campaign.Workers,
		NeuronModel: cfg.Network.NeuronModel,
	})
}

// Campaigns lists persisted campaigns, newest first.
func (c *Client) Campaigns(ctx context.Context, req CampaignsRequest) ([]CampaignItem, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	records, err := c.store.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}
	out := make([]CampaignItem, 0, len(records))
	for _, r := range records {
		out = append(out, CampaignItem{
			CampaignID:   r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			ErrorKind:    r.ErrorKind,
			Components:   r.Components,
			Layers:       r.Layers,
			Trials:       r.Trials,
			Seed:         r.Seed,
		})
	}
	return out, nil
}

// Trials returns a campaign's trials ordered by index.
func (c *Client) Trials(ctx context.Context, req TrialsRequest) ([]model.TrialRecord, error) {
	id, err := c.resolveCampaignID(ctx, req.CampaignID, req.Latest)
	if err != nil {
		return nil, err
	}
	_, trials, err := c.loadCampaign(ctx, id)
	return trials, err
}

// Report renders the text report of a persisted campaign to w.
func (c *Client) Report(ctx context.Context, req ReportRequest, w io.Writer) error {
	id, err := c.resolveCampaignID(ctx, req.CampaignID, req.Latest)
	if err != nil {
		return err
	}
	record, trials, err := c.loadCampaign(ctx, id)
	if err != nil {
		return err
	}
	return stats.WriteReport(w, record, trials)
}

// Export copies a campaign's artifact directory under OutDir.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	id, err := c.resolveCampaignID(ctx, req.CampaignID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportCampaignArtifacts(c.artifactsDir, id, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{CampaignID: id, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveCampaignID(ctx context.Context, id string, latest bool) (string, error) {
	if id != "" && latest {
		return "", errors.New("use either campaign id or latest")
	}
	if id == "" && !latest {
		return "", errors.New("campaign id or latest is required")
	}
	if id != "" {
		return id, nil
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	records, err := c.store.ListCampaigns(ctx)
	if err != nil {
		return "", err
	}
	if len(records) > 0 {
		return records[0].ID, nil
	}
	entries, err := stats.ListCampaignIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoCampaigns
	}
	return entries[0].CampaignID, nil
}

// loadCampaign reads a campaign from the store and falls back to its
// artifacts, which outlive a memory store.
func (c *Client) loadCampaign(ctx context.Context, id string) (model.CampaignRecord, []model.TrialRecord, error) {
	if err := c.Init(ctx); err != nil {
		return model.CampaignRecord{}, nil, err
	}
	record, ok, err := c.store.GetCampaign(ctx, id)
	if err != nil {
		return model.CampaignRecord{}, nil, err
	}
	if ok {
		trials, _, err := c.store.GetTrials(ctx, id)
		if err != nil {
			return model.CampaignRecord{}, nil, err
		}
		return record, trials, nil
	}
	artifacts, ok, err := stats.ReadCampaignArtifacts(c.artifactsDir, id)
	if err != nil {
		return model.CampaignRecord{}, nil, err
	}
	if !ok {
		return model.CampaignRecord{}, nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	return artifacts.Campaign, artifacts.Trials, nil
}

type prepared struct {
	builder    *snn.Builder
	input      [][]uint8
	components []model.Component
	kind       model.ErrorKind
}

func (c *Client) prepare(cfg *config.Config) (prepared, error) {
	if cfg == nil {
		return prepared{}, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return prepared{}, fmt.Errorf("invalid config: %w", err)
	}
	builder, err := cfg.NewBuilder(c.logger)
	if err != nil {
		return prepared{}, err
	}
	input, err := cfg.InputSpikes()
	if err != nil {
		return prepared{}, err
	}
	components, err := cfg.Components()
	if err != nil {
		return prepared{}, err
	}
	kind, err := cfg.ErrorKind()
	if err != nil {
		return prepared{}, err
	}
	return prepared{builder: builder, input: input, components: components, kind: kind}, nil
}
