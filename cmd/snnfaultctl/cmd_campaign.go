package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/internal/logging"
	"snnfault/internal/stats"
	"snnfault/pkg/snnfault"
)

func newCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Run a fault-injection campaign",
		Long: `Run the fault-free baseline followed by independent trials, each with
one fault drawn from the configured selection. Trial i is seeded with
seed+i, so results do not depend on the worker count.

The campaign is persisted to the configured store, artifacts are written
under the artifacts directory and the report is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			campaignID, _ := cmd.Flags().GetString("campaign-id")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			return withClient(cmd, func(cfg *config.Config, client *snnfault.Client) error {
				applyFaultFlags(cmd, cfg)
				if cmd.Flags().Changed("trials") {
					cfg.Campaign.Trials, _ = cmd.Flags().GetInt("trials")
				}
				if cmd.Flags().Changed("workers") {
					cfg.Campaign.Workers, _ = cmd.Flags().GetInt("workers")
				}

				if metricsAddr != "" {
					logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
					shutdown, err := serveMetrics(metricsAddr, logger)
					if err != nil {
						return err
					}
					defer func() {
						ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = shutdown(ctx)
					}()
				}

				result, err := client.RunCampaign(cmd.Context(), snnfault.CampaignRequest{
					Config:     cfg,
					CampaignID: campaignID,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(stats.CampaignArtifacts{
						Campaign: result.Campaign,
						Trials:   result.Trials,
						Summary:  result.Summary,
					})
				}
				if err := stats.WriteReport(out, result.Campaign, result.Trials); err != nil {
					return err
				}
				if result.ArtifactsDir != "" {
					fmt.Fprintf(out, "\nartifacts: %s\n", result.ArtifactsDir)
				}
				return nil
			})
		},
	}
	addFaultFlags(cmd)
	cmd.Flags().Int("trials", 0, "Number of trials")
	cmd.Flags().Int("workers", 0, "Trials run in parallel")
	cmd.Flags().String("campaign-id", "", "Campaign ID (generated when empty)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while the campaign runs")
	return cmd
}

// serveMetrics exposes /metrics on addr until the returned shutdown is called.
func serveMetrics(addr string, logger *slog.Logger) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv.Shutdown, nil
}
