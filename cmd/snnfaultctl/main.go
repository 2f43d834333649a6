package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/internal/logging"
	"snnfault/pkg/snnfault"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snnfaultctl",
		Short: "Fault injection for spiking neural networks",
		Long: `snnfaultctl simulates leaky integrate-and-fire networks and injects
single bit-level faults into neuron state, weights and arithmetic units.

It runs single simulations or full campaigns of independent trials and
reports the accuracy degradation of each fault.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Campaign YAML file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory or sqlite")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path")
	rootCmd.PersistentFlags().String("artifacts-dir", "", "Campaign artifacts directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newCampaignCmd(),
		newCampaignsCmd(),
		newTrialsCmd(),
		newReportCmd(),
		newExportCmd(),
	)
	return rootCmd
}

// loadConfig reads --config over the defaults, then environment overrides,
// then the persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("store") {
		cfg.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("db-path") {
		cfg.Store.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("artifacts-dir") {
		cfg.ArtifactsDir, _ = flags.GetString("artifacts-dir")
	}
	return cfg, nil
}

// applyFaultFlags overrides the fault selection with flags set on cmd.
func applyFaultFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("components") {
		cfg.Campaign.Components, _ = flags.GetStringSlice("components")
	}
	if flags.Changed("error-kind") {
		cfg.Campaign.ErrorKind, _ = flags.GetString("error-kind")
	}
	if flags.Changed("seed") {
		cfg.Campaign.Seed, _ = flags.GetInt64("seed")
	}
}

func addFaultFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("components", nil, "Faultable components by name or code 0-7, or all")
	cmd.Flags().String("error-kind", "", "stuck_at_0, stuck_at_1 or transient_flip")
	cmd.Flags().Int64("seed", 0, "Random seed")
}

func addCampaignSelectFlags(cmd *cobra.Command) {
	cmd.Flags().String("campaign-id", "", "Campaign ID")
	cmd.Flags().Bool("latest", false, "Use the most recent campaign")
}

func newClient(cmd *cobra.Command, cfg *config.Config) (*snnfault.Client, error) {
	if !logging.ValidLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	return snnfault.New(snnfault.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.DBPath,
		ArtifactsDir: cfg.ArtifactsDir,
		Logger:       logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	})
}

// withClient loads configuration, opens a client and closes it after fn.
func withClient(cmd *cobra.Command, fn func(cfg *config.Config, client *snnfault.Client) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(cfg, client)
}
