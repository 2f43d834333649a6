package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/internal/model"
	"snnfault/internal/stats"
	"snnfault/pkg/snnfault"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation, optionally with a single fault",
		Long: `Run the configured network once. When a fault selection is configured,
one fault is placed with the configured seed and the output is scored
against the fault-free baseline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withClient(cmd, func(cfg *config.Config, client *snnfault.Client) error {
				applyFaultFlags(cmd, cfg)
				sim, err := client.Simulate(cmd.Context(), snnfault.SimulateRequest{Config: cfg})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"input":       model.SpikeMatrix(mustInput(cfg)),
						"baseline":    model.SpikeMatrix(sim.Baseline),
						"output":      model.SpikeMatrix(sim.Output),
						"fault":       sim.Fault,
						"fire_time":   sim.FireTime,
						"accuracy":    sim.Accuracy,
						"degradation": sim.Degradation,
					})
				}

				fmt.Fprintf(out, "INPUT:    %v\n", mustInput(cfg))
				fmt.Fprintf(out, "BASELINE: %v\n", sim.Baseline)
				fmt.Fprintf(out, "OUTPUT:   %v\n", sim.Output)
				if sim.Fault == nil {
					fmt.Fprintln(out, "FAULT:    none")
					return nil
				}
				row := stats.Row(model.TrialRecord{Fault: sim.Fault, FireTime: sim.FireTime, Degradation: sim.Degradation})
				fmt.Fprintf(out, "FAULT:    %s, %s bit %s (layer %s, neuron %s, fire %s)\n",
					row.Component, row.Error, row.Bit, row.Layer, row.Neuron, row.FireTime)
				fmt.Fprintf(out, "IMPACT:   %s\n", row.Impact)
				return nil
			})
		},
	}
	addFaultFlags(cmd)
	return cmd
}

// mustInput returns the configured input. Simulate has already validated it.
func mustInput(cfg *config.Config) [][]uint8 {
	input, _ := cfg.InputSpikes()
	return input
}
