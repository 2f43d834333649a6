package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/internal/stats"
	"snnfault/pkg/snnfault"
)

func newTrialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "List the trials of a persisted campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			campaignID, _ := cmd.Flags().GetString("campaign-id")
			latest, _ := cmd.Flags().GetBool("latest")
			return withClient(cmd, func(_ *config.Config, client *snnfault.Client) error {
				trials, err := client.Trials(cmd.Context(), snnfault.TrialsRequest{CampaignID: campaignID, Latest: latest})
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(trials)
				}
				return stats.WriteTrialTable(cmd.OutOrStdout(), trials)
			})
		},
	}
	addCampaignSelectFlags(cmd)
	return cmd
}
