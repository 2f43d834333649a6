package main

import (
	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/pkg/snnfault"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the report of a persisted campaign",
		Long: `Render the report of a persisted campaign. Campaigns missing from the
store are read back from the artifacts directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, _ := cmd.Flags().GetString("campaign-id")
			latest, _ := cmd.Flags().GetBool("latest")
			return withClient(cmd, func(_ *config.Config, client *snnfault.Client) error {
				return client.Report(cmd.Context(), snnfault.ReportRequest{CampaignID: campaignID, Latest: latest}, cmd.OutOrStdout())
			})
		},
	}
	addCampaignSelectFlags(cmd)
	return cmd
}
