package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/pkg/snnfault"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a campaign's artifacts to another directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			campaignID, _ := cmd.Flags().GetString("campaign-id")
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")
			return withClient(cmd, func(_ *config.Config, client *snnfault.Client) error {
				exported, err := client.Export(cmd.Context(), snnfault.ExportRequest{
					CampaignID: campaignID,
					Latest:     latest,
					OutDir:     outDir,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"campaign_id": exported.CampaignID,
						"directory":   exported.Directory,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported campaign=%s dir=%s\n", exported.CampaignID, exported.Directory)
				return nil
			})
		},
	}
	addCampaignSelectFlags(cmd)
	cmd.Flags().String("out", "", "Destination directory (default exports)")
	return cmd
}
