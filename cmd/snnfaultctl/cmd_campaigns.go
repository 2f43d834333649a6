package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"snnfault/internal/config"
	"snnfault/pkg/snnfault"
)

func newCampaignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List persisted campaigns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			return withClient(cmd, func(_ *config.Config, client *snnfault.Client) error {
				items, err := client.Campaigns(cmd.Context(), snnfault.CampaignsRequest{Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(items)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No campaigns found.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCREATED\tERROR\tCOMPONENTS\tLAYERS\tTRIALS\tSEED")
				for _, item := range items {
					components := make([]string, len(item.Components))
					for i, c := range item.Components {
						components[i] = c.String()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%d\t%d\n",
						item.CampaignID, item.CreatedAtUTC, item.ErrorKind, strings.Join(components, ","),
						item.Layers, item.Trials, item.Seed)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum campaigns to list")
	return cmd
}
