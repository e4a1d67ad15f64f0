package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspects or clears the catalog cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Prints cache metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			svc := appInstance.Catalog()
			info, ok := svc.CacheInfo(cmd.Context())
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendRow(table.Row{"Backend", svc.Backend()})
			if !ok {
				t.AppendRow(table.Row{"Status", "empty"})
				t.Render()
				return nil
			}
			status := "expired"
			if info.Valid {
				status = "valid"
			}
			t.AppendRows([]table.Row{
				{"Status", status},
				{"Records", info.Count},
				{"Written", info.Timestamp.Format(time.RFC3339)},
				{"Expires", info.Expiry.Format(time.RFC3339)},
				{"TTL", (time.Duration(info.TTLSeconds) * time.Second).String()},
			})
			t.Render()
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Removes the cached catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !appInstance.Catalog().Invalidate(cmd.Context()) {
				return fmt.Errorf("cache invalidation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache invalidated")
			return nil
		},
	})
	return cmd
}
