package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// newCrawlCmd creates the 'crawl' subcommand. It populates the cache through
// the same path the API uses and prints what was stored.
func newCrawlCmd() *cobra.Command {
	var (
		limit  int
		force  bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the ranking and detail pages and caches the result",
		Long: `Fetches the popularity ranking, then each distribution's detail page
with a politeness delay between requests. A valid cache is reused unless
--force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if output != "table" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}

			records, err := appInstance.Crawl(cmd.Context(), limit, force)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			appInstance.Logger().Info("Crawl command finished.", zap.Int("records", len(records)))

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum distributions to crawl (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "invalidate the cache before crawling")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}

func renderRecords(w io.Writer, records []catalog.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Rank", "ID", "Name", "Family", "Desktops"})
	for _, r := range records {
		rank := "-"
		if r.Ranking != nil {
			rank = fmt.Sprint(*r.Ranking)
		}
		desktops := make([]string, 0, len(r.DesktopEnvironments))
		for _, d := range r.DesktopEnvironments {
			desktops = append(desktops, string(d))
		}
		t.AppendRow(table.Row{rank, r.ID, r.Name, r.Family, strings.Join(desktops, ", ")})
	}
	t.AppendFooter(table.Row{"", "Total", len(records)})
	t.Render()
}
