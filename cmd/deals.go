package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"sjsage522/dealrefresher/internal/deals"

	"github.com/spf13/cobra"
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "Print the cached deals",
	RunE:  runDeals,
}

func init() {
	dealsCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(dealsCmd)
}

func runDeals(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	services, err := initializeServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	resp, err := services.Deals.ListDeals(cmd.Context())
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		printDealsTable(resp)
		return nil
	}
}

func printDealsTable(resp *deals.Response) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tPRODUCT\tNAME\tPRICE")
	for _, item := range resp.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t€%d.%02d\n", item.PromoLabel, item.PicnicID, item.Name, item.Price/100, item.Price%100)
	}
	w.Flush()

	last := "never"
	if resp.LastRefreshed != nil {
		last = time.Unix(*resp.LastRefreshed, 0).Format(time.RFC3339)
	}
	fmt.Printf("\n%d deals, %d known promotions, last refreshed %s\n", len(resp.Items), resp.KnownPromotionCount, last)
}
