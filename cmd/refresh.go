package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/dealrefresher/pkg/errors"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one deals refresh and print its summary",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	if services.Worker == nil {
		return errors.NewConfiguration("refresh needs PICNIC_USERNAME and PICNIC_PASSWORD", nil)
	}

	summary, err := services.Worker.RunOnce(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
