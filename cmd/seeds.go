package cmd

import (
	"encoding/json"
	"os"

	"sjsage522/dealrefresher/internal/store"

	"github.com/spf13/cobra"
)

var seedsCmd = &cobra.Command{
	Use:   "seeds",
	Short: "Manage the frequent items the refresh starts from",
}

var seedsAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add a frequent item",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedsAdd,
}

var seedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the frequent items in refresh order",
	RunE:  runSeedsList,
}

func init() {
	seedsAddCmd.Flags().String("name", "", "Display name")
	seedsAddCmd.Flags().String("image", "", "Image id")
	seedsAddCmd.Flags().Int("price", 0, "Price in cents")
	seedsAddCmd.Flags().String("unit", "", "Unit quantity, e.g. \"1 liter\"")
	seedsAddCmd.Flags().Int("quantity", 1, "Usual order quantity")

	seedsCmd.AddCommand(seedsAddCmd, seedsListCmd)
	rootCmd.AddCommand(seedsCmd)
}

func openStore() (*store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	return store.Open(cfg.DBDriver, dsn)
}

func runSeedsAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	image, _ := cmd.Flags().GetString("image")
	price, _ := cmd.Flags().GetInt("price")
	unit, _ := cmd.Flags().GetString("unit")
	quantity, _ := cmd.Flags().GetInt("quantity")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	item, err := st.AddSeed(cmd.Context(), store.SeedItem{
		PicnicID:     args[0],
		Name:         name,
		ImageID:      image,
		Price:        price,
		UnitQuantity: unit,
		Quantity:     quantity,
	})
	if err != nil {
		return err
	}

	cmd.Printf("added seed #%d %s\n", item.ID, item.PicnicID)
	return nil
}

func runSeedsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	seeds, err := st.ListSeeds(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(seeds)
}
