package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pricewaze/ingest-cli/internal/model"
)

var migrateZonesFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Applies the schema migrations for the configured store. With --zones,
also seeds the zones table from a YAML file of {id, name, city} entries.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))

		if migrateZonesFile == "" {
			return nil
		}

		data, err := os.ReadFile(migrateZonesFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", migrateZonesFile)
		}
		var zones []model.Zone
		if err := yaml.Unmarshal(data, &zones); err != nil {
			return eris.Wrapf(err, "parse %s", migrateZonesFile)
		}

		for _, z := range zones {
			if z.ID == "" || z.Name == "" {
				return eris.Errorf("zone entry missing id or name: %+v", z)
			}
			if err := st.InsertZone(ctx, z); err != nil {
				return eris.Wrapf(err, "seed zone %s", z.ID)
			}
		}
		zap.L().Info("zones seeded", zap.Int("count", len(zones)))

		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateZonesFile, "zones", "", "YAML file of zones to seed")
	rootCmd.AddCommand(migrateCmd)
}
