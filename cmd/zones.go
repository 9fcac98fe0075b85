package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pricewaze/ingest-cli/internal/fallback"
	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
)

var (
	zonesZoneID string
	zonesCity   string
	zonesMarket string
	zonesLat    float64
	zonesLng    float64
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect zone pricing references and data health",
}

var zonesPricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Resolve a pricing reference for a zone, point, or city",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		q := fallback.Query{MarketCode: zonesMarket}
		switch {
		case zonesZoneID != "":
			zone, err := env.Store.GetZone(ctx, zonesZoneID)
			if err != nil {
				return eris.Wrapf(err, "look up zone %q", zonesZoneID)
			}
			if zone == nil {
				return eris.Errorf("unknown zone %q", zonesZoneID)
			}
			q.Zone = zone
		case cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng"):
			q.Point = &geo.Point{Lat: zonesLat, Lng: zonesLng}
			if zonesCity != "" {
				q.Zone = &model.Zone{City: zonesCity}
			}
		case zonesCity != "":
			q.Zone = &model.Zone{City: zonesCity}
		default:
			return eris.New("one of --zone, --lat/--lng, or --city is required")
		}

		ref := env.Resolver.Resolve(ctx, q)
		return printJSON(ref)
	},
}

var zonesHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Grade a zone's listing coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		health, err := env.Resolver.Health(ctx, zonesZoneID)
		if err != nil {
			return err
		}
		return printJSON(health)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	zonesPricingCmd.Flags().StringVar(&zonesZoneID, "zone", "", "zone id")
	zonesPricingCmd.Flags().StringVar(&zonesCity, "city", "", "city name")
	zonesPricingCmd.Flags().StringVar(&zonesMarket, "market", "", "market code for the terminal baseline")
	zonesPricingCmd.Flags().Float64Var(&zonesLat, "lat", 0, "latitude")
	zonesPricingCmd.Flags().Float64Var(&zonesLng, "lng", 0, "longitude")

	zonesHealthCmd.Flags().StringVar(&zonesZoneID, "zone", "", "zone id (required)")
	_ = zonesHealthCmd.MarkFlagRequired("zone")

	zonesCmd.AddCommand(zonesPricingCmd)
	zonesCmd.AddCommand(zonesHealthCmd)
	rootCmd.AddCommand(zonesCmd)
}
