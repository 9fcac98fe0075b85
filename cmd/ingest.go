package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/model"
)

var (
	ingestFile   string
	ingestSource string
	ingestMarket string
	ingestDryRun bool
	ingestUpdate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a batch of raw listings from a JSON file",
	Long: `Reads a JSON ingest request (or a bare array of raw listings) from a
file and runs it through the normalization, deduplication, and validation
pipeline. The batch report is printed to stdout as JSON.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		req, err := readIngestRequest(ingestFile)
		if err != nil {
			return err
		}
		if ingestSource != "" {
			req.Source = model.Source(ingestSource)
		}
		if ingestMarket != "" {
			req.MarketCode = ingestMarket
		}
		if ingestDryRun {
			req.Options.DryRun = true
		}
		if ingestUpdate {
			req.Options.UpdateExisting = true
		}
		if req.Source == "" {
			return eris.New("source is required (--source or \"source\" in the file)")
		}
		if len(req.Properties) == 0 {
			return eris.New("no properties in batch")
		}
		if max := cfg.Ingest.MaxBatchSize; max > 0 && len(req.Properties) > max {
			return eris.Errorf("batch size %d exceeds maximum %d", len(req.Properties), max)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result := env.Pipeline.Ingest(ctx, *req)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}

		zap.L().Info("ingest complete",
			zap.Int("received", result.TotalReceived),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

// readIngestRequest parses either a full ingest request object or a bare
// array of raw listings.
func readIngestRequest(path string) (*model.IngestRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var req model.IngestRequest
	if err := json.Unmarshal(data, &req); err == nil && len(req.Properties) > 0 {
		return &req, nil
	}

	var raws []model.RawProperty
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return &model.IngestRequest{Properties: raws}, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to JSON batch file (required)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source channel (opendata, api, scraper, import, user, seed)")
	ingestCmd.Flags().StringVar(&ingestMarket, "market", "", "market code for validation bounds (default from config)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "validate without persisting")
	ingestCmd.Flags().BoolVar(&ingestUpdate, "update-existing", false, "update records matched by source id")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
