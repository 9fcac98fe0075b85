package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	rules, err := config.LoadRules()
	require.NoError(t, err)

	return New(st, rules, config.IngestConfig{MarketCode: "global", MaxConcurrent: 4}), st
}

func f64(v float64) *float64 { return &v }

func validBatch() []model.RawProperty {
	return []model.RawProperty{
		{
			SourceID: "ext-1", Title: "Casa en Naco", Price: "150,000",
			Area: 120, PropertyType: "casa",
			Latitude: f64(18.4800), Longitude: f64(-69.9300),
			Description: "Amplia casa con piscina",
		},
		{
			SourceID: "ext-2", Title: "Apto en Piantini", Price: 250000,
			Area: 95, PropertyType: "apartamento",
			Latitude: f64(18.4700), Longitude: f64(-69.9400),
		},
	}
}

func TestIngestCreatesRecords(t *testing.T) {
	pl, st := newTestPipeline(t)

	res := pl.Ingest(context.Background(), model.IngestRequest{
		Source:     model.SourceScraper,
		Properties: validBatch(),
	})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TotalReceived)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.TotalProcessed)
	assert.Zero(t, res.Failed)
	require.Len(t, res.CreatedIDs, 2)

	p, err := st.GetProperty(context.Background(), res.CreatedIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.TypeHouse, p.PropertyType)
	assert.Equal(t, 150000.0, p.Price)
	assert.Equal(t, model.StatusActive, p.Status)
	assert.Greater(t, p.TrustScore, 0.0)
	require.NotNil(t, p.Description)
	assert.Contains(t, *p.Description, "source:scraper:ext-1")
}

func TestIngestCountsFailures(t *testing.T) {
	pl, _ := newTestPipeline(t)

	batch := append(validBatch(), model.RawProperty{
		SourceID: "bad-1", Title: "", Price: 100000,
	})
	res := pl.Ingest(context.Background(), model.IngestRequest{
		Source: model.SourceUser, Properties: batch,
	})

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.TotalReceived)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Index)
	assert.Equal(t, "bad-1", res.Errors[0].SourceID)
}

func TestIngestSkipsExactDuplicates(t *testing.T) {
	pl, _ := newTestPipeline(t)
	ctx := context.Background()

	first := pl.Ingest(ctx, model.IngestRequest{
		Source: model.SourceScraper, Properties: validBatch(),
	})
	require.Equal(t, 2, first.Created)

	second := pl.Ingest(ctx, model.IngestRequest{
		Source: model.SourceScraper, Properties: validBatch(),
	})
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)
	require.NotEmpty(t, second.Errors)
	assert.Contains(t, second.Errors[0].Message, "duplicate")
}

func TestIngestSkipDuplicatesDisabled(t *testing.T) {
	pl, _ := newTestPipeline(t)
	ctx := context.Background()
	noSkip := false

	pl.Ingest(ctx, model.IngestRequest{Source: model.SourceScraper, Properties: validBatch()})
	res := pl.Ingest(ctx, model.IngestRequest{
		Source:     model.SourceScraper,
		Properties: validBatch(),
		Options:    model.IngestOptions{SkipDuplicates: &noSkip},
	})
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Skipped)
}

func TestIngestDryRun(t *testing.T) {
	pl, st := newTestPipeline(t)

	res := pl.Ingest(context.Background(), model.IngestRequest{
		Source:     model.SourceImport,
		Properties: validBatch(),
		Options:    model.IngestOptions{DryRun: true},
	})

	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.TotalProcessed)
	assert.Zero(t, res.Created)
	assert.Empty(t, res.CreatedIDs)

	n, err := st.CountByStatus(context.Background(), model.StatusActive)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestParksOutliersAsPending(t *testing.T) {
	pl, st := newTestPipeline(t)

	res := pl.Ingest(context.Background(), model.IngestRequest{
		Source: model.SourceScraper,
		Properties: []model.RawProperty{{
			SourceID: "weird-1", Title: "Apto precio raro",
			Price: 5000, Area: 150, // far below plausible price per m2
			Latitude: f64(18.50), Longitude: f64(-69.90),
		}},
	})
	require.Equal(t, 1, res.Created)

	p, err := st.GetProperty(context.Background(), res.CreatedIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.StatusPending, p.Status)

	pending, err := st.CountByStatus(context.Background(), model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestIngestUpdateExisting(t *testing.T) {
	pl, st := newTestPipeline(t)
	ctx := context.Background()

	first := pl.Ingest(ctx, model.IngestRequest{
		Source: model.SourceAPI, Properties: validBatch(),
	})
	require.Equal(t, 2, first.Created)

	updated := validBatch()
	updated[0].Price = 175000
	res := pl.Ingest(ctx, model.IngestRequest{
		Source:     model.SourceAPI,
		Properties: updated[:1],
		Options:    model.IngestOptions{UpdateExisting: true},
	})

	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Created)

	p, err := st.GetProperty(ctx, first.CreatedIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 175000.0, p.Price)
}

func TestIngestSourceNameScopesTracking(t *testing.T) {
	pl, st := newTestPipeline(t)
	ctx := context.Background()

	res := pl.Ingest(ctx, model.IngestRequest{
		Source:     model.SourceScraper,
		SourceName: "supercasas",
		Properties: validBatch()[:1],
	})
	require.Equal(t, 1, res.Created)

	p, err := st.GetProperty(ctx, res.CreatedIDs[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.Description)
	assert.Contains(t, *p.Description, "source:supercasas:ext-1")
	assert.NotContains(t, *p.Description, "source:scraper:ext-1")

	// The same upstream id from a different named adapter of the same kind
	// does not resolve to this record, so update-existing inserts anew.
	skip := false
	other := pl.Ingest(ctx, model.IngestRequest{
		Source:     model.SourceScraper,
		SourceName: "corotos",
		Properties: validBatch()[:1],
		Options:    model.IngestOptions{UpdateExisting: true, SkipDuplicates: &skip},
	})
	assert.Equal(t, 1, other.Created)
	assert.Zero(t, other.Updated)

	// Re-submission under the original name updates in place.
	again := pl.Ingest(ctx, model.IngestRequest{
		Source:     model.SourceScraper,
		SourceName: "supercasas",
		Properties: validBatch()[:1],
		Options:    model.IngestOptions{UpdateExisting: true, SkipDuplicates: &skip},
	})
	assert.Equal(t, 1, again.Updated)
	assert.Zero(t, again.Created)
}

func TestStatusReport(t *testing.T) {
	pl, _ := newTestPipeline(t)
	ctx := context.Background()

	pl.Ingest(ctx, model.IngestRequest{Source: model.SourceScraper, Properties: validBatch()})

	report, err := pl.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 2, report.Stats.TotalActive)
	assert.Zero(t, report.Stats.PendingReview)
	assert.Equal(t, 2, report.Stats.BySource["scraper"])
	assert.Zero(t, report.Stats.BySource["user"])
}
