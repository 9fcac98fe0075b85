package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewaze/ingest-cli/internal/adapter"
	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/fallback"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/pipeline"
	"github.com/pricewaze/ingest-cli/internal/store"
)

func newTestEnv(t *testing.T) *ingestEnv {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	rules, err := config.LoadRules()
	require.NoError(t, err)

	return &ingestEnv{
		Store:    st,
		Rules:    rules,
		Pipeline: pipeline.New(st, rules, config.IngestConfig{MarketCode: "global", MaxConcurrent: 2}),
		Resolver: fallback.New(rules, st),
		Adapters: adapter.NewRegistry(),
	}
}

func fp(v float64) *float64 { return &v }

func postIngest(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_IngestCreatesListing(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	rr := postIngest(t, router, model.IngestRequest{
		Source: model.SourceScraper,
		Properties: []model.RawProperty{{
			SourceID: "ext-1", Title: "Casa en Naco", Price: "150,000",
			Area: 120, PropertyType: "casa",
			Latitude: fp(18.48), Longitude: fp(-69.93),
		}},
	})

	assert.Equal(t, http.StatusOK, rr.Code)

	var result model.IngestResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, result.CreatedIDs, 1)
}

func TestRouter_IngestPartialFailure(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	rr := postIngest(t, router, model.IngestRequest{
		Source: model.SourceUser,
		Properties: []model.RawProperty{
			{
				SourceID: "ok-1", Title: "Apto en Piantini", Price: 250000,
				Area: 95, PropertyType: "apartamento",
				Latitude: fp(18.47), Longitude: fp(-69.94),
			},
			{SourceID: "bad-1", Title: "", Price: 100000},
		},
	})

	assert.Equal(t, http.StatusMultiStatus, rr.Code)

	var result model.IngestResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad-1", result.Errors[0].SourceID)
}

func TestRouter_IngestRejectsInvalidBody(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_IngestRequiresSource(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	rr := postIngest(t, router, model.IngestRequest{
		Properties: []model.RawProperty{{Title: "Casa", Price: 100000}},
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source is required")
}

func TestRouter_IngestRequiresProperties(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	rr := postIngest(t, router, model.IngestRequest{Source: model.SourceUser})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "non-empty")
}

func TestRouter_IngestEnforcesBatchLimit(t *testing.T) {
	router := buildRouter(newTestEnv(t), 2)

	props := make([]model.RawProperty, 3)
	for i := range props {
		props[i] = model.RawProperty{Title: "Casa", Price: 100000, Area: 100}
	}
	rr := postIngest(t, router, model.IngestRequest{
		Source: model.SourceImport, Properties: props,
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "exceeds maximum")
}

func TestRouter_IngestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.Adapters.Register(adapter.NewUserAdapter(env.Store))
	router := buildRouter(env, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/ingest/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var report statusWithAdapters
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Contains(t, report.Stats.BySource, "scraper")
	require.Len(t, report.Adapters, 1)
	assert.Equal(t, "user", report.Adapters[0].Name)
	assert.True(t, report.Adapters[0].Enabled)
	assert.Greater(t, report.Adapters[0].Weight, 0.0)
}

func TestRouter_ZonePricingByZoneID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.Store.InsertZone(ctx, model.Zone{
		ID: "naco", Name: "Naco", City: "Santo Domingo",
	}))
	router := buildRouter(env, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/pricing?zone_id=naco&market=do", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// No listings exist, so the resolver falls through to the baseline.
	var ref fallback.Reference
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ref))
	assert.Equal(t, fallback.ScopeCountry, ref.Scope)
	assert.Equal(t, fallback.ConfidenceVeryLow, ref.ConfidenceLevel)
	assert.Greater(t, ref.AvgPriceM2, 0.0)
}

func TestRouter_ZonePricingUnknownZone(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/pricing?zone_id=nowhere", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown zone")
}

func TestRouter_ZonePricingRequiresLocation(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/pricing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ZoneHealth(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/naco/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var health fallback.ZoneHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "naco", health.ZoneID)
	assert.Equal(t, fallback.QualityNoData, health.DataQuality)
}

func TestRouter_ZoneStats(t *testing.T) {
	env := newTestEnv(t)
	env.Adapters.Register(adapter.NewUserAdapter(env.Store))
	ctx := context.Background()
	require.NoError(t, env.Store.InsertZone(ctx, model.Zone{
		ID: "naco", Name: "Naco", City: "Santo Domingo",
	}))
	for _, price := range []float64{150000, 160000, 170000} {
		_, err := env.Store.InsertProperty(ctx, &model.Property{
			Title: "Apto en Naco", PropertyType: model.TypeApartment,
			Price: price, AreaM2: 100, ZoneID: "naco",
			Status: model.StatusActive,
		})
		require.NoError(t, err)
	}
	router := buildRouter(env, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/naco/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var stats adapter.MarketStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, "naco", stats.ZoneID)
	assert.Greater(t, stats.AvgPriceM2, 0.0)
	assert.Equal(t, 3, stats.TotalListings)
}

func TestRouter_ZoneStatsUnknownZone(t *testing.T) {
	router := buildRouter(newTestEnv(t), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/nowhere/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown zone")
}

func TestRouter_ZoneStatsNoData(t *testing.T) {
	env := newTestEnv(t)
	env.Adapters.Register(adapter.NewUserAdapter(env.Store))
	require.NoError(t, env.Store.InsertZone(context.Background(), model.Zone{
		ID: "empty", Name: "Empty", City: "Santo Domingo",
	}))
	router := buildRouter(env, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/zones/empty/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no market data")
}
