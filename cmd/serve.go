package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/adapter"
	"github.com/pricewaze/ingest-cli/internal/fallback"
	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion and zone pricing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(env, cfg.Ingest.MaxBatchSize)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown. The signal context is already canceled here,
		// so the drain gets its own deadline.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter assembles the HTTP API. maxBatch caps the number of listings
// accepted in a single ingest request; zero means unlimited.
func buildRouter(env *ingestEnv, maxBatch int) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/ingest", func(w http.ResponseWriter, req *http.Request) {
		var batch model.IngestRequest
		if err := json.NewDecoder(req.Body).Decode(&batch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if batch.Source == "" {
			writeError(w, http.StatusBadRequest, "source is required")
			return
		}
		if len(batch.Properties) == 0 {
			writeError(w, http.StatusBadRequest, "properties must be a non-empty array")
			return
		}
		if maxBatch > 0 && len(batch.Properties) > maxBatch {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("batch size %d exceeds maximum %d", len(batch.Properties), maxBatch))
			return
		}

		result := env.Pipeline.Ingest(req.Context(), batch)

		status := http.StatusOK
		if !result.Success {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, result)
	})

	r.Get("/api/ingest/status", func(w http.ResponseWriter, req *http.Request) {
		report, err := env.Pipeline.Status(req.Context())
		if err != nil {
			zap.L().Error("status report failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "status report failed")
			return
		}
		writeJSON(w, http.StatusOK, statusWithAdapters{
			StatusReport: report,
			Adapters:     env.Adapters.Describe(),
		})
	})

	r.Get("/api/zones/pricing", func(w http.ResponseWriter, req *http.Request) {
		q, err := pricingQuery(req, env)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ref := env.Resolver.Resolve(req.Context(), *q)
		writeJSON(w, http.StatusOK, ref)
	})

	r.Get("/api/zones/{id}/stats", func(w http.ResponseWriter, req *http.Request) {
		zoneID := chi.URLParam(req, "id")
		zone, err := env.Store.GetZone(req.Context(), zoneID)
		if err != nil {
			zap.L().Error("zone lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "zone lookup failed")
			return
		}
		if zone == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown zone %q", zoneID))
			return
		}
		stats, err := env.Adapters.CombinedStats(req.Context(), *zone)
		if err != nil {
			zap.L().Error("combined stats failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "combined stats failed")
			return
		}
		if stats == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no market data for zone %q", zoneID))
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/api/zones/{id}/health", func(w http.ResponseWriter, req *http.Request) {
		health, err := env.Resolver.Health(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("zone health failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "zone health failed")
			return
		}
		writeJSON(w, http.StatusOK, health)
	})

	return r
}

// statusWithAdapters is the status endpoint payload: the pipeline report
// plus the configured source adapters and their weights.
type statusWithAdapters struct {
	*pipeline.StatusReport
	Adapters []adapter.Info `json:"adapters"`
}

// pricingQuery translates query parameters into a fallback query. A zone_id
// is resolved against the store; otherwise lat/lng and city are used as-is.
func pricingQuery(req *http.Request, env *ingestEnv) (*fallback.Query, error) {
	params := req.URL.Query()
	q := fallback.Query{MarketCode: params.Get("market")}

	if zoneID := params.Get("zone_id"); zoneID != "" {
		zone, err := env.Store.GetZone(req.Context(), zoneID)
		if err != nil {
			return nil, eris.Wrapf(err, "look up zone %q", zoneID)
		}
		if zone == nil {
			return nil, eris.Errorf("unknown zone %q", zoneID)
		}
		q.Zone = zone
		return &q, nil
	}

	if latStr, lngStr := params.Get("lat"), params.Get("lng"); latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			return nil, eris.New("lat and lng must be numbers")
		}
		q.Point = &geo.Point{Lat: lat, Lng: lng}
	}

	if city := params.Get("city"); city != "" {
		q.Zone = &model.Zone{City: city}
	}

	if q.Zone == nil && q.Point == nil {
		return nil, eris.New("zone_id, lat/lng, or city is required")
	}
	return &q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
