// Package pipeline orchestrates batch ingestion: normalize, deduplicate,
// validate, score, persist. Each record is accounted for exactly once in the
// result counters, and a single bad record never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pricewaze/ingest-cli/internal/config"
	"github.com/pricewaze/ingest-cli/internal/dedup"
	"github.com/pricewaze/ingest-cli/internal/model"
	"github.com/pricewaze/ingest-cli/internal/normalize"
	"github.com/pricewaze/ingest-cli/internal/outlier"
	"github.com/pricewaze/ingest-cli/internal/store"
	"github.com/pricewaze/ingest-cli/internal/trust"
)

// reviewThreshold is the duplicate confidence above which a non-exact match
// is logged for manual review.
const reviewThreshold = 60

// Pipeline wires the ingestion stages against one store.
type Pipeline struct {
	store      store.Store
	dedup      *dedup.Deduplicator
	validator  *outlier.Validator
	marketCode string
	maxWorkers int
}

// New builds a pipeline. cfg supplies the default market code and the
// normalization concurrency.
func New(st store.Store, rules *config.Rules, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		store:      st,
		dedup:      dedup.New(st),
		validator:  outlier.New(rules, st),
		marketCode: cfg.MarketCode,
		maxWorkers: cfg.MaxConcurrent,
	}
}

// Ingest processes one batch. Duplicate handling, dry-run, and update
// semantics follow the request options; outliers are persisted with pending
// status so they park for review instead of polluting active data.
func (pl *Pipeline) Ingest(ctx context.Context, req model.IngestRequest) *model.IngestResult {
	start := time.Now()
	market := req.MarketCode
	if market == "" {
		market = pl.marketCode
	}

	result := &model.IngestResult{
		Success:       true,
		TotalReceived: len(req.Properties),
		DryRun:        req.Options.DryRun,
	}

	normalized, failed := normalize.Batch(ctx, req.Properties, pl.maxWorkers)
	for _, f := range failed {
		result.Failed++
		result.Errors = append(result.Errors, model.IngestError{
			Index:    f.Index,
			SourceID: f.Raw.SourceID,
			Message:  eris.ToString(f.Err, false),
		})
	}

	// Records run in submission order so duplicates within one batch are
	// caught against earlier inserts.
	for _, item := range normalized {
		if err := pl.processRecord(ctx, req, item, market, result); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, model.IngestError{
				Index:    item.Index,
				SourceID: req.Properties[item.Index].SourceID,
				Message:  eris.ToString(err, false),
			})
			zap.L().Error("record processing failed",
				zap.Int("index", item.Index), zap.Error(err))
		}
	}

	result.Success = result.Failed == 0
	zap.L().Info("ingest completed",
		zap.String("source", string(req.Source)),
		zap.Int("received", result.TotalReceived),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func (pl *Pipeline) processRecord(
	ctx context.Context,
	req model.IngestRequest,
	item normalize.Normalized,
	market string,
	result *model.IngestResult,
) error {
	p := item.Property
	sourceID := req.Properties[item.Index].SourceID

	if len(item.Warnings) > 0 {
		zap.L().Warn("record accepted with warnings",
			zap.Int("index", item.Index),
			zap.Strings("warnings", item.Warnings))
	}

	// Re-submissions of a known source id update in place when requested.
	if req.Options.UpdateExisting && sourceID != "" {
		existingID, err := pl.dedup.FindBySourceID(ctx, req.SourceLabel(), sourceID)
		if err != nil {
			zap.L().Warn("source id lookup failed", zap.Error(err))
		} else if existingID != "" {
			return pl.upsert(ctx, req, item, market, existingID, result)
		}
	}

	if req.Options.SkipDup() {
		if matches := pl.dedup.FindDuplicates(ctx, &p); len(matches) > 0 {
			best := matches[0]
			if best.MatchType == dedup.MatchExact && best.Confidence >= 80 {
				result.Skipped++
				result.Errors = append(result.Errors, model.IngestError{
					Index:    item.Index,
					SourceID: sourceID,
					Message:  fmt.Sprintf("duplicate of %s (%d%% confidence)", best.PropertyID, best.Confidence),
				})
				return nil
			}
			if best.Confidence >= reviewThreshold {
				zap.L().Info("potential duplicate",
					zap.Int("index", item.Index),
					zap.String("match_id", best.PropertyID),
					zap.Int("confidence", best.Confidence),
					zap.Strings("evidence", best.Evidence))
			}
		}
	}

	return pl.upsert(ctx, req, item, market, "", result)
}

// upsert validates, scores, tags, and persists one record. A non-empty
// existingID turns the insert into an in-place update.
func (pl *Pipeline) upsert(
	ctx context.Context,
	req model.IngestRequest,
	item normalize.Normalized,
	market string,
	existingID string,
	result *model.IngestResult,
) error {
	p := item.Property
	p.ID = existingID

	check := pl.validator.Validate(ctx, &p, market)
	// Batch ingestion carries no supporting documents.
	p.TrustScore = trust.Score(&p, req.Source, check.Penalty, false, time.Now())
	pl.tagSource(&p, req.SourceLabel(), req.Properties[item.Index].SourceID)
	p.Status = model.StatusActive
	if check.IsOutlier {
		p.Status = model.StatusPending
	}

	if req.Options.DryRun {
		result.TotalProcessed++
		zap.L().Info("dry run: would persist record",
			zap.Int("index", item.Index),
			zap.String("title", p.Title),
			zap.Float64("trust_score", p.TrustScore),
			zap.Bool("is_outlier", check.IsOutlier))
		return nil
	}

	if existingID != "" {
		if err := pl.store.UpdateProperty(ctx, &p); err != nil {
			return eris.Wrap(err, "pipeline: update record")
		}
		result.Updated++
		result.TotalProcessed++
		return nil
	}

	id, err := pl.store.InsertProperty(ctx, &p)
	if err != nil {
		return eris.Wrap(err, "pipeline: insert record")
	}
	result.Created++
	result.TotalProcessed++
	result.CreatedIDs = append(result.CreatedIDs, id)

	if check.IsOutlier {
		zap.L().Warn("outlier record parked for review",
			zap.String("property_id", id),
			zap.Strings("reasons", check.Reasons))
	}
	return nil
}

// tagSource embeds the source tag in the description so provenance survives
// without a schema change.
func (pl *Pipeline) tagSource(p *model.Property, sourceName, sourceID string) {
	desc := ""
	if p.Description != nil {
		desc = *p.Description
	}
	if tagged := dedup.AddSourceTracking(desc, sourceName, sourceID); tagged != "" {
		p.Description = &tagged
	}
}
