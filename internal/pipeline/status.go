package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pricewaze/ingest-cli/internal/model"
)

// SourceStats is the per-source slice of the status report.
type SourceStats struct {
	TotalActive   int            `json:"total_active"`
	PendingReview int            `json:"pending_review"`
	BySource      map[string]int `json:"by_source"`
}

// StatusReport summarizes pipeline state for operators.
type StatusReport struct {
	Status string      `json:"status"`
	Stats  SourceStats `json:"stats"`
}

// knownSources keeps the by-source map stable even for sources that have
// never submitted anything.
var knownSources = []model.Source{
	model.SourceUser, model.SourceScraper, model.SourceOpenData,
	model.SourceAPI, model.SourceImport, model.SourceSeed,
}

// Status reports active and pending counts plus a per-source breakdown
// parsed from the embedded source tags.
func (pl *Pipeline) Status(ctx context.Context) (*StatusReport, error) {
	active, err := pl.store.CountByStatus(ctx, model.StatusActive)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: count active")
	}
	pending, err := pl.store.CountByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: count pending")
	}
	counts, err := pl.store.SourceCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: source counts")
	}

	bySource := make(map[string]int, len(knownSources)+1)
	for _, s := range knownSources {
		bySource[string(s)] = 0
	}
	bySource["unknown"] = 0
	for source, n := range counts {
		if _, known := bySource[source]; known {
			bySource[source] = n
		} else {
			bySource["unknown"] += n
		}
	}

	return &StatusReport{
		Status: "healthy",
		Stats: SourceStats{
			TotalActive:   active,
			PendingReview: pending,
			BySource:      bySource,
		},
	}, nil
}
