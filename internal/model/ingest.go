package model

// IngestOptions control batch ingestion behavior.
type IngestOptions struct {
	// SkipDuplicates defaults to true when omitted; use SkipDup.
	SkipDuplicates *bool `json:"skip_duplicates,omitempty"`
	UpdateExisting bool  `json:"update_existing,omitempty"`
	DryRun         bool  `json:"dry_run,omitempty"`
}

// SkipDup reports whether exact duplicates should be skipped. The zero
// options value skips duplicates.
func (o IngestOptions) SkipDup() bool {
	return o.SkipDuplicates == nil || *o.SkipDuplicates
}

// IngestRequest is one batch submission from a source adapter.
type IngestRequest struct {
	Source     Source        `json:"source"`
	SourceName string        `json:"source_name,omitempty"`
	MarketCode string        `json:"market_code,omitempty"`
	Properties []RawProperty `json:"properties"`
	Options    IngestOptions `json:"options,omitempty"`
}

// SourceLabel is the namespace for source-id tracking tags: the adapter's
// name when provided, otherwise the source kind. Two adapters of the same
// kind keep separate id spaces.
func (r IngestRequest) SourceLabel() string {
	if r.SourceName != "" {
		return r.SourceName
	}
	return string(r.Source)
}

// IngestError records one failed record with enough context to trace it back
// to the submitted batch.
type IngestError struct {
	Index    int    `json:"index"`
	SourceID string `json:"source_id,omitempty"`
	Message  string `json:"message"`
}

// IngestResult is the per-batch accounting report. Every submitted record is
// counted exactly once across created, updated, skipped, and failed.
type IngestResult struct {
	Success        bool          `json:"success"`
	TotalReceived  int           `json:"total_received"`
	TotalProcessed int           `json:"total_processed"`
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	Errors         []IngestError `json:"errors,omitempty"`
	CreatedIDs     []string      `json:"created_ids,omitempty"`
	DryRun         bool          `json:"dry_run,omitempty"`
}
