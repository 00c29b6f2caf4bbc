package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout renders capture timestamps as ISO-8601 in UTC with
// millisecond precision, e.g. 2026-10-19T08:15:04.123Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SourceResult is the settled outcome of one source's retry-wrapped pipeline.
//
// Err == nil means success; Products may still be empty when the page loaded
// but no product containers rendered in time.
type SourceResult struct {
	Source   string
	Products []ProductRecord
	Err      error
	Attempts int
	Duration time.Duration
}

// OK reports whether the source produced a result rather than a failure.
func (r SourceResult) OK() bool { return r.Err == nil }

// Reason returns the retained failure reason, or "" for successful sources.
func (r SourceResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// AggregateResult is the merged outcome of one query across all sources.
// It is built once by the orchestrator and not mutated afterwards.
type AggregateResult struct {
	ID         string
	Query      string
	Sources    []string // configured order
	Results    map[string]SourceResult
	CapturedAt time.Time
}

// NewAggregateResult folds settled source results into an AggregateResult.
// Failed sources keep their error for diagnostics and contribute no products.
func NewAggregateResult(id, query string, results []SourceResult, capturedAt time.Time) *AggregateResult {
	agg := &AggregateResult{
		ID:         id,
		Query:      query,
		Sources:    make([]string, 0, len(results)),
		Results:    make(map[string]SourceResult, len(results)),
		CapturedAt: capturedAt.UTC(),
	}
	for _, r := range results {
		if !r.OK() || r.Products == nil {
			r.Products = []ProductRecord{}
		}
		agg.Sources = append(agg.Sources, r.Source)
		agg.Results[r.Source] = r
	}
	return agg
}

// Products returns the product sequence for a source; failures yield an empty slice.
func (a *AggregateResult) Products(source string) []ProductRecord {
	r, ok := a.Results[source]
	if !ok || r.Products == nil {
		return []ProductRecord{}
	}
	return r.Products
}

// Failures maps each failed source to its failure reason.
func (a *AggregateResult) Failures() map[string]string {
	out := make(map[string]string)
	for _, id := range a.Sources {
		if r := a.Results[id]; !r.OK() {
			out[id] = r.Reason()
		}
	}
	return out
}

// ErrorSummary joins the failure reasons as "source: reason; ..." in source order.
func (a *AggregateResult) ErrorSummary() string {
	var parts []string
	for _, id := range a.Sources {
		if r := a.Results[id]; !r.OK() {
			parts = append(parts, id+": "+r.Reason())
		}
	}
	return strings.Join(parts, "; ")
}

// Total returns the number of products across all sources.
func (a *AggregateResult) Total() int {
	n := 0
	for _, r := range a.Results {
		n += len(r.Products)
	}
	return n
}

// MarshalJSON renders the user-facing payload:
//
//	{"<source>": [...], ..., "timestamp": "...", "error": "..."}
//
// Source keys appear in configured order; "error" is present only when at
// least one source failed.
func (a *AggregateResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, id := range a.Sources {
		if err := writeMember(&buf, id, a.Products(id)); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := writeMember(&buf, "timestamp", a.CapturedAt.UTC().Format(TimestampLayout)); err != nil {
		return nil, err
	}
	if summary := a.ErrorSummary(); summary != "" {
		buf.WriteByte(',')
		if err := writeMember(&buf, "error", summary); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
