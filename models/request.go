package models

import "strings"

// SearchRequest holds the query string of GET /api/scrape and /api/v1/scrape.
type SearchRequest struct {
	// Query is the free-text search term. Required.
	Query string `form:"query"`

	// Sources optionally restricts the scrape to a comma-separated list of
	// source IDs. Default: every configured source.
	Sources string `form:"sources"`

	// MaxAge, in seconds, accepts a cached aggregate younger than this.
	// Default: 0 (always scrape). Max: 3600.
	MaxAge int `form:"max_age" binding:"omitempty,min=0,max=3600"`
}

// SourceIDs splits Sources into trimmed, non-empty IDs.
func (r *SearchRequest) SourceIDs() []string {
	if r.Sources == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(r.Sources, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
