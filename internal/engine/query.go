package engine

import (
	"github.com/roach88/chainledger/internal/core"
)

// QueryFilters narrows a query. Zero values mean "no filter".
type QueryFilters struct {
	Stream string `json:"stream,omitempty"`
	ID     string `json:"id,omitempty"`

	// TimestampFrom and TimestampTo bound the record timestamp, inclusive.
	TimestampFrom *uint64 `json:"timestamp_from,omitempty"`
	TimestampTo   *uint64 `json:"timestamp_to,omitempty"`

	// ModuleFilters is handed to every started module's Query. Modules
	// only run when it is non-empty.
	ModuleFilters map[string]any `json:"module_filters,omitempty"`

	Offset int `json:"offset,omitempty"`
	// Limit <= 0 returns every match after Offset.
	Limit int `json:"limit,omitempty"`
}

// QueryResult is one page of matches.
type QueryResult struct {
	Records []core.Record `json:"records" yaml:"records"`
	// Total counts matches before pagination.
	Total   int  `json:"total" yaml:"total"`
	HasMore bool `json:"has_more" yaml:"has_more"`
}

// Query filters by stream, id, timestamp range and module filters, in
// that order, then paginates. Returned records are copies.
func (e *Engine) Query(f QueryFilters) QueryResult {
	records := make([]core.Record, 0)
	for _, entry := range e.state.Entries() {
		r := entry.Record
		if f.Stream != "" && r.Stream != f.Stream {
			continue
		}
		if f.ID != "" && r.ID != f.ID {
			continue
		}
		if f.TimestampFrom != nil && r.Timestamp < *f.TimestampFrom {
			continue
		}
		if f.TimestampTo != nil && r.Timestamp > *f.TimestampTo {
			continue
		}
		records = append(records, r)
	}

	if len(f.ModuleFilters) > 0 {
		records = e.registry.RunQuery(records, f.ModuleFilters)
	}

	total := len(records)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if f.Limit > 0 && offset+f.Limit < total {
		end = offset + f.Limit
	}

	page := make([]core.Record, 0, end-offset)
	for _, r := range records[offset:end] {
		page = append(page, r.Clone())
	}

	return QueryResult{
		Records: page,
		Total:   total,
		HasMore: end < total,
	}
}
