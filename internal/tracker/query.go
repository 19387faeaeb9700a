package tracker

import (
	"fmt"
	"strings"
	"time"
)

// ─── List filtering and pagination ───────────────────────────────────────────

// ListFilter narrows a list query. Status, JobID and the date range are
// applied by the store; Search is matched post-fetch against the joined job's
// title and company, since it spans a foreign entity.
type ListFilter struct {
	Status    *Status
	JobID     string
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
}

// Validate rejects filter combinations the store cannot honor.
func (f *ListFilter) Validate() error {
	if f.Status != nil {
		if _, err := ParseStatus(string(*f.Status)); err != nil {
			return &ValidationError{Msg: err.Error()}
		}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return &ValidationError{Msg: "endDate must not be before startDate"}
	}
	return nil
}

// Recognized sort fields for list queries.
const (
	SortByAppliedDate = "appliedDate"
	SortByCreatedAt   = "createdAt"
	SortByUpdatedAt   = "updatedAt"
	SortByStatus      = "status"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	defaultLimit = 20
	maxLimit     = 100
)

// PageRequest shapes a list query. Zero values mean "use the default";
// anything else outside the recognized set is rejected rather than coerced.
type PageRequest struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Normalize applies defaults and caps in place, returning a ValidationError
// for unrecognized options.
func (p *PageRequest) Normalize() error {
	switch {
	case p.Page == 0:
		p.Page = 1
	case p.Page < 0:
		return &ValidationError{Msg: "page must be >= 1"}
	}

	switch {
	case p.Limit == 0:
		p.Limit = defaultLimit
	case p.Limit < 0:
		return &ValidationError{Msg: "limit must be >= 1"}
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}

	switch p.SortBy {
	case "":
		p.SortBy = SortByAppliedDate
	case SortByAppliedDate, SortByCreatedAt, SortByUpdatedAt, SortByStatus:
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown sort field %q", p.SortBy)}
	}

	switch p.SortOrder {
	case "":
		p.SortOrder = SortDesc
	case SortAsc, SortDesc:
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown sort order %q", p.SortOrder)}
	}

	return nil
}

// Offset is the number of records to skip for the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the envelope returned alongside a page of results. It is
// computed from the store-level filters only: the free-text search filter
// runs after pagination, so a page may carry fewer than Limit items.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func newPagination(p PageRequest, total int) Pagination {
	totalPages := (total + p.Limit - 1) / p.Limit
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// Page is one page of list results joined with their job postings.
type Page struct {
	Items      []ApplicationWithJob `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// filterBySearch keeps items whose joined job title or company contains the
// term, case-insensitively. Items without a resolvable job never match.
func filterBySearch(items []ApplicationWithJob, term string) []ApplicationWithJob {
	term = strings.ToLower(term)
	kept := make([]ApplicationWithJob, 0, len(items))
	for _, it := range items {
		if it.Job == nil {
			continue
		}
		if strings.Contains(strings.ToLower(it.Job.Title), term) ||
			strings.Contains(strings.ToLower(it.Job.Company), term) {
			kept = append(kept, it)
		}
	}
	return kept
}
