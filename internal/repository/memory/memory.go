// Package memory provides in-memory implementations of the tracker storage
// contracts. They back the service and transport tests, honoring the same
// semantics as the Postgres repository: uniqueness on (userID, jobID),
// owner-scoped lookups, and serialized read-modify-write updates.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobtrack/application-service/internal/tracker"
)

// ─── Record store ────────────────────────────────────────────────────────────

// Store is a mutex-guarded tracker.RecordStore.
type Store struct {
	mu   sync.Mutex
	apps map[string]*tracker.Application
}

var _ tracker.RecordStore = (*Store)(nil)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{apps: make(map[string]*tracker.Application)}
}

// Insert adds app, assigning an id when absent. Returns ErrDuplicate when the
// owner already has an application for the same job.
func (s *Store) Insert(ctx context.Context, app *tracker.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.apps {
		if existing.UserID == app.UserID && existing.JobID == app.JobID {
			return tracker.ErrDuplicate
		}
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	s.apps[app.ID] = cloneApp(app)
	return nil
}

func (s *Store) FindByOwnerAndID(ctx context.Context, userID, id string) (*tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok || app.UserID != userID {
		return nil, tracker.ErrNotFound
	}
	return cloneApp(app), nil
}

func (s *Store) FindByOwnerAndJob(ctx context.Context, userID, jobID string) (*tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, app := range s.apps {
		if app.UserID == userID && app.JobID == jobID {
			return cloneApp(app), nil
		}
	}
	return nil, tracker.ErrNotFound
}

// UpdateByOwnerAndID applies mutate under the store lock. A mutate error
// leaves the stored record untouched.
func (s *Store) UpdateByOwnerAndID(ctx context.Context, userID, id string, mutate func(*tracker.Application) error) (*tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok || app.UserID != userID {
		return nil, tracker.ErrNotFound
	}

	updated := cloneApp(app)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.apps[id] = updated
	return cloneApp(updated), nil
}

func (s *Store) DeleteByOwnerAndID(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok || app.UserID != userID {
		return tracker.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, userID string, f tracker.ListFilter, p tracker.PageRequest) ([]tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(userID, f)
	sortApps(matched, p.SortBy, p.SortOrder)

	start := p.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.Limit
	if p.Limit == 0 || end > len(matched) {
		end = len(matched)
	}

	page := make([]tracker.Application, 0, end-start)
	for _, app := range matched[start:end] {
		page = append(page, *cloneApp(app))
	}
	return page, nil
}

func (s *Store) CountByOwner(ctx context.Context, userID string, f tracker.ListFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matchLocked(userID, f)), nil
}

func (s *Store) ListByOwnerAndJob(ctx context.Context, userID, jobID string) ([]tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(userID, tracker.ListFilter{JobID: jobID})
	sortApps(matched, tracker.SortByAppliedDate, tracker.SortDesc)

	apps := make([]tracker.Application, 0, len(matched))
	for _, app := range matched {
		apps = append(apps, *cloneApp(app))
	}
	return apps, nil
}

func (s *Store) ListAllByOwner(ctx context.Context, userID string) ([]tracker.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps := make([]tracker.Application, 0)
	for _, app := range s.apps {
		if app.UserID == userID {
			apps = append(apps, *cloneApp(app))
		}
	}
	return apps, nil
}

// matchLocked applies the store-level filters (status, job, applied-date
// range). The free-text search is a service concern and is ignored here.
func (s *Store) matchLocked(userID string, f tracker.ListFilter) []*tracker.Application {
	matched := make([]*tracker.Application, 0)
	for _, app := range s.apps {
		if app.UserID != userID {
			continue
		}
		if f.Status != nil && app.Status != *f.Status {
			continue
		}
		if f.JobID != "" && app.JobID != f.JobID {
			continue
		}
		if f.StartDate != nil && (app.AppliedDate == nil || app.AppliedDate.Before(*f.StartDate)) {
			continue
		}
		if f.EndDate != nil && (app.AppliedDate == nil || app.AppliedDate.After(*f.EndDate)) {
			continue
		}
		matched = append(matched, app)
	}
	return matched
}

func sortApps(apps []*tracker.Application, sortBy, order string) {
	timeKey := func(a *tracker.Application) time.Time {
		switch sortBy {
		case tracker.SortByCreatedAt:
			return a.CreatedAt
		case tracker.SortByUpdatedAt:
			return a.UpdatedAt
		default:
			if a.AppliedDate != nil {
				return *a.AppliedDate
			}
			return time.Time{}
		}
	}

	sort.SliceStable(apps, func(i, j int) bool {
		if order == tracker.SortDesc {
			i, j = j, i
		}
		if sortBy == tracker.SortByStatus {
			return apps[i].Status < apps[j].Status
		}
		return timeKey(apps[i]).Before(timeKey(apps[j]))
	})
}

func cloneApp(a *tracker.Application) *tracker.Application {
	cp := *a
	cp.StatusHistory = append([]tracker.StatusHistoryEntry(nil), a.StatusHistory...)
	cp.InterviewDates = append([]time.Time(nil), a.InterviewDates...)
	cp.AppliedDate = cloneTime(a.AppliedDate)
	cp.ReminderDate = cloneTime(a.ReminderDate)
	cp.FollowUpDate = cloneTime(a.FollowUpDate)
	if a.Notes != nil {
		n := *a.Notes
		cp.Notes = &n
	}
	if a.OfferDetails != nil {
		od := *a.OfferDetails
		cp.OfferDetails = &od
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// ─── Job catalog ─────────────────────────────────────────────────────────────

// Catalog is a fixed in-memory tracker.JobCatalog.
type Catalog struct {
	mu   sync.RWMutex
	jobs map[string]tracker.Job
}

var _ tracker.JobCatalog = (*Catalog)(nil)

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{jobs: make(map[string]tracker.Job)}
}

// Add registers or replaces a posting.
func (c *Catalog) Add(job tracker.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.ID] = job
}

func (c *Catalog) Lookup(ctx context.Context, jobID string) (*tracker.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return nil, tracker.ErrJobNotFound
	}
	return &job, nil
}
