package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates the application lifecycle business logic.
// It has no dependency on net/http — it can be used by any transport layer.
// The store and catalog are injected so tests can substitute them.
type Service struct {
	store    RecordStore
	jobs     JobCatalog
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewService returns a configured Service. cacheTTL bounds how long a
// computed metrics aggregate may be served from Redis.
func NewService(store RecordStore, jobs JobCatalog, rdb *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{store: store, jobs: jobs, rdb: rdb, cacheTTL: cacheTTL}
}

// ─── Create ──────────────────────────────────────────────────────────────────

// CreateParams carries the caller-supplied fields for a new application.
// Status defaults to APPLIED when empty.
type CreateParams struct {
	JobID          string
	Status         string
	Notes          *string
	InterviewDates []time.Time
	ReminderDate   *time.Time
	FollowUpDate   *time.Time
}

// Create records a new application for userID against the given job posting.
// Returns ErrJobNotFound when the posting is missing from the catalog and
// ErrDuplicate when the user already tracks this job. The store's uniqueness
// constraint on (userID, jobID) is the authoritative guard against two
// concurrent creates; the pre-check here only produces the friendlier error
// in the common case.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (*Application, error) {
	if p.JobID == "" {
		return nil, &ValidationError{Msg: "jobId is required"}
	}

	status := StatusApplied
	if p.Status != "" {
		parsed, err := ParseStatus(p.Status)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		status = parsed
	}

	if _, err := s.jobs.Lookup(ctx, p.JobID); err != nil {
		return nil, err
	}

	if _, err := s.store.FindByOwnerAndJob(ctx, userID, p.JobID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("create precheck: %w", err)
	}

	now := time.Now().UTC()
	app := &Application{
		UserID:         userID,
		JobID:          p.JobID,
		Status:         status,
		StatusHistory:  []StatusHistoryEntry{{Status: status, Date: now, Notes: p.Notes}},
		InterviewDates: p.InterviewDates,
		ReminderDate:   p.ReminderDate,
		FollowUpDate:   p.FollowUpDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Notes != nil {
		app.Notes = p.Notes
	}
	if status == StatusApplied {
		app.AppliedDate = &now
	}

	if err := s.store.Insert(ctx, app); err != nil {
		return nil, err
	}

	s.publish(ctx, "EVENT_APPLICATION_CREATED", map[string]string{
		"type":          "EVENT_APPLICATION_CREATED",
		"applicationId": app.ID,
		"userId":        userID,
		"jobId":         p.JobID,
		"status":        string(status),
	})
	s.invalidateMetrics(ctx, userID)

	return app, nil
}

// ─── Update ──────────────────────────────────────────────────────────────────

// UpdateParams carries a status change and/or field-only updates. Nil fields
// are left untouched. When Notes accompanies a status change the note is
// attached to the new history entry instead of the bare notes field.
type UpdateParams struct {
	NewStatus      *string
	Notes          *string
	InterviewDates []time.Time
	ReminderDate   *time.Time
	FollowUpDate   *time.Time
	OfferDetails   *OfferDetails
}

// UpdateStatus applies p to the application as one atomic read-modify-write.
// A rejected transition returns *InvalidTransitionError and leaves the record
// untouched. The first accepted transition into APPLIED stamps AppliedDate;
// it is never overwritten afterwards.
func (s *Service) UpdateStatus(ctx context.Context, userID, id string, p UpdateParams) (*Application, error) {
	var newStatus *Status
	if p.NewStatus != nil {
		parsed, err := ParseStatus(*p.NewStatus)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		newStatus = &parsed
	}

	var from Status
	app, err := s.store.UpdateByOwnerAndID(ctx, userID, id, func(a *Application) error {
		now := time.Now().UTC()

		if newStatus != nil {
			from = a.Status
			if err := ValidateTransition(a.Status, *newStatus); err != nil {
				return err
			}
			a.StatusHistory = append(a.StatusHistory, StatusHistoryEntry{
				Status: *newStatus,
				Date:   now,
				Notes:  p.Notes,
			})
			a.Status = *newStatus
			if *newStatus == StatusApplied && a.AppliedDate == nil {
				a.AppliedDate = &now
			}
		} else if p.Notes != nil {
			a.Notes = p.Notes
		}

		if p.InterviewDates != nil {
			a.InterviewDates = p.InterviewDates
		}
		if p.ReminderDate != nil {
			a.ReminderDate = p.ReminderDate
		}
		if p.FollowUpDate != nil {
			a.FollowUpDate = p.FollowUpDate
		}
		if p.OfferDetails != nil {
			a.OfferDetails = p.OfferDetails
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newStatus != nil {
		s.publish(ctx, "EVENT_STATUS_CHANGED", map[string]string{
			"type":          "EVENT_STATUS_CHANGED",
			"applicationId": app.ID,
			"userId":        userID,
			"from":          string(from),
			"to":            string(*newStatus),
		})
	}
	s.invalidateMetrics(ctx, userID)

	return app, nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Timeline returns the application with its status history in chronological
// order and the suggested next steps for the current status.
func (s *Service) Timeline(ctx context.Context, userID, id string) (*Timeline, error) {
	app, err := s.store.FindByOwnerAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusHistoryEntry, len(app.StatusHistory))
	copy(entries, app.StatusHistory)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	return &Timeline{
		Application:   app,
		Entries:       entries,
		CurrentStatus: app.Status,
		NextSteps:     nextStepsFor(app.Status),
	}, nil
}

// List returns one page of the user's applications joined with their job
// postings. The pagination envelope counts the store-level filters only;
// when a free-text search is supplied it is applied after the page is
// fetched, so the page may carry fewer than Limit items.
func (s *Service) List(ctx context.Context, userID string, f ListFilter, p PageRequest) (*Page, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.Normalize(); err != nil {
		return nil, err
	}

	total, err := s.store.CountByOwner(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list count: %w", err)
	}

	apps, err := s.store.ListByOwner(ctx, userID, f, p)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}

	items := s.joinJobs(ctx, apps)
	if f.Search != "" {
		items = filterBySearch(items, f.Search)
	}

	return &Page{Items: items, Pagination: newPagination(p, total)}, nil
}

// ListByJob returns the user's applications for one job posting, newest
// applied first. The uniqueness constraint caps the result at one element;
// the slice shape is kept for API symmetry with List.
func (s *Service) ListByJob(ctx context.Context, userID, jobID string) ([]Application, error) {
	if jobID == "" {
		return nil, &ValidationError{Msg: "jobId is required"}
	}
	return s.store.ListByOwnerAndJob(ctx, userID, jobID)
}

// ─── Delete ──────────────────────────────────────────────────────────────────

// Delete removes the application. Hard delete, owner-scoped.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteByOwnerAndID(ctx, userID, id); err != nil {
		return err
	}

	s.publish(ctx, "EVENT_APPLICATION_DELETED", map[string]string{
		"type":          "EVENT_APPLICATION_DELETED",
		"applicationId": id,
		"userId":        userID,
	})
	s.invalidateMetrics(ctx, userID)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// joinJobs attaches the catalog record to each application. A posting that
// has vanished from the catalog leaves Job nil; the application itself is
// still returned.
func (s *Service) joinJobs(ctx context.Context, apps []Application) []ApplicationWithJob {
	cache := make(map[string]*Job, len(apps))
	items := make([]ApplicationWithJob, 0, len(apps))
	for _, app := range apps {
		job, seen := cache[app.JobID]
		if !seen {
			var err error
			job, err = s.jobs.Lookup(ctx, app.JobID)
			if err != nil {
				job = nil
			}
			cache[app.JobID] = job
		}
		items = append(items, ApplicationWithJob{Application: app, Job: job})
	}
	return items
}

// publish sends a lifecycle event to Redis. Failures are non-fatal.
func (s *Service) publish(ctx context.Context, channel string, payload map[string]string) {
	event, _ := json.Marshal(payload)
	if err := s.rdb.Publish(ctx, channel, event).Err(); err != nil {
		slog.Warn("publish failed", "channel", channel, "err", err)
	}
}

// ─── Next steps ──────────────────────────────────────────────────────────────

var nextSteps = map[Status][]string{
	StatusSaved: {
		"Complete and submit your application before the posting closes",
		"Tailor your resume to the job description",
	},
	StatusApplied: {
		"Follow up with the recruiter after 1 week",
		"Research the company and team",
	},
	StatusInReview: {
		"Prepare for a potential screening call",
		"Review the role requirements again",
	},
	StatusInterviewScheduled: {
		"Confirm the interview time and location",
		"Research common interview questions for this role",
		"Prepare questions for the interviewer",
	},
	StatusInterviewed: {
		"Send a thank-you note within 24 hours",
		"Follow up if there is no response within 1 week",
	},
	StatusOfferReceived: {
		"Review the offer details carefully",
		"Negotiate salary and benefits if needed",
		"Compare against other pending offers",
	},
	StatusAccepted: {
		"Complete any pre-boarding paperwork",
		"Set a reminder for your start date",
	},
}

var genericNextSteps = []string{"Keep applying — the right opportunity is out there"}

// nextStepsFor returns the suggestion list for a status. Terminal statuses
// fall back to the generic suggestion.
func nextStepsFor(s Status) []string {
	if steps, ok := nextSteps[s]; ok {
		return steps
	}
	return genericNextSteps
}
