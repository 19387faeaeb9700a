package tracker

import (
	"context"
	"math"
	"sort"
	"time"
)

// ─── Upcoming interviews ─────────────────────────────────────────────────────

// DefaultInterviewWindowDays bounds the upcoming-interview lookup when the
// caller does not supply a window.
const DefaultInterviewWindowDays = 30

// UpcomingInterviews returns one record per interview date falling inside
// [now, now+windowDays] across the user's INTERVIEW_SCHEDULED and INTERVIEWED
// applications, ascending by date. Dates in the past or beyond the window are
// excluded entirely.
func (s *Service) UpcomingInterviews(ctx context.Context, userID string, windowDays int) ([]UpcomingInterview, error) {
	if windowDays <= 0 {
		windowDays = DefaultInterviewWindowDays
	}

	apps, err := s.store.ListAllByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, windowDays)

	upcoming := make([]UpcomingInterview, 0)
	for i := range apps {
		app := &apps[i]
		if app.Status != StatusInterviewScheduled && app.Status != StatusInterviewed {
			continue
		}

		var job *Job
		for _, date := range app.InterviewDates {
			if date.Before(now) || date.After(cutoff) {
				continue
			}
			if job == nil {
				job, _ = s.jobs.Lookup(ctx, app.JobID)
			}

			record := UpcomingInterview{
				ApplicationID: app.ID,
				JobID:         app.JobID,
				InterviewDate: date,
				DaysUntil:     int(math.Ceil(date.Sub(now).Hours() / 24)),
				Notes:         app.Notes,
				Status:        app.Status,
			}
			if job != nil {
				record.JobTitle = job.Title
				record.Company = job.Company
				record.Location = job.Location
			}
			upcoming = append(upcoming, record)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].InterviewDate.Before(upcoming[j].InterviewDate)
	})

	return upcoming, nil
}
