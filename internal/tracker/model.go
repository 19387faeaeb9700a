package tracker

import "time"

// ─── Domain model ────────────────────────────────────────────────────────────

// Application is a user's tracked pursuit of one job posting.
// At most one Application exists per (UserID, JobID) pair; the store enforces
// the constraint so concurrent duplicate creates cannot slip through.
type Application struct {
	ID             string               `json:"id"`
	UserID         string               `json:"userId"`
	JobID          string               `json:"jobId"`
	Status         Status               `json:"status"`
	StatusHistory  []StatusHistoryEntry `json:"statusHistory"`
	AppliedDate    *time.Time           `json:"appliedDate,omitempty"`
	InterviewDates []time.Time          `json:"interviewDates"`
	Notes          *string              `json:"notes,omitempty"`
	ReminderDate   *time.Time           `json:"reminderDate,omitempty"`
	FollowUpDate   *time.Time           `json:"followUpDate,omitempty"`
	OfferDetails   *OfferDetails        `json:"offerDetails,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// StatusHistoryEntry is one element of the append-only status log.
// Insertion order is chronological order; the last entry always matches the
// application's current status.
type StatusHistoryEntry struct {
	Status Status    `json:"status"`
	Date   time.Time `json:"date"`
	Notes  *string   `json:"notes,omitempty"`
}

// OfferDetails captures the terms of a received offer. It is set when an
// offer arrives and is not cleared by later transitions.
type OfferDetails struct {
	Salary    *int       `json:"salary,omitempty"`
	Benefits  *string    `json:"benefits,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Remote    *bool      `json:"remote,omitempty"`
}

// Job is the read-only slice of a job posting this service consumes for
// display joins and metrics grouping. Owned by the catalog service.
type Job struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Company         string `json:"company"`
	Location        string `json:"location"`
	EmploymentType  string `json:"employmentType"`
	SalaryMin       *int   `json:"salaryMin,omitempty"`
	SalaryMax       *int   `json:"salaryMax,omitempty"`
	VisaSponsorship *bool  `json:"visaSponsorship,omitempty"`
}

// ApplicationWithJob pairs an application with its denormalized job posting.
// Job is nil when the posting is no longer present in the catalog.
type ApplicationWithJob struct {
	Application `json:"application"`
	Job         *Job `json:"job,omitempty"`
}

// ─── Read views ──────────────────────────────────────────────────────────────

// Timeline is the full status story of one application.
type Timeline struct {
	Application   *Application         `json:"application"`
	Entries       []StatusHistoryEntry `json:"timeline"`
	CurrentStatus Status               `json:"currentStatus"`
	NextSteps     []string             `json:"nextSteps"`
}

// UpcomingInterview is one scheduled interview occurrence inside the lookup
// window. An application with several qualifying dates yields one record per
// date.
type UpcomingInterview struct {
	ApplicationID string    `json:"applicationId"`
	JobID         string    `json:"jobId"`
	JobTitle      string    `json:"jobTitle"`
	Company       string    `json:"company"`
	InterviewDate time.Time `json:"interviewDate"`
	DaysUntil     int       `json:"daysUntil"`
	Notes         *string   `json:"notes,omitempty"`
	Location      string    `json:"location"`
	Status        Status    `json:"status"`
}

// ─── Metrics ─────────────────────────────────────────────────────────────────

// Metrics is the per-user aggregate over the whole application set.
// Every rate is an integer percentage in [0, 100]; an empty application set
// degrades every field to zero rather than erroring.
type Metrics struct {
	TotalApplications   int             `json:"totalApplications"`
	ResponseRate        int             `json:"responseRate"`
	AverageResponseTime int             `json:"averageResponseTime"`
	InterviewRate       int             `json:"interviewRate"`
	OfferRate           int             `json:"offerRate"`
	ByCompany           []CompanyStats  `json:"byCompany"`
	ByJobType           []JobTypeStats  `json:"byJobType"`
	TimeToInterview     TimeToInterview `json:"timeToInterview"`
}

// CompanyStats is the per-company breakdown (top 10 by application count).
type CompanyStats struct {
	Company      string `json:"company"`
	Applications int    `json:"applications"`
	Interviews   int    `json:"interviews"`
	Offers       int    `json:"offers"`
	ResponseRate int    `json:"responseRate"`
}

// JobTypeStats is the per-employment-type breakdown.
type JobTypeStats struct {
	JobType      string `json:"jobType"`
	Applications int    `json:"applications"`
	SuccessRate  int    `json:"successRate"`
}

// TimeToInterview summarizes the days between applying and the first
// interview stage, in whole days.
type TimeToInterview struct {
	Average int `json:"average"`
	Fastest int `json:"fastest"`
	Slowest int `json:"slowest"`
}
