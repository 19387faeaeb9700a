package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtrack/application-service/internal/tracker"
)

// JobCatalog implements tracker.JobCatalog over the jobs table owned by the
// catalog service. Read-only from this service.
type JobCatalog struct {
	pool *pgxpool.Pool
}

var _ tracker.JobCatalog = (*JobCatalog)(nil)

// NewJobCatalog returns a Postgres-backed job catalog view.
func NewJobCatalog(pool *pgxpool.Pool) *JobCatalog {
	return &JobCatalog{pool: pool}
}

// Lookup fetches one posting, returning tracker.ErrJobNotFound when absent.
func (c *JobCatalog) Lookup(ctx context.Context, jobID string) (*tracker.Job, error) {
	var job tracker.Job
	err := c.pool.QueryRow(ctx,
		`SELECT id, title, company, COALESCE(location, ''),
		        COALESCE(employment_type, ''), salary_min, salary_max,
		        visa_sponsorship
		 FROM jobs
		 WHERE id = $1`,
		jobID,
	).Scan(
		&job.ID, &job.Title, &job.Company, &job.Location,
		&job.EmploymentType, &job.SalaryMin, &job.SalaryMax,
		&job.VisaSponsorship,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracker.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup job: %w", err)
	}
	return &job, nil
}
