// Package postgres implements the tracker storage contracts against
// PostgreSQL via pgx. The applications table carries a UNIQUE (user_id,
// job_id) index; it — not the service-level pre-check — is what closes the
// concurrent create/create race.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtrack/application-service/internal/tracker"
)

// psql builds queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const appColumns = `id, user_id, job_id, status, status_history, applied_date,
	interview_dates, notes, reminder_date, follow_up_date, offer_details,
	created_at, updated_at`

var appColumnList = []string{
	"id", "user_id", "job_id", "status", "status_history", "applied_date",
	"interview_dates", "notes", "reminder_date", "follow_up_date",
	"offer_details", "created_at", "updated_at",
}

// sortColumns maps the API sort fields onto table columns.
var sortColumns = map[string]string{
	tracker.SortByAppliedDate: "applied_date",
	tracker.SortByCreatedAt:   "created_at",
	tracker.SortByUpdatedAt:   "updated_at",
	tracker.SortByStatus:      "status",
}

// ApplicationStore implements tracker.RecordStore.
type ApplicationStore struct {
	pool *pgxpool.Pool
}

var _ tracker.RecordStore = (*ApplicationStore)(nil)

// NewApplicationStore returns a Postgres-backed record store.
func NewApplicationStore(pool *pgxpool.Pool) *ApplicationStore {
	return &ApplicationStore{pool: pool}
}

// Insert persists a new application, assigning its id. A unique-constraint
// violation on (user_id, job_id) surfaces as tracker.ErrDuplicate.
func (s *ApplicationStore) Insert(ctx context.Context, app *tracker.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	history, interviews, offer, err := marshalJSONFields(app)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO applications
		   (id, user_id, job_id, status, status_history, applied_date,
		    interview_dates, notes, reminder_date, follow_up_date,
		    offer_details, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		app.ID, app.UserID, app.JobID, string(app.Status), history,
		app.AppliedDate, interviews, app.Notes, app.ReminderDate,
		app.FollowUpDate, offer, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return tracker.ErrDuplicate
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// FindByOwnerAndID returns the application, validating ownership.
func (s *ApplicationStore) FindByOwnerAndID(ctx context.Context, userID, id string) (*tracker.Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanApplication(row)
}

// FindByOwnerAndJob returns the owner's application for one job posting.
func (s *ApplicationStore) FindByOwnerAndJob(ctx context.Context, userID, jobID string) (*tracker.Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications WHERE user_id = $1 AND job_id = $2`,
		userID, jobID,
	)
	return scanApplication(row)
}

// UpdateByOwnerAndID runs mutate inside a transaction that holds a row lock,
// so two racing updates for one application serialize instead of losing one.
func (s *ApplicationStore) UpdateByOwnerAndID(ctx context.Context, userID, id string, mutate func(*tracker.Application) error) (*tracker.Application, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`,
		id, userID,
	)
	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(app); err != nil {
		return nil, err
	}

	history, interviews, offer, err := marshalJSONFields(app)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE applications
		 SET status = $1, status_history = $2, applied_date = $3,
		     interview_dates = $4, notes = $5, reminder_date = $6,
		     follow_up_date = $7, offer_details = $8, updated_at = $9
		 WHERE id = $10`,
		string(app.Status), history, app.AppliedDate, interviews, app.Notes,
		app.ReminderDate, app.FollowUpDate, offer, app.UpdatedAt, app.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return app, nil
}

// DeleteByOwnerAndID hard-deletes the application.
func (s *ApplicationStore) DeleteByOwnerAndID(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM applications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tracker.ErrNotFound
	}
	return nil
}

// ListByOwner returns one page under the store-level filters.
func (s *ApplicationStore) ListByOwner(ctx context.Context, userID string, f tracker.ListFilter, p tracker.PageRequest) ([]tracker.Application, error) {
	dir := "ASC"
	if p.SortOrder == tracker.SortDesc {
		dir = "DESC"
	}

	query := filtered(psql.Select(appColumnList...).From("applications"), userID, f).
		OrderBy(sortColumns[p.SortBy] + " " + dir + " NULLS LAST").
		Limit(uint64(p.Limit)).
		Offset(uint64(p.Offset()))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return s.queryApplications(ctx, sql, args)
}

// CountByOwner counts records under the store-level filters.
func (s *ApplicationStore) CountByOwner(ctx context.Context, userID string, f tracker.ListFilter) (int, error) {
	sql, args, err := filtered(psql.Select("COUNT(*)").From("applications"), userID, f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return total, nil
}

// ListByOwnerAndJob returns the owner's applications for one job posting,
// newest applied first.
func (s *ApplicationStore) ListByOwnerAndJob(ctx context.Context, userID, jobID string) ([]tracker.Application, error) {
	return s.queryApplications(ctx,
		`SELECT `+appColumns+` FROM applications
		 WHERE user_id = $1 AND job_id = $2
		 ORDER BY applied_date DESC NULLS LAST`,
		[]any{userID, jobID},
	)
}

// ListAllByOwner returns the owner's entire application set.
func (s *ApplicationStore) ListAllByOwner(ctx context.Context, userID string) ([]tracker.Application, error) {
	return s.queryApplications(ctx,
		`SELECT `+appColumns+` FROM applications WHERE user_id = $1`,
		[]any{userID},
	)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// filtered applies the store-level list filters to a squirrel builder. The
// free-text search is deliberately absent: it spans the job catalog and runs
// in the service after the page is fetched.
func filtered(b sq.SelectBuilder, userID string, f tracker.ListFilter) sq.SelectBuilder {
	b = b.Where(sq.Eq{"user_id": userID})
	if f.Status != nil {
		b = b.Where(sq.Eq{"status": string(*f.Status)})
	}
	if f.JobID != "" {
		b = b.Where(sq.Eq{"job_id": f.JobID})
	}
	if f.StartDate != nil {
		b = b.Where(sq.GtOrEq{"applied_date": *f.StartDate})
	}
	if f.EndDate != nil {
		b = b.Where(sq.LtOrEq{"applied_date": *f.EndDate})
	}
	return b
}

func (s *ApplicationStore) queryApplications(ctx context.Context, sql string, args []any) ([]tracker.Application, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := make([]tracker.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func scanApplication(row pgx.Row) (*tracker.Application, error) {
	var (
		a          tracker.Application
		status     string
		history    []byte
		interviews []byte
		offer      []byte
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.JobID, &status, &history, &a.AppliedDate,
		&interviews, &a.Notes, &a.ReminderDate, &a.FollowUpDate, &offer,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	a.Status = tracker.Status(status)
	if err := json.Unmarshal(history, &a.StatusHistory); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	a.InterviewDates = []time.Time{}
	if len(interviews) > 0 {
		if err := json.Unmarshal(interviews, &a.InterviewDates); err != nil {
			return nil, fmt.Errorf("decode interview dates: %w", err)
		}
	}
	if len(offer) > 0 {
		a.OfferDetails = &tracker.OfferDetails{}
		if err := json.Unmarshal(offer, a.OfferDetails); err != nil {
			return nil, fmt.Errorf("decode offer details: %w", err)
		}
	}
	return &a, nil
}

// marshalJSONFields encodes the jsonb columns. offer_details stays NULL until
// an offer exists.
func marshalJSONFields(app *tracker.Application) (history, interviews, offer []byte, err error) {
	history, err = json.Marshal(app.StatusHistory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	dates := app.InterviewDates
	if dates == nil {
		dates = []time.Time{}
	}
	interviews, err = json.Marshal(dates)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode interview dates: %w", err)
	}
	if app.OfferDetails != nil {
		offer, err = json.Marshal(app.OfferDetails)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode offer details: %w", err)
		}
	}
	return history, interviews, offer, nil
}
