package tracker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack/application-service/internal/repository/memory"
	"jobtrack/application-service/internal/tracker"
)

// ── Test fixtures ──────────────────────────────────────────────────────────

type fixture struct {
	svc     *tracker.Service
	store   *memory.Store
	catalog *memory.Catalog
	rdb     *redis.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := memory.NewStore()
	catalog := memory.NewCatalog()
	catalog.Add(tracker.Job{
		ID: "job-1", Title: "Backend Engineer", Company: "Acme",
		Location: "Berlin", EmploymentType: "Full-time",
	})
	catalog.Add(tracker.Job{
		ID: "job-2", Title: "Data Engineer", Company: "Globex",
		Location: "Remote", EmploymentType: "Contract",
	})

	return &fixture{
		svc:     tracker.NewService(store, catalog, rdb, time.Minute),
		store:   store,
		catalog: catalog,
		rdb:     rdb,
	}
}

func strPtr(s string) *string { return &s }

// ── Create ─────────────────────────────────────────────────────────────────

func TestCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, app.ID)
	assert.Equal(t, tracker.StatusApplied, app.Status)
	require.NotNil(t, app.AppliedDate)
	require.Len(t, app.StatusHistory, 1)
	assert.Equal(t, tracker.StatusApplied, app.StatusHistory[0].Status)
}

func TestCreate_SavedHasNoAppliedDate(t *testing.T) {
	f := newFixture(t)

	app, err := f.svc.Create(context.Background(), "user-1", tracker.CreateParams{
		JobID:  "job-1",
		Status: "SAVED",
	})
	require.NoError(t, err)

	assert.Equal(t, tracker.StatusSaved, app.Status)
	assert.Nil(t, app.AppliedDate)
	require.Len(t, app.StatusHistory, 1)
}

func TestCreate_MissingJobID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "user-1", tracker.CreateParams{})
	var ve *tracker.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCreate_UnknownStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "user-1", tracker.CreateParams{
		JobID:  "job-1",
		Status: "DAYDREAMING",
	})
	var ve *tracker.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCreate_JobMissingFromCatalog(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "user-1", tracker.CreateParams{JobID: "job-404"})
	require.ErrorIs(t, err, tracker.ErrJobNotFound)
}

func TestCreate_DuplicateJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	// Duplicate fails regardless of the status supplied.
	for _, status := range []string{"", "SAVED", "APPLIED"} {
		_, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1", Status: status})
		assert.ErrorIs(t, err, tracker.ErrDuplicate, "status %q", status)
	}

	// A different user may track the same job.
	_, err = f.svc.Create(ctx, "user-2", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)
}

func TestCreate_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.rdb.Subscribe(ctx, "EVENT_APPLICATION_CREATED")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx) // wait for subscription confirmation
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "EVENT_APPLICATION_CREATED")
		assert.Contains(t, msg.Payload, "job-1")
	case <-time.After(2 * time.Second):
		t.Fatal("expected EVENT_APPLICATION_CREATED to be published")
	}
}

// ── UpdateStatus ───────────────────────────────────────────────────────────

func TestUpdateStatus_AcceptedTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("IN_REVIEW"),
	})
	require.NoError(t, err)

	assert.Equal(t, tracker.StatusInReview, updated.Status)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, tracker.StatusInReview, updated.StatusHistory[1].Status)
}

func TestUpdateStatus_RejectedTransitionLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("ACCEPTED"), // not reachable from APPLIED
		Notes:     strPtr("should not stick"),
	})
	var te *tracker.InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tracker.StatusApplied, te.From)
	assert.Equal(t, tracker.StatusAccepted, te.To)

	stored, err := f.store.FindByOwnerAndID(ctx, "user-1", app.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusApplied, stored.Status)
	assert.Len(t, stored.StatusHistory, 1)
	assert.Nil(t, stored.Notes)
}

func TestUpdateStatus_AppliedDateSetOnFirstApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1", Status: "SAVED"})
	require.NoError(t, err)
	require.Nil(t, app.AppliedDate)

	updated, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("APPLIED"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AppliedDate)
	appliedAt := *updated.AppliedDate

	// Later transitions and field updates never touch appliedDate.
	updated, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("IN_REVIEW"),
	})
	require.NoError(t, err)
	updated, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		Notes: strPtr("waiting to hear back"),
	})
	require.NoError(t, err)

	require.NotNil(t, updated.AppliedDate)
	assert.True(t, updated.AppliedDate.Equal(appliedAt))
}

func TestUpdateStatus_NoteAttachesToHistoryEntryOnTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("IN_REVIEW"),
		Notes:     strPtr("recruiter confirmed receipt"),
	})
	require.NoError(t, err)

	// The note lands on the history entry, not the standalone field.
	require.Len(t, updated.StatusHistory, 2)
	require.NotNil(t, updated.StatusHistory[1].Notes)
	assert.Equal(t, "recruiter confirmed receipt", *updated.StatusHistory[1].Notes)
	assert.Nil(t, updated.Notes)
}

func TestUpdateStatus_FieldOnlyUpdateSkipsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	interview := time.Now().UTC().AddDate(0, 0, 7)
	reminder := time.Now().UTC().AddDate(0, 0, 3)
	salary := 95000

	updated, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		Notes:          strPtr("phone screen went well"),
		InterviewDates: []time.Time{interview},
		ReminderDate:   &reminder,
		OfferDetails:   &tracker.OfferDetails{Salary: &salary},
	})
	require.NoError(t, err)

	assert.Equal(t, tracker.StatusApplied, updated.Status)
	assert.Len(t, updated.StatusHistory, 1)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "phone screen went well", *updated.Notes)
	require.Len(t, updated.InterviewDates, 1)
	require.NotNil(t, updated.OfferDetails)
	assert.Equal(t, 95000, *updated.OfferDetails.Salary)
}

func TestUpdateStatus_NotFoundAndForeignOwnerLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	_, missingErr := f.svc.UpdateStatus(ctx, "user-1", "no-such-id", tracker.UpdateParams{
		NewStatus: strPtr("IN_REVIEW"),
	})
	_, foreignErr := f.svc.UpdateStatus(ctx, "user-2", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("IN_REVIEW"),
	})

	require.ErrorIs(t, missingErr, tracker.ErrNotFound)
	require.ErrorIs(t, foreignErr, tracker.ErrNotFound)
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
		NewStatus: strPtr("GHOSTED"),
	})
	var ve *tracker.ValidationError
	require.ErrorAs(t, err, &ve)
}

// ── Timeline ───────────────────────────────────────────────────────────────

func TestTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("IN_REVIEW")})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("INTERVIEW_SCHEDULED")})
	require.NoError(t, err)

	timeline, err := f.svc.Timeline(ctx, "user-1", app.ID)
	require.NoError(t, err)

	assert.Equal(t, tracker.StatusInterviewScheduled, timeline.CurrentStatus)
	require.Len(t, timeline.Entries, 3)
	for i := 1; i < len(timeline.Entries); i++ {
		assert.False(t, timeline.Entries[i].Date.Before(timeline.Entries[i-1].Date),
			"timeline entries must be ascending")
	}
	assert.NotEmpty(t, timeline.NextSteps)

	_, err = f.svc.Timeline(ctx, "user-2", app.ID)
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestTimeline_TerminalStatusGetsGenericNextSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("REJECTED")})
	require.NoError(t, err)

	timeline, err := f.svc.Timeline(ctx, "user-1", app.ID)
	require.NoError(t, err)
	require.Len(t, timeline.NextSteps, 1)
}

// ── Delete ─────────────────────────────────────────────────────────────────

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, "user-2", app.ID), tracker.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, "user-1", app.ID))
	require.ErrorIs(t, f.svc.Delete(ctx, "user-1", app.ID), tracker.ErrNotFound)
}

// ── End-to-end lifecycle ───────────────────────────────────────────────────

func TestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusApplied, app.Status)
	require.NotNil(t, app.AppliedDate)
	require.Len(t, app.StatusHistory, 1)

	// SAVED is unreachable from APPLIED.
	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("SAVED")})
	var te *tracker.InvalidTransitionError
	require.ErrorAs(t, err, &te)

	app2, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("IN_REVIEW")})
	require.NoError(t, err)
	require.Len(t, app2.StatusHistory, 2)

	app3, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("REJECTED")})
	require.NoError(t, err)
	require.Len(t, app3.StatusHistory, 3)
	assert.True(t, tracker.IsTerminal(app3.Status))

	// Terminal: every further transition is rejected.
	for _, target := range tracker.AllStatuses {
		_, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
			NewStatus: strPtr(string(target)),
		})
		assert.Error(t, err, "REJECTED → %s should be rejected", target)
	}
}

// ── List ───────────────────────────────────────────────────────────────────

func seedApplications(t *testing.T, f *fixture, userID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		jobID := fmt.Sprintf("seed-job-%d", i)
		f.catalog.Add(tracker.Job{
			ID: jobID, Title: fmt.Sprintf("Engineer %d", i), Company: "SeedCorp",
			EmploymentType: "Full-time",
		})
		_, err := f.svc.Create(ctx, userID, tracker.CreateParams{JobID: jobID})
		require.NoError(t, err)
	}
}

func TestList_DefaultsAndEnvelope(t *testing.T) {
	f := newFixture(t)
	seedApplications(t, f, "user-1", 25)

	page, err := f.svc.List(context.Background(), "user-1", tracker.ListFilter{}, tracker.PageRequest{})
	require.NoError(t, err)

	assert.Len(t, page.Items, 20)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 20, page.Pagination.Limit)
	assert.Equal(t, 25, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
}

func TestList_SecondPage(t *testing.T) {
	f := newFixture(t)
	seedApplications(t, f, "user-1", 25)

	page, err := f.svc.List(context.Background(), "user-1", tracker.ListFilter{}, tracker.PageRequest{Page: 2})
	require.NoError(t, err)

	assert.Len(t, page.Items, 5)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestList_StatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedApplications(t, f, "user-1", 3)

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{NewStatus: strPtr("IN_REVIEW")})
	require.NoError(t, err)

	status := tracker.StatusInReview
	page, err := f.svc.List(ctx, "user-1", tracker.ListFilter{Status: &status}, tracker.PageRequest{})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, tracker.StatusInReview, page.Items[0].Status)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestList_TextSearchRunsAfterPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedApplications(t, f, "user-1", 5)

	_, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-2"})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, "user-1", tracker.ListFilter{Search: "globex"}, tracker.PageRequest{})
	require.NoError(t, err)

	// The match set shrinks, the envelope does not: search is post-fetch.
	require.Len(t, page.Items, 1)
	assert.Equal(t, "job-2", page.Items[0].JobID)
	assert.Equal(t, 6, page.Pagination.Total)
}

func TestList_RejectsUnknownSortField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), "user-1", tracker.ListFilter{}, tracker.PageRequest{SortBy: "salary"})
	var ve *tracker.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = f.svc.List(context.Background(), "user-1", tracker.ListFilter{}, tracker.PageRequest{SortOrder: "sideways"})
	require.ErrorAs(t, err, &ve)
}

func TestList_JoinsJobData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	page, err := f.svc.List(ctx, "user-1", tracker.ListFilter{}, tracker.PageRequest{})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Job)
	assert.Equal(t, "Acme", page.Items[0].Job.Company)
}

func TestListByJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	apps, err := f.svc.ListByJob(ctx, "user-1", "job-1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, app.ID, apps[0].ID)

	apps, err = f.svc.ListByJob(ctx, "user-2", "job-1")
	require.NoError(t, err)
	assert.Empty(t, apps)

	_, err = f.svc.ListByJob(ctx, "user-1", "")
	var ve *tracker.ValidationError
	require.ErrorAs(t, err, &ve)
}

// A stale snapshot must never beat a concurrent update: the store serializes
// read-modify-write per application, so racing transitions out of APPLIED
// produce exactly one winner.
func TestUpdateStatus_ConcurrentTransitionsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.Create(ctx, "user-1", tracker.CreateParams{JobID: "job-1"})
	require.NoError(t, err)

	const racers = 8
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func() {
			_, err := f.svc.UpdateStatus(ctx, "user-1", app.ID, tracker.UpdateParams{
				NewStatus: strPtr("WITHDRAWN"),
			})
			errs <- err
		}()
	}

	var won int
	for i := 0; i < racers; i++ {
		if err := <-errs; err == nil {
			won++
		} else {
			var te *tracker.InvalidTransitionError
			require.ErrorAs(t, err, &te)
		}
	}
	assert.Equal(t, 1, won, "exactly one WITHDRAWN transition must win")

	stored, err := f.store.FindByOwnerAndID(ctx, "user-1", app.ID)
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 2)
}
