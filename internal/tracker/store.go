package tracker

import "context"

// ─── Persistence contracts ───────────────────────────────────────────────────

// RecordStore is the durable storage for applications. Implementations must
// enforce the (userID, jobID) uniqueness constraint on Insert (returning
// ErrDuplicate) and must run UpdateByOwnerAndID as a single atomic
// read-modify-write so concurrent updates to one application serialize.
//
// Every owner-scoped method treats "missing" and "owned by someone else"
// identically, returning ErrNotFound.
type RecordStore interface {
	Insert(ctx context.Context, app *Application) error
	FindByOwnerAndID(ctx context.Context, userID, id string) (*Application, error)
	FindByOwnerAndJob(ctx context.Context, userID, jobID string) (*Application, error)

	// UpdateByOwnerAndID loads the application, applies mutate to it and
	// persists the result, all under per-row serialization. When mutate
	// returns an error the record is left untouched and the error is
	// returned unchanged.
	UpdateByOwnerAndID(ctx context.Context, userID, id string, mutate func(*Application) error) (*Application, error)

	DeleteByOwnerAndID(ctx context.Context, userID, id string) error

	ListByOwner(ctx context.Context, userID string, f ListFilter, p PageRequest) ([]Application, error)
	CountByOwner(ctx context.Context, userID string, f ListFilter) (int, error)
	ListByOwnerAndJob(ctx context.Context, userID, jobID string) ([]Application, error)

	// ListAllByOwner returns the owner's full application set, used by the
	// metrics and interview aggregations.
	ListAllByOwner(ctx context.Context, userID string) ([]Application, error)
}

// JobCatalog is the read-only view of the job posting service.
type JobCatalog interface {
	// Lookup returns ErrJobNotFound when the posting does not exist.
	Lookup(ctx context.Context, jobID string) (*Job, error)
}
