// Package httpserver exposes the tracker service over HTTP.
//
// It handles only transport concerns: request decoding, the x-user-id
// header contract forwarded by the Gateway, and mapping domain errors to
// status codes. All business logic lives in the tracker package.
//
// Routes:
//
//	GET    /health                                → liveness probe
//	POST   /applications                          → create application
//	GET    /applications                          → list (filters + pagination)
//	GET    /applications/metrics                  → per-user analytics
//	GET    /applications/upcoming-interviews      → interviews inside the window
//	GET    /applications/job/{jobId}              → applications for one posting
//	GET    /applications/{id}/timeline            → status history + next steps
//	PATCH  /applications/{id}                     → status change / field updates
//	DELETE /applications/{id}                     → delete application
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jobtrack/application-service/internal/tracker"
)

const version = "1.0.0"

// Handler holds shared dependencies.
type Handler struct {
	svc *tracker.Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *tracker.Service) *Handler {
	return &Handler{svc: svc}
}

// Router mounts all routes.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/applications", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/metrics", h.metrics)
		r.Get("/upcoming-interviews", h.upcomingInterviews)
		r.Get("/job/{jobId}", h.listByJob)
		r.Get("/{id}/timeline", h.timeline)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})

	return r
}

// ─── Auth ────────────────────────────────────────────────────────────────────

type ctxKey int

const userIDKey ctxKey = 0

// requireUser extracts the x-user-id header forwarded by the Gateway.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		if userID == "" {
			jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "application-service",
		"version": version,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID          string      `json:"jobId"`
		Status         string      `json:"status"`
		Notes          *string     `json:"notes"`
		InterviewDates []time.Time `json:"interviewDates"`
		ReminderDate   *time.Time  `json:"reminderDate"`
		FollowUpDate   *time.Time  `json:"followUpDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	app, err := h.svc.Create(r.Context(), userID(r), tracker.CreateParams{
		JobID:          body.JobID,
		Status:         body.Status,
		Notes:          body.Notes,
		InterviewDates: body.InterviewDates,
		ReminderDate:   body.ReminderDate,
		FollowUpDate:   body.FollowUpDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, app)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewStatus      *string               `json:"newStatus"`
		Notes          *string               `json:"notes"`
		InterviewDates []time.Time           `json:"interviewDates"`
		ReminderDate   *time.Time            `json:"reminderDate"`
		FollowUpDate   *time.Time            `json:"followUpDate"`
		OfferDetails   *tracker.OfferDetails `json:"offerDetails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	app, err := h.svc.UpdateStatus(r.Context(), userID(r), chi.URLParam(r, "id"), tracker.UpdateParams{
		NewStatus:      body.NewStatus,
		Notes:          body.Notes,
		InterviewDates: body.InterviewDates,
		ReminderDate:   body.ReminderDate,
		FollowUpDate:   body.FollowUpDate,
		OfferDetails:   body.OfferDetails,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, app)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.svc.Timeline(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, timeline)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter tracker.ListFilter
	if raw := q.Get("status"); raw != "" {
		status, err := tracker.ParseStatus(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Status = &status
	}
	filter.JobID = q.Get("jobId")
	filter.Search = q.Get("search")

	var err error
	if filter.StartDate, err = parseDate(q.Get("startDate")); err != nil {
		jsonError(w, "startDate: "+err.Error(), http.StatusBadRequest)
		return
	}
	if filter.EndDate, err = parseDate(q.Get("endDate")); err != nil {
		jsonError(w, "endDate: "+err.Error(), http.StatusBadRequest)
		return
	}

	page := tracker.PageRequest{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	if page.Page, err = parseInt(q.Get("page")); err != nil {
		jsonError(w, "page must be an integer", http.StatusBadRequest)
		return
	}
	if page.Limit, err = parseInt(q.Get("limit")); err != nil {
		jsonError(w, "limit must be an integer", http.StatusBadRequest)
		return
	}

	result, err := h.svc.List(r.Context(), userID(r), filter, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, result)
}

func (h *Handler) listByJob(w http.ResponseWriter, r *http.Request) {
	apps, err := h.svc.ListByJob(r.Context(), userID(r), chi.URLParam(r, "jobId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, apps)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Metrics(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, m)
}

func (h *Handler) upcomingInterviews(w http.ResponseWriter, r *http.Request) {
	days, err := parseInt(r.URL.Query().Get("days"))
	if err != nil {
		jsonError(w, "days must be an integer", http.StatusBadRequest)
		return
	}

	interviews, err := h.svc.UpcomingInterviews(r.Context(), userID(r), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, interviews)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeDomainError maps tracker errors to status codes: missing → 404,
// duplicate → 409, validation and rejected transitions → 400, anything
// else → 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNotFound), errors.Is(err, tracker.ErrJobNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tracker.ErrDuplicate):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		var ve *tracker.ValidationError
		var te *tracker.InvalidTransitionError
		if errors.As(err, &ve) || errors.As(err, &te) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("internal error", "err", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("expected RFC 3339 timestamp or YYYY-MM-DD")
}

func jsonOK(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
