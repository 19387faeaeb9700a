package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"time"
)

// ─── Metrics aggregation ─────────────────────────────────────────────────────

// Status sets driving the rate arithmetic. A "response" is any status past
// APPLIED/SAVED — rejections count, matching the product's historical
// definition.
var (
	interviewStatuses = map[Status]bool{
		StatusInterviewScheduled: true,
		StatusInterviewed:        true,
		StatusOfferReceived:      true,
		StatusAccepted:           true,
	}
	offerStatuses = map[Status]bool{
		StatusOfferReceived: true,
		StatusAccepted:      true,
	}
)

const unknownGroup = "Unknown"

// Metrics computes the per-user aggregate, serving a cached copy from Redis
// when one is fresh. Cache failures are non-fatal: the aggregate is always
// recomputable from the store snapshot.
func (s *Service) Metrics(ctx context.Context, userID string) (*Metrics, error) {
	key := metricsKey(userID)

	if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var m Metrics
		if err := json.Unmarshal(cached, &m); err == nil {
			return &m, nil
		}
		slog.Warn("metrics cache entry unreadable, recomputing", "userId", userID)
	}

	apps, err := s.store.ListAllByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	m := computeMetrics(s.joinJobs(ctx, apps))

	if payload, err := json.Marshal(m); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
			slog.Warn("metrics cache write failed", "userId", userID, "err", err)
		}
	}

	return m, nil
}

func metricsKey(userID string) string { return "tracker:metrics:" + userID }

// invalidateMetrics drops the cached aggregate after a mutation. Non-fatal.
func (s *Service) invalidateMetrics(ctx context.Context, userID string) {
	if err := s.rdb.Del(ctx, metricsKey(userID)).Err(); err != nil {
		slog.Warn("metrics cache invalidation failed", "userId", userID, "err", err)
	}
}

// computeMetrics reduces the joined snapshot to the six summary statistics.
// Every division guards the zero denominator; an empty snapshot yields all
// zeroes.
func computeMetrics(items []ApplicationWithJob) *Metrics {
	m := &Metrics{
		ByCompany: []CompanyStats{},
		ByJobType: []JobTypeStats{},
	}

	var (
		responded     int
		interviews    int
		offers        int
		responseDays  []float64
		interviewDays []float64
	)

	for i := range items {
		app := &items[i].Application

		if app.Status != StatusSaved {
			m.TotalApplications++
		}
		isResponse := app.Status != StatusSaved && app.Status != StatusApplied
		if isResponse {
			responded++
		}
		if interviewStatuses[app.Status] {
			interviews++
		}
		if offerStatuses[app.Status] {
			offers++
		}

		if isResponse && len(app.StatusHistory) > 1 {
			responseDays = append(responseDays, daysBetween(startDate(app), app.StatusHistory[1].Date))
		}

		if interviewStatuses[app.Status] && len(app.StatusHistory) > 1 {
			for _, entry := range app.StatusHistory {
				if entry.Status == StatusInterviewScheduled || entry.Status == StatusInterviewed {
					if d := daysBetween(startDate(app), entry.Date); d > 0 {
						interviewDays = append(interviewDays, d)
					}
					break
				}
			}
		}
	}

	m.ResponseRate = pct(responded, m.TotalApplications)
	m.InterviewRate = pct(interviews, m.TotalApplications)
	m.OfferRate = pct(offers, m.TotalApplications)
	m.AverageResponseTime = roundDays(mean(responseDays))

	if len(interviewDays) > 0 {
		m.TimeToInterview = TimeToInterview{
			Average: roundDays(mean(interviewDays)),
			Fastest: roundDays(minOf(interviewDays)),
			Slowest: roundDays(maxOf(interviewDays)),
		}
	}

	m.ByCompany = groupByCompany(items)
	m.ByJobType = groupByJobType(items)

	return m
}

// groupByCompany buckets applications by the joined job's company and keeps
// the ten busiest groups.
func groupByCompany(items []ApplicationWithJob) []CompanyStats {
	groups := make(map[string]*CompanyStats)
	for i := range items {
		company := unknownGroup
		if items[i].Job != nil && items[i].Job.Company != "" {
			company = items[i].Job.Company
		}
		g, ok := groups[company]
		if !ok {
			g = &CompanyStats{Company: company}
			groups[company] = g
		}
		g.Applications++
		if interviewStatuses[items[i].Status] {
			g.Interviews++
		}
		if offerStatuses[items[i].Status] {
			g.Offers++
		}
	}

	stats := make([]CompanyStats, 0, len(groups))
	for _, g := range groups {
		g.ResponseRate = pct(g.Interviews+g.Offers, g.Applications)
		stats = append(stats, *g)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Applications != stats[j].Applications {
			return stats[i].Applications > stats[j].Applications
		}
		return stats[i].Company < stats[j].Company
	})

	if len(stats) > 10 {
		stats = stats[:10]
	}
	return stats
}

// groupByJobType buckets applications by employment type, uncapped.
func groupByJobType(items []ApplicationWithJob) []JobTypeStats {
	groups := make(map[string]*JobTypeStats)
	offersByType := make(map[string]int)
	for i := range items {
		jobType := unknownGroup
		if items[i].Job != nil && items[i].Job.EmploymentType != "" {
			jobType = items[i].Job.EmploymentType
		}
		g, ok := groups[jobType]
		if !ok {
			g = &JobTypeStats{JobType: jobType}
			groups[jobType] = g
		}
		g.Applications++
		if offerStatuses[items[i].Status] {
			offersByType[jobType]++
		}
	}

	stats := make([]JobTypeStats, 0, len(groups))
	for jobType, g := range groups {
		g.SuccessRate = pct(offersByType[jobType], g.Applications)
		stats = append(stats, *g)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Applications != stats[j].Applications {
			return stats[i].Applications > stats[j].Applications
		}
		return stats[i].JobType < stats[j].JobType
	})
	return stats
}

// ─── Arithmetic helpers ──────────────────────────────────────────────────────

// startDate is the reference point for duration metrics: the applied date
// when known, the record creation time otherwise.
func startDate(a *Application) time.Time {
	if a.AppliedDate != nil {
		return *a.AppliedDate
	}
	return a.CreatedAt
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// pct is an integer percentage, rounded, zero when the denominator is zero.
func pct(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func roundDays(d float64) int { return int(math.Round(d)) }

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
