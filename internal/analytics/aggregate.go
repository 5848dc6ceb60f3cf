// Package analytics buckets raw visit logs into fixed calendar windows and
// counts unique visitors and total visits per window.
package analytics

import (
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

const (
	hourKey  = "2006-01-02T15-0700"
	dayKey   = "2006-01-02"
	monthKey = "2006-01"
)

// Aggregator buckets visit logs in a fixed location.
type Aggregator struct {
	loc *time.Location
}

// New creates an Aggregator building calendar windows in loc (time.Local if nil).
func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{loc: loc}
}

// Aggregate is New(time.Local).Aggregate.
func Aggregate(entries []models.VisitLogEntry, rng models.Range, now time.Time) []models.VisitPoint {
	return New(nil).Aggregate(entries, rng, now)
}

// Aggregate counts entries into the windows of rng ending at now. The result
// always has the full window count for rng, oldest first. Entries without a
// usable timestamp or outside every window are dropped.
func (a *Aggregator) Aggregate(entries []models.VisitLogEntry, rng models.Range, now time.Time) []models.VisitPoint {
	buckets := a.Buckets(rng, now)
	byKey := make(map[string]*models.Bucket, len(buckets))
	for _, b := range buckets {
		byKey[b.Key] = b
	}

	for idx, entry := range entries {
		ts, ok := Timestamp(entry, a.loc)
		if !ok {
			continue
		}
		bucket, ok := byKey[a.bucketKey(rng, ts)]
		if !ok {
			continue
		}
		bucket.Actors[ActorKey(entry, idx)] = struct{}{}
		bucket.Visits++
	}

	points := make([]models.VisitPoint, len(buckets))
	for i, b := range buckets {
		points[i] = b.Point()
	}
	return points
}

// ZeroPoints returns the all-zero series for rng, shown when logs are unavailable.
func (a *Aggregator) ZeroPoints(rng models.Range, now time.Time) []models.VisitPoint {
	return a.Aggregate(nil, rng, now)
}

// Buckets pre-generates the dense, chronological windows of rng ending at now.
func (a *Aggregator) Buckets(rng models.Range, now time.Time) []*models.Bucket {
	now = now.In(a.loc)
	y, m, d := now.Date()

	var buckets []*models.Bucket
	add := func(t time.Time, label string) {
		buckets = append(buckets, &models.Bucket{
			Key:    a.bucketKey(rng, t),
			Label:  label,
			Actors: make(map[string]struct{}),
		})
	}

	switch rng {
	case models.RangeDay:
		// Step back on the absolute clock; wall-clock arithmetic repeats or
		// skips an hour across a DST change.
		top := startOfHour(now)
		for i := 23; i >= 0; i-- {
			t := top.Add(-time.Duration(i) * time.Hour).In(a.loc)
			add(t, t.Format("3 PM"))
		}
	case models.RangeWeek:
		for i := 6; i >= 0; i-- {
			t := time.Date(y, m, d-i, 0, 0, 0, 0, a.loc)
			add(t, t.Format("Mon"))
		}
	case models.RangeMonth:
		for i := 29; i >= 0; i-- {
			t := time.Date(y, m, d-i, 0, 0, 0, 0, a.loc)
			add(t, t.Format("Jan 2"))
		}
	default:
		for i := 11; i >= 0; i-- {
			t := time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, a.loc)
			add(t, t.Format("Jan"))
		}
	}
	return buckets
}

// BucketCount is the number of windows produced for rng.
func BucketCount(rng models.Range) int {
	switch rng {
	case models.RangeDay:
		return 24
	case models.RangeWeek:
		return 7
	case models.RangeMonth:
		return 30
	default:
		return 12
	}
}

// Totals sums unique visitors and visits across points.
func Totals(points []models.VisitPoint) (unique, visits int) {
	for _, p := range points {
		unique += p.Unique
		visits += p.Visits
	}
	return unique, visits
}

// startOfHour drops the minutes of t's wall clock without leaving its zone
// offset, which time.Truncate does not do for half-hour zones.
func startOfHour(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

// bucketKey identifies the window holding t. Hour keys carry the zone offset
// so the hour repeated when clocks fall back gets its own window.
func (a *Aggregator) bucketKey(rng models.Range, t time.Time) string {
	switch rng {
	case models.RangeDay:
		return t.In(a.loc).Format(hourKey)
	case models.RangeWeek, models.RangeMonth:
		return t.In(a.loc).Format(dayKey)
	default:
		return t.In(a.loc).Format(monthKey)
	}
}
