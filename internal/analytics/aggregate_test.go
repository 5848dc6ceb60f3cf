package analytics

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

var testNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newUTC() *Aggregator { return New(time.UTC) }

// TestAggregate_bucketCounts verifies the output length per range, including empty input.
func TestAggregate_bucketCounts(t *testing.T) {
	tests := []struct {
		rng  models.Range
		want int
	}{
		{models.RangeDay, 24},
		{models.RangeWeek, 7},
		{models.RangeMonth, 30},
		{models.RangeYear, 12},
		{models.Range("decade"), 12},
	}

	for _, tt := range tests {
		t.Run(string(tt.rng), func(t *testing.T) {
			points := newUTC().Aggregate(nil, tt.rng, testNow)
			if len(points) != tt.want {
				t.Fatalf("len = %d, want %d", len(points), tt.want)
			}
			if BucketCount(tt.rng) != tt.want {
				t.Errorf("BucketCount() = %d, want %d", BucketCount(tt.rng), tt.want)
			}
			for _, p := range points {
				if p.Unique != 0 || p.Visits != 0 {
					t.Errorf("point %s = %d/%d, want zeros", p.Label, p.Unique, p.Visits)
				}
			}
		})
	}
}

// TestAggregate_week checks key routing, labels and unique counting.
func TestAggregate_week(t *testing.T) {
	entries := []models.VisitLogEntry{
		{"timestamp": "2024-03-15T09:00:00Z", "user_id": "a"},
		{"timestamp": "2024-03-15T10:00:00Z", "user_id": "a"},
		{"created_at": "2024-03-15T11:00:00Z", "userId": "b"},
		{"createdAt": "2024-03-14T08:00:00Z"},
		{"created_date": "2024-03-09", "actor_id": "c"},
		{"date": "2024-03-08T12:00:00Z", "actorId": "d"}, // outside the window
		{"timestamp": "not a date", "user_id": "e"},
		{"user_id": "f"},
	}

	points := newUTC().Aggregate(entries, models.RangeWeek, testNow)

	last := points[6]
	if last.Key != "2024-03-15" || last.Label != "Fri" {
		t.Errorf("last bucket = %+v", last)
	}
	if last.Unique != 2 || last.Visits != 3 {
		t.Errorf("today = %d/%d, want 2/3", last.Unique, last.Visits)
	}
	if points[5].Visits != 1 || points[5].Unique != 1 {
		t.Errorf("yesterday = %+v", points[5])
	}
	if points[0].Key != "2024-03-09" || points[0].Visits != 1 {
		t.Errorf("first bucket = %+v", points[0])
	}

	_, visits := Totals(points)
	if visits != 5 {
		t.Errorf("total visits = %d, want 5", visits)
	}
}

// TestAggregate_day drops entries older than 24 hours.
func TestAggregate_day(t *testing.T) {
	entries := []models.VisitLogEntry{
		{"timestamp": "2024-03-15T14:05:00Z", "user_id": "a"},
		{"timestamp": "2024-03-14T15:59:00Z", "user_id": "b"},
		{"timestamp": "2024-03-14T14:59:00Z", "user_id": "c"},
		{"timestamp": "2023-01-01T00:00:00Z", "user_id": "d"},
	}

	points := newUTC().Aggregate(entries, models.RangeDay, testNow)
	if len(points) != 24 {
		t.Fatalf("len = %d", len(points))
	}
	if points[0].Key != "2024-03-14T15+0000" || points[0].Label != "3 PM" || points[0].Visits != 1 {
		t.Errorf("first bucket = %+v", points[0])
	}
	if points[23].Key != "2024-03-15T14+0000" || points[23].Label != "2 PM" || points[23].Visits != 1 {
		t.Errorf("last bucket = %+v", points[23])
	}
	if _, visits := Totals(points); visits != 2 {
		t.Errorf("total visits = %d, want 2", visits)
	}
}

// TestAggregate_monthAndYear checks keys and labels of the longer ranges.
func TestAggregate_monthAndYear(t *testing.T) {
	month := newUTC().Aggregate(nil, models.RangeMonth, testNow)
	if month[0].Key != "2024-02-15" || month[0].Label != "Feb 15" {
		t.Errorf("month first = %+v", month[0])
	}
	if month[29].Key != "2024-03-15" {
		t.Errorf("month last = %+v", month[29])
	}

	entries := []models.VisitLogEntry{
		{"timestamp": "2023-04-02T00:00:00Z", "user_id": "a"},
		{"timestamp": "2023-03-31T00:00:00Z", "user_id": "b"},
	}
	year := newUTC().Aggregate(entries, models.RangeYear, testNow)
	if year[0].Key != "2023-04" || year[0].Label != "Apr" || year[0].Visits != 1 {
		t.Errorf("year first = %+v", year[0])
	}
	if year[11].Key != "2024-03" || year[11].Label != "Mar" {
		t.Errorf("year last = %+v", year[11])
	}
}

// TestAggregate_invariants checks sum(visits) <= len(entries) and unique <= visits.
func TestAggregate_invariants(t *testing.T) {
	var entries []models.VisitLogEntry
	for i := 0; i < 200; i++ {
		ts := testNow.Add(-time.Duration(i) * 37 * time.Minute)
		entry := models.VisitLogEntry{"timestamp": ts.Format(time.RFC3339)}
		if i%3 == 0 {
			entry["user_id"] = "u" + string(rune('a'+i%5))
		}
		if i%11 == 0 {
			entry["timestamp"] = "garbage"
		}
		entries = append(entries, entry)
	}

	for _, rng := range []models.Range{models.RangeDay, models.RangeWeek, models.RangeMonth, models.RangeYear} {
		points := newUTC().Aggregate(entries, rng, testNow)
		_, visits := Totals(points)
		if visits > len(entries) {
			t.Errorf("%s: visits %d > entries %d", rng, visits, len(entries))
		}
		for _, p := range points {
			if p.Unique > p.Visits {
				t.Errorf("%s %s: unique %d > visits %d", rng, p.Key, p.Unique, p.Visits)
			}
		}
	}
}

// TestTimestamp_formats covers every accepted timestamp representation.
func TestTimestamp_formats(t *testing.T) {
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		ok    bool
	}{
		{"rfc3339", "2024-03-15T09:30:00Z", true},
		{"rfc3339 nano", "2024-03-15T09:30:00.000Z", true},
		{"offset", "2024-03-15T10:30:00+01:00", true},
		{"naive T", "2024-03-15T09:30:00", true},
		{"naive space", "2024-03-15 09:30:00", true},
		{"epoch ms float", float64(want.UnixMilli()), true},
		{"epoch ms int64", want.UnixMilli(), true},
		{"epoch ms string", "1710495000000", true},
		{"time.Time", want, true},
		{"mongo date", primitive.NewDateTimeFromTime(want), true},
		{"garbage", "yesterday", false},
		{"object", map[string]interface{}{"a": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Timestamp(models.VisitLogEntry{"timestamp": tt.value}, time.UTC)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("Timestamp() = %v, want %v", got, want)
			}
		})
	}

	if _, ok := Timestamp(models.VisitLogEntry{"timestamp": "", "date": "2024-03-15"}, time.UTC); !ok {
		t.Error("empty timestamp should fall through to date")
	}
}

// TestActorKey checks accessor order and the anonymous fallback.
func TestActorKey(t *testing.T) {
	tests := []struct {
		name  string
		entry models.VisitLogEntry
		want  string
	}{
		{"user_id first", models.VisitLogEntry{"user_id": "a", "userId": "b"}, "a"},
		{"userId", models.VisitLogEntry{"userId": "b", "actor_id": "c"}, "b"},
		{"actor_id", models.VisitLogEntry{"actor_id": "c"}, "c"},
		{"actorId", models.VisitLogEntry{"actorId": "d"}, "d"},
		{"empty skipped", models.VisitLogEntry{"user_id": "", "actorId": "d"}, "d"},
		{"numeric", models.VisitLogEntry{"user_id": float64(42)}, "42"},
		{"anonymous", models.VisitLogEntry{}, "anon_7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActorKey(tt.entry, 7); got != tt.want {
				t.Errorf("ActorKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAggregator_location buckets in the configured zone.
func TestAggregator_location(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	entries := []models.VisitLogEntry{{"timestamp": "2024-03-15T20:00:00Z", "user_id": "a"}}

	points := New(tokyo).Aggregate(entries, models.RangeWeek, testNow.Add(12*time.Hour))
	if points[6].Key != "2024-03-16" || points[6].Visits != 1 {
		t.Errorf("last bucket = %+v", points[6])
	}
}

// TestAggregate_dayAcrossDST walks both New York clock changes and checks every
// hour window is distinct and that visits land in the right one.
func TestAggregate_dayAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	tests := []struct {
		name       string
		now        time.Time
		wantLabels map[string]int
		entry      string
		wantKey    string
	}{
		{
			name:       "spring forward",
			now:        time.Date(2024, 3, 10, 12, 0, 0, 0, ny),
			wantLabels: map[string]int{"1 AM": 1, "2 AM": 0, "3 AM": 1},
			entry:      "2024-03-10T07:15:00Z",
			wantKey:    "2024-03-10T03-0400",
		},
		{
			name:       "fall back",
			now:        time.Date(2024, 11, 3, 12, 0, 0, 0, ny),
			wantLabels: map[string]int{"1 AM": 2, "2 AM": 1},
			entry:      "2024-11-03T06:30:00Z",
			wantKey:    "2024-11-03T01-0500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := []models.VisitLogEntry{{"timestamp": tt.entry, "user_id": "a"}}
			points := New(ny).Aggregate(entries, models.RangeDay, tt.now)
			if len(points) != 24 {
				t.Fatalf("len = %d", len(points))
			}

			seen := make(map[string]bool, len(points))
			labels := make(map[string]int)
			for _, p := range points {
				if seen[p.Key] {
					t.Errorf("duplicate key %s", p.Key)
				}
				seen[p.Key] = true
				labels[p.Label]++
			}
			for label, want := range tt.wantLabels {
				if labels[label] != want {
					t.Errorf("label %q appears %d times, want %d", label, labels[label], want)
				}
			}

			for _, p := range points {
				if p.Key == tt.wantKey {
					if p.Visits != 1 {
						t.Errorf("bucket %s visits = %d, want 1", p.Key, p.Visits)
					}
				} else if p.Visits != 0 {
					t.Errorf("visit counted in %s, want %s", p.Key, tt.wantKey)
				}
			}
		})
	}
}

// TestAggregate_dayHalfHourZone keeps hour windows aligned to the local wall clock.
func TestAggregate_dayHalfHourZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 15, 14, 40, 0, 0, ist)
	entries := []models.VisitLogEntry{{"timestamp": "2024-03-15T09:15:00Z", "user_id": "a"}}

	points := New(ist).Aggregate(entries, models.RangeDay, now)
	last := points[23]
	if last.Key != "2024-03-15T14+0530" || last.Label != "2 PM" || last.Visits != 1 {
		t.Errorf("last bucket = %+v", last)
	}
}
