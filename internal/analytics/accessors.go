package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// TimestampFields are tried in order; the first present value is the event time.
var TimestampFields = []string{"timestamp", "created_at", "createdAt", "created_date", "date"}

// ActorFields are tried in order; the first present value identifies the visitor.
var ActorFields = []string{"user_id", "userId", "actor_id", "actorId"}

// timeLayouts are accepted for string timestamps without a zone. They are
// read in the aggregator's location.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// firstPresent returns the first value among fields that is set and not a zero
// value (empty string, zero number, false).
func firstPresent(entry models.VisitLogEntry, fields []string) (interface{}, bool) {
	for _, field := range fields {
		v, ok := entry[field]
		if !ok || !present(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// Timestamp extracts the event time of entry.
func Timestamp(entry models.VisitLogEntry, loc *time.Location) (time.Time, bool) {
	v, ok := firstPresent(entry, TimestampFields)
	if !ok {
		return time.Time{}, false
	}
	return parseTime(v, loc)
}

// ActorKey identifies the visitor of entry; idx is the entry's position in the
// log and names anonymous visitors.
func ActorKey(entry models.VisitLogEntry, idx int) string {
	if v, ok := firstPresent(entry, ActorFields); ok {
		if s, ok := v.(string); ok {
			return s
		}
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
	return "anon_" + strconv.Itoa(idx)
}

func parseTime(v interface{}, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case primitive.DateTime:
		return t.Time(), true
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case int32:
		return time.UnixMilli(int64(t)), true
	case int:
		return time.UnixMilli(int64(t)), true
	case string:
		return parseTimeString(strings.TrimSpace(t), loc)
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string, loc *time.Location) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
