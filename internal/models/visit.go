package models

import "strings"

// VisitLogEntry is one raw access-log event. Field names vary by producer, so
// the entry is kept as a generic mapping and read through accessor lists.
type VisitLogEntry map[string]interface{}

// Range selects the analytics window.
type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange maps a user string to a Range, using fallback when it is empty or unknown.
func ParseRange(s string, fallback Range) Range {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeDay, RangeWeek, RangeMonth, RangeYear:
		return r
	default:
		return fallback
	}
}

// Bucket is one fixed calendar-aligned window being filled.
type Bucket struct {
	Key    string
	Label  string
	Actors map[string]struct{}
	Visits int
}

// VisitPoint is the chart-ready summary of a bucket.
type VisitPoint struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Unique int    `json:"unique"`
	Visits int    `json:"visits"`
}

// Point summarises b.
func (b *Bucket) Point() VisitPoint {
	return VisitPoint{Key: b.Key, Label: b.Label, Unique: len(b.Actors), Visits: b.Visits}
}
