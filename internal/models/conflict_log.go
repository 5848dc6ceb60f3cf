package models

import "time"

// ConflictLog records a field-level disagreement found while absorbing a remote
// booking over its cached copy.
type ConflictLog struct {
	BookingID  string   `json:"booking_id"`
	LocalID    string   `json:"local_id,omitempty"`
	Fields     []string `json:"fields"`
	Resolution string   `json:"resolution"` // remote_wins, local_wins
	DetectedAt int64    `json:"detected_at"`
}

// DetectedAtTime returns the DetectedAt as time.Time.
func (c *ConflictLog) DetectedAtTime() time.Time {
	return time.Unix(c.DetectedAt, 0)
}
