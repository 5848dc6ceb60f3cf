// Package capture watches the booking page for a confirmation and promotes the
// captured draft into the local record store.
//
// A capture attempt moves idle → drafted → watching → committed | abandoned.
// Each Controller owns at most one active Session.
package capture

import (
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// State is the phase of a capture attempt.
type State string

const (
	StateIdle      State = "idle"
	StateDrafted   State = "drafted"
	StateWatching  State = "watching"
	StateCommitted State = "committed"
	StateAbandoned State = "abandoned"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAbandoned
}

// Session is one capture attempt.
type Session struct {
	ID        string         `json:"id"`
	State     State          `json:"state"`
	Draft     models.Booking `json:"draft"`
	Record    models.Booking `json:"record"` // set once committed
	Polls     int            `json:"polls"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Reason    string         `json:"reason,omitempty"` // why it was abandoned

	done chan struct{}
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
