package console

import (
	"github.com/kimhsiao/gosauna/backend/internal/models"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
)

// Status classifies an operation for the status banner.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailure  Status = "failure"
)

// Result is the user-facing outcome of a console operation.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// OK reports whether the operation fully succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Data mode banner labels.
const (
	ModeLabelLocalOnly   = "Data: Local only"
	ModeLabelRemoteLocal = "Data: Remote + Local"
)

// BookingsView is the reservation table with its data-source banner.
type BookingsView struct {
	Result
	Mode      syncpkg.DataMode `json:"mode"`
	ModeLabel string           `json:"mode_label"`
	Bookings  []models.Booking `json:"bookings"`
}

// VisitStats is the chart series for one range.
type VisitStats struct {
	Result
	Range   models.Range        `json:"range"`
	Points  []models.VisitPoint `json:"points"`
	Unique  int                 `json:"unique_total"`
	Visits  int                 `json:"visits_total"`
	Summary string              `json:"summary"`
}

// BookingChange is the outcome of an update or delete.
type BookingChange struct {
	Result
	Booking models.Booking `json:"booking"`
}
