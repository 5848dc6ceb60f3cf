// Package conflict decides which side wins when a remote booking disagrees
// with its locally cached copy.
package conflict

import (
	"sort"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// ResolutionStrategy defines how conflicts are resolved.
type ResolutionStrategy string

const (
	// ResolutionStrategyRemoteWins applies the remote value for every disputed field.
	ResolutionStrategyRemoteWins ResolutionStrategy = "remote_wins"
	// ResolutionStrategyLastWriteWins keeps the side with the newer updated_date.
	ResolutionStrategyLastWriteWins ResolutionStrategy = "last_write_wins"
)

// Resolution values recorded in the conflict log.
const (
	ResolutionRemoteWins = "remote_wins"
	ResolutionLocalWins  = "local_wins"
)

// ParseStrategy maps a config value to a strategy, defaulting to remote wins.
func ParseStrategy(s string) ResolutionStrategy {
	if ResolutionStrategy(s) == ResolutionStrategyLastWriteWins {
		return ResolutionStrategyLastWriteWins
	}
	return ResolutionStrategyRemoteWins
}

// Resolver handles conflict resolution during synchronization.
type Resolver struct {
	strategy ResolutionStrategy
	now      func() time.Time
}

// NewResolver creates a new Resolver with the specified strategy.
func NewResolver(strategy ResolutionStrategy) *Resolver {
	return &Resolver{
		strategy: strategy,
		now:      time.Now,
	}
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() ResolutionStrategy {
	return r.strategy
}

// Conflict is a detected disagreement between a cached and a remote booking.
type Conflict struct {
	BookingID  string
	Local      *models.Booking
	Remote     *models.Booking
	Fields     []string // disputed fields, sorted
	DetectedAt int64
}

// ResolveResult is the outcome of conflict resolution.
type ResolveResult struct {
	Record      models.Booking // what the store should absorb
	Strategy    ResolutionStrategy
	ConflictLog *models.ConflictLog
}

// DetectConflict reports a conflict when both records address the same
// reservation and at least one field set on both sides differs.
func (r *Resolver) DetectConflict(local, remote *models.Booking) (*Conflict, bool) {
	if local == nil || remote == nil {
		return nil, false
	}
	if !models.SameReservation(*local, *remote) {
		return nil, false
	}

	localFields := local.FieldValues()
	remoteFields := remote.FieldValues()
	var disputed []string
	for name, lv := range localFields {
		rv := remoteFields[name]
		if lv != "" && rv != "" && lv != rv {
			disputed = append(disputed, name)
		}
	}
	if len(disputed) == 0 {
		return nil, false
	}
	sort.Strings(disputed)

	conflict := &Conflict{
		BookingID:  remote.ID,
		Local:      local,
		Remote:     remote,
		Fields:     disputed,
		DetectedAt: r.now().Unix(),
	}

	logging.Warn("Booking edit conflict detected",
		map[string]interface{}{
			"booking_id": remote.ID,
			"local_id":   local.ID,
			"fields":     disputed,
		})

	return conflict, true
}

// Resolve resolves a conflict using the configured strategy.
func (r *Resolver) Resolve(conflict *Conflict) (*ResolveResult, error) {
	if conflict == nil || conflict.Local == nil || conflict.Remote == nil {
		return nil, ErrInvalidConflict
	}
	if !models.SameReservation(*conflict.Local, *conflict.Remote) {
		return nil, ErrBookingMismatch
	}

	switch r.strategy {
	case ResolutionStrategyLastWriteWins:
		return r.resolveLastWriteWins(conflict)
	default:
		return r.resolveRemoteWins(conflict), nil
	}
}

func (r *Resolver) resolveRemoteWins(conflict *Conflict) *ResolveResult {
	return r.result(conflict, *conflict.Remote, ResolutionStrategyRemoteWins, ResolutionRemoteWins)
}

// resolveLastWriteWins keeps the local values of the disputed fields only when
// the local copy carries a strictly newer updated_date.
func (r *Resolver) resolveLastWriteWins(conflict *Conflict) (*ResolveResult, error) {
	localTime, localOK := parseUpdated(conflict.Local.UpdatedDate)
	remoteTime, remoteOK := parseUpdated(conflict.Remote.UpdatedDate)

	if !localOK || (remoteOK && !localTime.After(remoteTime)) {
		return r.result(conflict, *conflict.Remote, ResolutionStrategyLastWriteWins, ResolutionRemoteWins), nil
	}

	record := *conflict.Remote
	local := conflict.Local
	for _, field := range conflict.Fields {
		switch field {
		case "guest_name":
			record.GuestName = local.GuestName
		case "guest_phone":
			record.GuestPhone = local.GuestPhone
		case "guest_email":
			record.GuestEmail = local.GuestEmail
		case "date":
			record.Date = local.Date
		case "time_slot":
			record.TimeSlot = local.TimeSlot
		case "notes":
			record.Notes = local.Notes
		case "sauna_name":
			record.SaunaName = local.SaunaName
		case "status":
			record.Status = local.Status
		}
	}
	record.UpdatedDate = local.UpdatedDate
	return r.result(conflict, record, ResolutionStrategyLastWriteWins, ResolutionLocalWins), nil
}

func (r *Resolver) result(conflict *Conflict, record models.Booking, strategy ResolutionStrategy, resolution string) *ResolveResult {
	conflictLog := &models.ConflictLog{
		BookingID:  conflict.BookingID,
		LocalID:    conflict.Local.ID,
		Fields:     conflict.Fields,
		Resolution: resolution,
		DetectedAt: conflict.DetectedAt,
	}

	logging.Info("Booking conflict resolved",
		map[string]interface{}{
			"booking_id": conflict.BookingID,
			"fields":     conflict.Fields,
			"strategy":   strategy,
			"resolution": resolution,
		})

	return &ResolveResult{
		Record:      record,
		Strategy:    strategy,
		ConflictLog: conflictLog,
	}
}

func parseUpdated(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000000", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Errors
var (
	ErrInvalidConflict = &ConflictError{Message: "invalid conflict: both bookings must be non-nil"}
	ErrBookingMismatch = &ConflictError{Message: "bookings address different reservations"}
)

// ConflictError represents a conflict resolution error.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IsConflictError checks if an error is a ConflictError.
func IsConflictError(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
