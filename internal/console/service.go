// Package console implements the admin console operations: loading the merged
// reservation list, visit analytics, and editing or deleting reservations.
// Every operation returns a typed result carrying the banner message; faults
// never escape as errors.
package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kimhsiao/gosauna/backend/internal/analytics"
	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
	"github.com/kimhsiao/gosauna/backend/internal/uuid"
	"github.com/kimhsiao/gosauna/backend/internal/visitlog"
)

// DefaultVisitLogLimit bounds one visit-log fetch.
const DefaultVisitLogLimit = 5000

// DefaultAdminTTL is how long an admin classification is reused.
const DefaultAdminTTL = time.Minute

// Identity resolves the user behind the configured credential.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Refresher produces the merged booking view.
type Refresher interface {
	SyncNow(ctx context.Context) *syncpkg.MergeResult
}

// RemoteEditor changes reservations on the remote side.
type RemoteEditor interface {
	UpdateBooking(ctx context.Context, id string, fields map[string]string) (models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// LocalStore is the part of the record store the console writes to.
type LocalStore interface {
	Upsert(ctx context.Context, record models.Booking) models.Booking
	Remove(ctx context.Context, id string)
	Find(ctx context.Context, record models.Booking) (models.Booking, bool)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Identity   Identity
	Refresher  Refresher
	Remote     RemoteEditor
	Store      LocalStore
	Visits     visitlog.Source
	Aggregator *analytics.Aggregator
}

// Options tune a Service.
type Options struct {
	VisitLogLimit int
	AdminTTL      time.Duration
}

// Service is the admin console backend.
type Service struct {
	deps     Deps
	limit    int
	adminTTL time.Duration
	now      func() time.Time

	group    singleflight.Group
	mu       sync.Mutex
	isAdmin  bool
	adminExp time.Time
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if deps.Aggregator == nil {
		deps.Aggregator = analytics.New(nil)
	}
	if opts.VisitLogLimit <= 0 {
		opts.VisitLogLimit = DefaultVisitLogLimit
	}
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = DefaultAdminTTL
	}
	return &Service{
		deps:     deps,
		limit:    opts.VisitLogLimit,
		adminTTL: opts.AdminTTL,
		now:      time.Now,
	}
}

// ResolveAdmin reports whether the current credential belongs to an admin.
// Lookup failures count as non-admin and are not cached. Concurrent callers
// share one lookup.
func (s *Service) ResolveAdmin(ctx context.Context) bool {
	if admin, ok := s.cachedAdmin(); ok {
		return admin
	}

	v, _, _ := s.group.Do("admin", func() (interface{}, error) {
		if admin, ok := s.cachedAdmin(); ok {
			return admin, nil
		}
		user, err := s.deps.Identity.CurrentUser(ctx)
		if err != nil {
			logging.Warn("Admin check failed", map[string]interface{}{"error": err.Error()})
			return false, nil
		}
		admin := user.IsAdmin()

		s.mu.Lock()
		s.isAdmin = admin
		s.adminExp = s.now().Add(s.adminTTL)
		s.mu.Unlock()
		return admin, nil
	})
	return v.(bool)
}

func (s *Service) cachedAdmin() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Before(s.adminExp) {
		return s.isAdmin, true
	}
	return false, false
}

// LoadBookings refreshes and returns the merged reservation list.
func (s *Service) LoadBookings(ctx context.Context) BookingsView {
	result := s.deps.Refresher.SyncNow(ctx)

	view := BookingsView{
		Mode:     result.Mode,
		Bookings: result.Bookings,
	}
	if view.Bookings == nil {
		view.Bookings = []models.Booking{}
	}

	if result.Degraded() {
		view.ModeLabel = ModeLabelLocalOnly
		view.Result = Result{
			Status:  StatusDegraded,
			Message: "Loaded local reservations only (remote list unavailable).",
			Err:     result.Err,
		}
		return view
	}

	view.ModeLabel = ModeLabelRemoteLocal
	view.Result = Result{
		Status:  StatusOK,
		Message: fmt.Sprintf("Loaded %d reservation(s).", len(view.Bookings)),
	}
	return view
}

// LoadVisitStats aggregates the visit log for rng. When the log is
// unavailable the all-zero series is returned with a failure status.
func (s *Service) LoadVisitStats(ctx context.Context, rng models.Range) VisitStats {
	now := s.now()
	stats := VisitStats{Range: rng}

	entries, err := s.fetchVisits(ctx)
	if err != nil {
		logging.Warn("Visit analytics unavailable", map[string]interface{}{"error": err.Error()})
		stats.Points = s.deps.Aggregator.ZeroPoints(rng, now)
		stats.Result = Result{Status: StatusFailure, Message: "Visit analytics unavailable.", Err: err}
	} else {
		stats.Points = s.deps.Aggregator.Aggregate(entries, rng, now)
		stats.Result = Result{Status: StatusOK, Message: "Visit analytics loaded."}
	}

	stats.Unique, stats.Visits = analytics.Totals(stats.Points)
	stats.Summary = fmt.Sprintf("Unique users: %d | Total visits: %d", stats.Unique, stats.Visits)
	return stats
}

func (s *Service) fetchVisits(ctx context.Context) ([]models.VisitLogEntry, error) {
	if s.deps.Visits == nil {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, "no visit log source configured")
	}
	return s.deps.Visits.Fetch(ctx, s.limit)
}

// UpdateBooking applies fields to reservation id. Locally issued ids are not
// known remotely and skip the remote call. The change is mirrored into the
// local cache.
func (s *Service) UpdateBooking(ctx context.Context, id string, fields map[string]string) BookingChange {
	if id == "" {
		err := apperrors.New(apperrors.ErrInvalid, "missing reservation id")
		return BookingChange{Result: Result{Status: StatusFailure, Message: "Update failed.", Err: err}}
	}
	payload := editablePayload(fields)

	updated := bookingFromFields(payload)
	if uuid.IsLocal(id) {
		updated.UpdatedDate = s.now().UTC().Format(time.RFC3339)
	} else {
		remote, err := s.deps.Remote.UpdateBooking(ctx, id, payload)
		if err != nil {
			logging.Error("Reservation update failed", err, map[string]interface{}{"booking_id": id})
			return BookingChange{Result: Result{
				Status:  StatusFailure,
				Message: apperrors.Message(err, "Update failed."),
				Err:     err,
			}}
		}
		if remote.ID != "" || remote.HasGuestIdentity() {
			updated = remote
		}
	}

	base, ok := s.deps.Store.Find(ctx, models.Booking{ID: id})
	if !ok {
		base = models.Booking{ID: id}
	}
	merged := base.MergeFrom(updated)
	merged.ID = id
	s.deps.Store.Upsert(ctx, merged)

	return BookingChange{
		Result:  Result{Status: StatusOK, Message: "Reservation updated."},
		Booking: merged,
	}
}

// DeleteBooking removes reservation id remotely and from the local cache.
func (s *Service) DeleteBooking(ctx context.Context, id string) BookingChange {
	if id == "" {
		err := apperrors.New(apperrors.ErrInvalid, "missing reservation id")
		return BookingChange{Result: Result{Status: StatusFailure, Message: "Delete failed.", Err: err}}
	}

	if !uuid.IsLocal(id) {
		if err := s.deps.Remote.DeleteBooking(ctx, id); err != nil {
			logging.Error("Reservation delete failed", err, map[string]interface{}{"booking_id": id})
			return BookingChange{Result: Result{
				Status:  StatusFailure,
				Message: apperrors.Message(err, "Delete failed."),
				Err:     err,
			}}
		}
	}
	s.deps.Store.Remove(ctx, id)

	return BookingChange{
		Result:  Result{Status: StatusOK, Message: "Reservation deleted."},
		Booking: models.Booking{ID: id},
	}
}

// editablePayload keeps only the editable fields, all of them present.
func editablePayload(fields map[string]string) map[string]string {
	payload := models.Booking{}.EditableFields()
	for k := range payload {
		payload[k] = fields[k]
	}
	return payload
}

func bookingFromFields(fields map[string]string) models.Booking {
	return models.Booking{
		GuestName:  fields["guest_name"],
		GuestPhone: fields["guest_phone"],
		GuestEmail: fields["guest_email"],
		Date:       fields["date"],
		TimeSlot:   fields["time_slot"],
		Notes:      fields["notes"],
	}
}
