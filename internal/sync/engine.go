package sync

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/sync/conflict"
)

// DefaultPageSize bounds the remote list fetch.
const DefaultPageSize = 500

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

// DataMode labels where the merged view came from.
type DataMode string

const (
	ModeRemoteLocal DataMode = "remote_local"
	ModeLocalOnly   DataMode = "local_only"
)

// BookingStore is the local cache the engine merges into.
type BookingStore interface {
	ReadAll(ctx context.Context) []models.Booking
	Upsert(ctx context.Context, record models.Booking) models.Booking
	Find(ctx context.Context, record models.Booking) (models.Booking, bool)
}

// BookingLister fetches the remote booking list.
type BookingLister interface {
	ListBookings(ctx context.Context, limit int) ([]models.Booking, error)
}

// MergeResult is the outcome of one MergeAndLoad.
type MergeResult struct {
	Bookings  []models.Booking
	Mode      DataMode
	Err       error // remote failure when Mode is local_only
	Fetched   int
	Conflicts []*models.ConflictLog
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Degraded reports whether the remote list was unavailable.
func (r *MergeResult) Degraded() bool {
	return r.Mode == ModeLocalOnly
}

// SyncEventType names a sync notification.
type SyncEventType string

const (
	SyncEventStarted  SyncEventType = "bookings.syncing"
	SyncEventSynced   SyncEventType = "bookings.synced"
	SyncEventDegraded SyncEventType = "bookings.degraded"
)

// SyncEvent is delivered to the event handler.
type SyncEvent struct {
	Type   SyncEventType
	Result *MergeResult // nil for started events
	Time   time.Time
}

// SyncEventHandler receives sync notifications. It must not block.
type SyncEventHandler func(SyncEvent)

// SyncEngine merges remote truth into the local record store.
type SyncEngine struct {
	store    BookingStore
	remote   BookingLister
	resolver *conflict.Resolver
	pageSize int

	mu       stdsync.RWMutex
	status   SyncStatus
	lastSync *time.Time
	lastErr  error
	handler  SyncEventHandler
}

// Ensure SyncEngine satisfies BookingSyncer at compile time.
var _ BookingSyncer = (*SyncEngine)(nil)

// NewSyncEngine creates a SyncEngine. A nil resolver means remote wins;
// a non-positive pageSize uses DefaultPageSize.
func NewSyncEngine(store BookingStore, remote BookingLister, resolver *conflict.Resolver, pageSize int) *SyncEngine {
	if resolver == nil {
		resolver = conflict.NewResolver(conflict.ResolutionStrategyRemoteWins)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SyncEngine{
		store:    store,
		remote:   remote,
		resolver: resolver,
		pageSize: pageSize,
		status:   SyncStatusIdle,
	}
}

// SetEventHandler sets the event handler for sync notifications.
func (e *SyncEngine) SetEventHandler(handler SyncEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Status returns the current sync status.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// LastSync returns the timestamp of the last successful sync.
func (e *SyncEngine) LastSync() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastError returns the last sync error.
func (e *SyncEngine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// MergeAndLoad fetches the remote list, lets the local cache absorb it, and
// returns the de-duplicated view sorted by date descending then time slot
// ascending. A remote failure yields the local cache alone in local_only mode.
func (e *SyncEngine) MergeAndLoad(ctx context.Context) *MergeResult {
	result := &MergeResult{StartTime: time.Now()}

	e.mu.Lock()
	e.status = SyncStatusSyncing
	e.mu.Unlock()
	e.emit(SyncEvent{Type: SyncEventStarted, Time: result.StartTime})

	remote, err := e.fetchRemote(ctx)
	if err != nil {
		result.Mode = ModeLocalOnly
		result.Err = err
		logging.Warn("Remote booking list unavailable, using local cache",
			map[string]interface{}{"error": err.Error()})
	} else {
		result.Mode = ModeRemoteLocal
		result.Fetched = len(remote)
		result.Conflicts = e.absorb(ctx, remote)
	}

	local := e.store.ReadAll(ctx)
	result.Bookings = Merge(remote, local)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	if result.Err != nil {
		e.status = SyncStatusFailed
		e.lastErr = result.Err
	} else {
		e.status = SyncStatusIdle
		e.lastErr = nil
		end := result.EndTime
		e.lastSync = &end
	}
	e.mu.Unlock()

	eventType := SyncEventSynced
	if result.Degraded() {
		eventType = SyncEventDegraded
	}
	e.emit(SyncEvent{Type: eventType, Result: result, Time: result.EndTime})

	logging.Info("Booking merge completed",
		map[string]interface{}{
			"mode":        result.Mode,
			"fetched":     result.Fetched,
			"bookings":    len(result.Bookings),
			"conflicts":   len(result.Conflicts),
			"duration_ms": result.Duration.Milliseconds(),
		})

	return result
}

func (e *SyncEngine) fetchRemote(ctx context.Context) ([]models.Booking, error) {
	if e.remote == nil {
		return nil, errNoRemote
	}
	remote, err := e.remote.ListBookings(ctx, e.pageSize)
	if err != nil {
		return nil, err
	}
	for i := range remote {
		remote[i].Origin = models.OriginRemote
	}
	return remote, nil
}

// absorb upserts every remote record, passing disagreements with the cached
// copy through the conflict resolver first.
func (e *SyncEngine) absorb(ctx context.Context, remote []models.Booking) []*models.ConflictLog {
	var conflicts []*models.ConflictLog

	for _, record := range remote {
		select {
		case <-ctx.Done():
			return conflicts
		default:
		}

		incoming := record

		if cached, ok := e.store.Find(ctx, incoming); ok {
			if c, found := e.resolver.DetectConflict(&cached, &incoming); found {
				resolved, err := e.resolver.Resolve(c)
				if err != nil {
					logging.Error("Failed to resolve booking conflict", err,
						map[string]interface{}{"booking_id": incoming.ID})
				} else {
					incoming = resolved.Record
					incoming.Origin = models.OriginRemote
					conflicts = append(conflicts, resolved.ConflictLog)
				}
			}
		}

		e.store.Upsert(ctx, incoming)
	}

	return conflicts
}

func (e *SyncEngine) emit(event SyncEvent) {
	e.mu.RLock()
	handler := e.handler
	e.mu.RUnlock()
	if handler != nil {
		handler(event)
	}
}

// Merge folds the lists into one record per id, later records overriding
// earlier ones field by field, and sorts the result. Records without an id
// are skipped.
func Merge(lists ...[]models.Booking) []models.Booking {
	byID := make(map[string]models.Booking)
	var order []string

	for _, list := range lists {
		for _, b := range list {
			if b.ID == "" {
				continue
			}
			existing, ok := byID[b.ID]
			if !ok {
				order = append(order, b.ID)
				byID[b.ID] = b
				continue
			}
			byID[b.ID] = existing.MergeFrom(b)
		}
	}

	merged := make([]models.Booking, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	SortBookings(merged)
	return merged
}

// SortBookings orders by date descending, then time slot ascending.
func SortBookings(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Date == b.Date {
			return a.TimeSlot < b.TimeSlot
		}
		return a.Date > b.Date
	})
}

var errNoRemote = apperrors.New(apperrors.ErrRemoteUnavailable, "no remote booking source configured")
