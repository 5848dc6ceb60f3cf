// Package store is the local record store: a durable cache of booking records
// kept as one JSON array under a single key.
//
// The cache is advisory. Read failures degrade to an empty list and write
// failures are logged and dropped; neither reaches the caller.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/kv"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/uuid"
)

// BookingsKey is the storage key holding the JSON array of bookings.
const BookingsKey = "go_sauna_local_bookings_v1"

// Store reads and writes booking records through a kv.Store.
type Store struct {
	kv  kv.Store
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Store on top of backend.
func New(backend kv.Store) *Store {
	return &Store{kv: backend, now: time.Now}
}

// ReadAll returns every cached booking. Missing, unreadable or malformed data
// yields an empty slice.
func (s *Store) ReadAll(ctx context.Context) []models.Booking {
	raw, ok, err := s.kv.Get(ctx, BookingsKey)
	if err != nil {
		logging.Warn("local bookings unavailable", map[string]interface{}{"error": err.Error()})
		return []models.Booking{}
	}
	if !ok || raw == "" {
		return []models.Booking{}
	}

	var records []models.Booking
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		logging.Warn("local bookings corrupt, treating as empty", map[string]interface{}{"error": err.Error()})
		return []models.Booking{}
	}
	if records == nil {
		return []models.Booking{}
	}
	return records
}

// WriteAll replaces the cached list. Failures are logged and swallowed.
func (s *Store) WriteAll(ctx context.Context, records []models.Booking) {
	if records == nil {
		records = []models.Booking{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		logging.Warn("failed to encode local bookings", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.kv.Set(ctx, BookingsKey, string(data)); err != nil {
		logging.Warn("failed to persist local bookings", map[string]interface{}{"error": err.Error(), "count": len(records)})
	}
}

// Upsert normalizes record, assigns a local id when it has none, and merges it
// onto the stored record with the same id, or else the one with the same merge
// key. When the id and the merge key match different records, the key match is
// folded into the id match and dropped, so each id appears once. New records go
// first. The normalized record is returned.
func (s *Store) Upsert(ctx context.Context, record models.Booking) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := record.Normalize()
	if next.ID == "" {
		next.ID = uuid.NewLocal(s.now())
	}

	records := s.ReadAll(ctx)
	byID, byKey := indexByID(records, next.ID), indexByKey(records, next)
	switch {
	case byID >= 0 && byKey >= 0 && byKey != byID:
		absorbed := records[byKey]
		absorbed.ID = ""
		records[byID] = records[byID].MergeFrom(absorbed).MergeFrom(next)
		records = append(records[:byKey], records[byKey+1:]...)
	case byID >= 0:
		records[byID] = records[byID].MergeFrom(next)
	case byKey >= 0:
		records[byKey] = records[byKey].MergeFrom(next)
	default:
		records = append([]models.Booking{next}, records...)
	}
	s.WriteAll(ctx, records)

	return next
}

// Remove deletes the record with the given id, if any.
func (s *Store) Remove(ctx context.Context, id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.ReadAll(ctx)
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return
	}
	s.WriteAll(ctx, kept)
}

// Find returns the stored record addressing the same reservation as record,
// preferring an id match over a merge-key match.
func (s *Store) Find(ctx context.Context, record models.Booking) (models.Booking, bool) {
	records := s.ReadAll(ctx)
	i := indexByID(records, record.ID)
	if i < 0 {
		i = indexByKey(records, record)
	}
	if i < 0 {
		return models.Booking{}, false
	}
	return records[i], true
}

func indexByID(records []models.Booking, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// indexByKey matches on the merge key; records without an e-mail never match.
func indexByKey(records []models.Booking, target models.Booking) int {
	if target.GuestEmail == "" {
		return -1
	}
	for i, r := range records {
		if r.GuestEmail != "" && r.Key() == target.Key() {
			return i
		}
	}
	return -1
}
