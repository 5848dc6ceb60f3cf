package conflict

import (
	"testing"

	"github.com/kimhsiao/gosauna/backend/internal/models"
)

func bookingPair() (*models.Booking, *models.Booking) {
	local := &models.Booking{
		ID:         "local_1_abcdef",
		GuestName:  "Ann",
		GuestEmail: "a@x.com",
		Date:       "2024-01-01",
		TimeSlot:   "10:00",
		Notes:      "towel",
	}
	remote := &models.Booking{
		ID:         "r1",
		GuestName:  "Ann Lee",
		GuestEmail: "a@x.com",
		Date:       "2024-01-01",
		TimeSlot:   "10:00",
		Notes:      "",
		Origin:     models.OriginRemote,
	}
	return local, remote
}

// TestDetectConflict verifies only fields set on both sides are disputed.
func TestDetectConflict(t *testing.T) {
	resolver := NewResolver(ResolutionStrategyRemoteWins)
	local, remote := bookingPair()

	conflict, ok := resolver.DetectConflict(local, remote)
	if !ok {
		t.Fatal("expected a conflict")
	}
	if len(conflict.Fields) != 1 || conflict.Fields[0] != "guest_name" {
		t.Errorf("Fields = %v, want [guest_name]", conflict.Fields)
	}
	if conflict.BookingID != "r1" {
		t.Errorf("BookingID = %q", conflict.BookingID)
	}
}

// TestDetectConflict_none covers agreement, nil input and different reservations.
func TestDetectConflict_none(t *testing.T) {
	resolver := NewResolver(ResolutionStrategyRemoteWins)
	local, remote := bookingPair()
	remote.GuestName = ""

	if _, ok := resolver.DetectConflict(local, remote); ok {
		t.Error("empty remote field should not conflict")
	}
	if _, ok := resolver.DetectConflict(nil, remote); ok {
		t.Error("nil local should not conflict")
	}

	other := *remote
	other.ID = "r2"
	other.TimeSlot = "11:00"
	other.GuestName = "Bo"
	if _, ok := resolver.DetectConflict(local, &other); ok {
		t.Error("different reservations should not conflict")
	}
}

// TestResolveRemoteWins applies the remote record.
func TestResolveRemoteWins(t *testing.T) {
	resolver := NewResolver(ResolutionStrategyRemoteWins)
	local, remote := bookingPair()
	conflict, _ := resolver.DetectConflict(local, remote)

	result, err := resolver.Resolve(conflict)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Record.GuestName != "Ann Lee" {
		t.Errorf("GuestName = %q, want remote value", result.Record.GuestName)
	}
	if result.ConflictLog.Resolution != ResolutionRemoteWins {
		t.Errorf("Resolution = %q", result.ConflictLog.Resolution)
	}
	if result.ConflictLog.LocalID != local.ID {
		t.Errorf("LocalID = %q", result.ConflictLog.LocalID)
	}
}

// TestResolveLastWriteWins compares updated_date.
func TestResolveLastWriteWins(t *testing.T) {
	tests := []struct {
		name          string
		localUpdated  string
		remoteUpdated string
		wantName      string
		wantRes       string
	}{
		{"local newer", "2024-02-01T10:00:00Z", "2024-01-01T10:00:00Z", "Ann", ResolutionLocalWins},
		{"remote newer", "2024-01-01T10:00:00Z", "2024-02-01T10:00:00Z", "Ann Lee", ResolutionRemoteWins},
		{"same time", "2024-01-01T10:00:00Z", "2024-01-01T10:00:00Z", "Ann Lee", ResolutionRemoteWins},
		{"local unknown", "", "2024-01-01T10:00:00Z", "Ann Lee", ResolutionRemoteWins},
		{"remote unknown", "2024-01-01T10:00:00Z", "", "Ann", ResolutionLocalWins},
		{"remote naive micro", "2024-02-01T10:00:00Z", "2024-01-01T10:00:00.123000", "Ann", ResolutionLocalWins},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(ParseStrategy("last_write_wins"))
			local, remote := bookingPair()
			local.UpdatedDate = tt.localUpdated
			remote.UpdatedDate = tt.remoteUpdated

			conflict, ok := resolver.DetectConflict(local, remote)
			if !ok {
				t.Fatal("expected a conflict")
			}
			result, err := resolver.Resolve(conflict)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if result.Record.GuestName != tt.wantName {
				t.Errorf("GuestName = %q, want %q", result.Record.GuestName, tt.wantName)
			}
			if result.ConflictLog.Resolution != tt.wantRes {
				t.Errorf("Resolution = %q, want %q", result.ConflictLog.Resolution, tt.wantRes)
			}
			if result.Record.ID != "r1" {
				t.Errorf("ID = %q, want remote id", result.Record.ID)
			}
		})
	}
}

// TestResolve_invalid rejects incomplete conflicts.
func TestResolve_invalid(t *testing.T) {
	resolver := NewResolver(ResolutionStrategyRemoteWins)
	_, remote := bookingPair()

	if _, err := resolver.Resolve(&Conflict{Remote: remote}); err != ErrInvalidConflict {
		t.Errorf("error = %v, want ErrInvalidConflict", err)
	}
	if !IsConflictError(ErrBookingMismatch) {
		t.Error("IsConflictError(ErrBookingMismatch) = false")
	}

	other := models.Booking{ID: "x", GuestEmail: "b@x.com"}
	if _, err := resolver.Resolve(&Conflict{Local: &other, Remote: remote}); err != ErrBookingMismatch {
		t.Errorf("error = %v, want ErrBookingMismatch", err)
	}
}

// TestParseStrategy defaults to remote wins.
func TestParseStrategy(t *testing.T) {
	if ParseStrategy("") != ResolutionStrategyRemoteWins || ParseStrategy("manual") != ResolutionStrategyRemoteWins {
		t.Error("unknown strategies should default to remote_wins")
	}
	if ParseStrategy("last_write_wins") != ResolutionStrategyLastWriteWins {
		t.Error("last_write_wins not parsed")
	}
}
