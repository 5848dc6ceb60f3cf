// Package models provides data model definitions for the booking core.
package models

import "strings"

// BookingStatus is the reservation state.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusPending   BookingStatus = "pending"
	StatusCancelled BookingStatus = "cancelled"
)

// Origin is the provenance of a record: captured locally or fetched from the remote API.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Booking is a reservation record. JSON names follow the remote entity API.
type Booking struct {
	ID          string        `json:"id"`
	GuestName   string        `json:"guest_name"`
	GuestPhone  string        `json:"guest_phone"`
	GuestEmail  string        `json:"guest_email"`
	Date        string        `json:"date"`
	TimeSlot    string        `json:"time_slot"`
	Notes       string        `json:"notes"`
	SaunaName   string        `json:"sauna_name"`
	Status      BookingStatus `json:"status"`
	Origin      Origin        `json:"source,omitempty"`
	UpdatedDate string        `json:"updated_date,omitempty"`
}

// MergeKey identifies a reservation independent of its id.
type MergeKey struct {
	GuestEmail string
	Date       string
	TimeSlot   string
}

// Key returns the merge key of b.
func (b Booking) Key() MergeKey {
	return MergeKey{GuestEmail: b.GuestEmail, Date: b.Date, TimeSlot: b.TimeSlot}
}

// SameReservation reports whether a and b address the same reservation, either
// by id or by merge key. The merge key only applies when both e-mails are set.
func SameReservation(a, b Booking) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return a.GuestEmail != "" && b.GuestEmail != "" && a.Key() == b.Key()
}

// Normalize trims every field and applies defaults. The id is left untouched.
func (b Booking) Normalize() Booking {
	b.GuestName = strings.TrimSpace(b.GuestName)
	b.GuestPhone = strings.TrimSpace(b.GuestPhone)
	b.GuestEmail = strings.TrimSpace(b.GuestEmail)
	b.Date = strings.TrimSpace(b.Date)
	b.TimeSlot = strings.TrimSpace(b.TimeSlot)
	b.Notes = strings.TrimSpace(b.Notes)
	b.SaunaName = strings.TrimSpace(b.SaunaName)
	if b.Status == "" {
		b.Status = StatusConfirmed
	}
	if b.Origin == "" {
		b.Origin = OriginLocal
	}
	return b
}

// MergeFrom shallow-merges src onto b: every non-empty field of src replaces
// the field of b, empty fields of src leave b untouched. Once a record has been
// seen from the remote side its origin stays remote.
func (b Booking) MergeFrom(src Booking) Booking {
	setIf(&b.ID, src.ID)
	setIf(&b.GuestName, src.GuestName)
	setIf(&b.GuestPhone, src.GuestPhone)
	setIf(&b.GuestEmail, src.GuestEmail)
	setIf(&b.Date, src.Date)
	setIf(&b.TimeSlot, src.TimeSlot)
	setIf(&b.Notes, src.Notes)
	setIf(&b.SaunaName, src.SaunaName)
	setIf(&b.UpdatedDate, src.UpdatedDate)
	if src.Status != "" {
		b.Status = src.Status
	}
	if src.Origin == OriginRemote || b.Origin == "" {
		b.Origin = src.Origin
	}
	return b
}

// HasGuestIdentity reports whether the record names a guest by name or e-mail.
func (b Booking) HasGuestIdentity() bool {
	return strings.TrimSpace(b.GuestName) != "" || strings.TrimSpace(b.GuestEmail) != ""
}

// EditableFields returns the fields an administrator may change, keyed by their
// remote API names.
func (b Booking) EditableFields() map[string]string {
	return map[string]string{
		"guest_name":  b.GuestName,
		"guest_phone": b.GuestPhone,
		"guest_email": b.GuestEmail,
		"date":        b.Date,
		"time_slot":   b.TimeSlot,
		"notes":       b.Notes,
	}
}

// FieldValues returns the comparable string fields keyed by their API names.
func (b Booking) FieldValues() map[string]string {
	fields := b.EditableFields()
	fields["sauna_name"] = b.SaunaName
	fields["status"] = string(b.Status)
	return fields
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
