package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// ResponseShapes are the object fields that may wrap a list payload, tried in
// order after a bare array.
var ResponseShapes = []string{"items", "data", "events"}

// ListBookings fetches up to limit bookings, newest date first. Elements that
// do not decode as a booking are logged and skipped.
func (g *Gateway) ListBookings(ctx context.Context, limit int) ([]models.Booking, error) {
	payload, err := g.Request(ctx, http.MethodGet, fmt.Sprintf("/entities/Booking?limit=%d&sort=-date", limit), nil)
	if err != nil {
		return nil, err
	}

	items, err := unwrapList(payload)
	if err != nil {
		return nil, err
	}
	bookings := make([]models.Booking, 0, len(items))
	for idx, item := range items {
		var b models.Booking
		if err := json.Unmarshal(item, &b); err != nil {
			logging.Warn("Skipping malformed booking", map[string]interface{}{
				"index": idx,
				"error": err.Error(),
			})
			continue
		}
		b.Origin = models.OriginRemote
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// UpdateBooking sends the editable fields of id and returns the updated
// record, or a zero Booking when the server replies without a body.
func (g *Gateway) UpdateBooking(ctx context.Context, id string, fields map[string]string) (models.Booking, error) {
	payload, err := g.Request(ctx, http.MethodPut, "/entities/Booking/"+url.PathEscape(id), fields)
	if err != nil {
		return models.Booking{}, err
	}
	var updated models.Booking
	if len(payload) == 0 {
		return updated, nil
	}
	if err := json.Unmarshal(payload, &updated); err != nil {
		return models.Booking{}, apperrors.Wrap(apperrors.ErrRemoteDecode, "malformed booking", err)
	}
	updated.Origin = models.OriginRemote
	return updated, nil
}

// DeleteBooking removes id on the remote side.
func (g *Gateway) DeleteBooking(ctx context.Context, id string) error {
	_, err := g.Request(ctx, http.MethodDelete, "/entities/Booking/"+url.PathEscape(id), nil)
	return err
}

// CurrentUser returns the identity behind the current token.
func (g *Gateway) CurrentUser(ctx context.Context) (*models.User, error) {
	payload, err := g.Request(ctx, http.MethodGet, "/entities/User/me", nil)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, apperrors.New(apperrors.ErrNotFound, "no current user")
	}
	var user models.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteDecode, "malformed user", err)
	}
	return &user, nil
}

// VisitLogs fetches up to limit raw visit-log events for this tenant.
// Payloads in none of the accepted shapes yield an empty list.
func (g *Gateway) VisitLogs(ctx context.Context, limit int) ([]models.VisitLogEntry, error) {
	path := fmt.Sprintf("/app-logs/%s?limit=%d", url.PathEscape(g.appID), limit)
	payload, err := g.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return DecodeVisitLogs(payload), nil
}

// DecodeVisitLogs extracts visit-log events from any accepted payload shape.
// Unrecognised payloads and non-object elements are dropped.
func DecodeVisitLogs(payload []byte) []models.VisitLogEntry {
	items, err := unwrapList(payload)
	if err != nil {
		return []models.VisitLogEntry{}
	}
	entries := make([]models.VisitLogEntry, 0, len(items))
	for _, item := range items {
		var entry models.VisitLogEntry
		if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// unwrapList returns the elements of a bare array or of the first array-valued
// field named in ResponseShapes. An empty payload is an empty list.
func unwrapList(payload json.RawMessage) ([]json.RawMessage, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(payload, &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteDecode, "unexpected response shape", err)
	}
	for _, field := range ResponseShapes {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrRemoteDecode, "unexpected response shape")
}
