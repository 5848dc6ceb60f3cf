package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/analytics"
	"github.com/kimhsiao/gosauna/backend/internal/capture"
	"github.com/kimhsiao/gosauna/backend/internal/console"
	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/kv"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/store"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
	"github.com/kimhsiao/gosauna/backend/internal/sync/scheduler"
)

type fakeGateway struct {
	role      string
	list      []models.Booking
	listErr   error
	updateErr error
	deleteErr error
	deleted   []string
	visits    []models.VisitLogEntry
	visitErr  error
}

func (f *fakeGateway) CurrentUser(context.Context) (*models.User, error) {
	return &models.User{ID: "u1", Role: f.role}, nil
}

func (f *fakeGateway) ListBookings(context.Context, int) ([]models.Booking, error) {
	return f.list, f.listErr
}

func (f *fakeGateway) UpdateBooking(_ context.Context, id string, fields map[string]string) (models.Booking, error) {
	if f.updateErr != nil {
		return models.Booking{}, f.updateErr
	}
	return models.Booking{ID: id, GuestName: fields["guest_name"], GuestEmail: fields["guest_email"]}, nil
}

func (f *fakeGateway) DeleteBooking(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeGateway) Fetch(context.Context, int) ([]models.VisitLogEntry, error) {
	return f.visits, f.visitErr
}

type testServer struct {
	api     *API
	gateway *fakeGateway
	records *store.Store
	handler http.Handler
}

func newTestServer(t *testing.T, gw *fakeGateway, rps float64) *testServer {
	t.Helper()

	records := store.New(kv.NewMemory())
	engine := syncpkg.NewSyncEngine(records, gw, nil, 0)
	sched := scheduler.NewScheduler(engine, nil)
	hub := NewWSHub([]string{"*"})
	page := capture.NewSnapshotPage()
	controller := capture.NewController(records, page, capture.Config{
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     4,
		OnOutcome:    hub.BroadcastCapture,
	})
	t.Cleanup(func() {
		controller.Stop()
		hub.Close()
	})

	svc := console.NewService(console.Deps{
		Identity:   gw,
		Refresher:  sched,
		Remote:     gw,
		Store:      records,
		Visits:     gw,
		Aggregator: analytics.New(time.UTC),
	}, console.Options{})

	api := &API{
		ctx:       context.Background(),
		console:   svc,
		scheduler: sched,
		capture:   controller,
		page:      page,
		hub:       hub,
		limiter:   NewRateLimiter(rps),
	}
	return &testServer{
		api:     api,
		gateway: gw,
		records: records,
		handler: newHandler(api, []string{"*"}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, 0)

	rec, body := s.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["capture"] != string(capture.StateIdle) {
		t.Errorf("Expected idle capture state, got %v", body["capture"])
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected security headers to be set")
	}
}

func TestAdminGuard(t *testing.T) {
	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin", models.RoleAdmin, http.StatusOK},
		{"regular user", "user", http.StatusForbidden},
		{"no role", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeGateway{role: tt.role}, 0)
			rec, _ := s.do(t, http.MethodGet, "/api/bookings", nil)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}

			_, me := s.do(t, http.MethodGet, "/api/admin/me", nil)
			if me["admin"] != (tt.want == http.StatusOK) {
				t.Errorf("Unexpected admin flag %v", me["admin"])
			}
		})
	}
}

func TestListBookings(t *testing.T) {
	t.Run("remote and local", func(t *testing.T) {
		gw := &fakeGateway{role: models.RoleAdmin, list: []models.Booking{
			{ID: "r1", GuestEmail: "a@example.com", Date: "2024-03-01", TimeSlot: "10:00"},
		}}
		s := newTestServer(t, gw, 0)
		s.records.Upsert(context.Background(), models.Booking{GuestName: "Local", Date: "2024-03-02"})

		rec, body := s.do(t, http.MethodGet, "/api/bookings", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if body["mode_label"] != console.ModeLabelRemoteLocal {
			t.Errorf("Expected remote label, got %v", body["mode_label"])
		}
		bookings := body["bookings"].([]interface{})
		if len(bookings) != 2 {
			t.Fatalf("Expected 2 bookings, got %d", len(bookings))
		}
		if first := bookings[0].(map[string]interface{}); first["date"] != "2024-03-02" {
			t.Errorf("Expected newest date first, got %v", first["date"])
		}
	})

	t.Run("remote down", func(t *testing.T) {
		gw := &fakeGateway{role: models.RoleAdmin, listErr: apperrors.New(apperrors.ErrRemoteUnavailable, "down")}
		s := newTestServer(t, gw, 0)
		s.records.Upsert(context.Background(), models.Booking{GuestName: "Local", Date: "2024-03-02"})

		rec, body := s.do(t, http.MethodGet, "/api/bookings", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if body["status"] != string(console.StatusDegraded) {
			t.Errorf("Expected degraded status, got %v", body["status"])
		}
		if body["mode_label"] != console.ModeLabelLocalOnly {
			t.Errorf("Expected local-only label, got %v", body["mode_label"])
		}
		if got := len(body["bookings"].([]interface{})); got != 1 {
			t.Errorf("Expected 1 local booking, got %d", got)
		}
	})
}

func TestUpdateBooking(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		updateErr error
		want      int
	}{
		{"remote id", "r1", nil, http.StatusOK},
		{"local id skips remote", "local_1700000000000_abcdef", apperrors.New(apperrors.ErrRemoteUnavailable, "unused"), http.StatusOK},
		{"remote rejects", "r1", apperrors.WithStatus(http.StatusBadRequest, "Invalid date"), http.StatusBadGateway},
		{"remote missing", "r1", apperrors.WithStatus(http.StatusNotFound, "Not found"), http.StatusNotFound},
		{"remote unreachable", "r1", apperrors.New(apperrors.ErrRemoteUnavailable, "down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{role: models.RoleAdmin, updateErr: tt.updateErr}
			s := newTestServer(t, gw, 0)

			rec, body := s.do(t, http.MethodPut, "/api/bookings/"+tt.id, map[string]string{
				"guest_name":  "Ann",
				"guest_email": "ann@example.com",
			})
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d (%v)", tt.want, rec.Code, body)
			}
			stored, ok := s.records.Find(context.Background(), models.Booking{ID: tt.id})
			if tt.want == http.StatusOK {
				if !ok || stored.GuestName != "Ann" {
					t.Errorf("Expected local copy to be updated, got %+v (found=%v)", stored, ok)
				}
			} else if ok {
				t.Errorf("Expected no local copy after failure, got %+v", stored)
			}
		})
	}
}

func TestUpdateBooking_invalidBody(t *testing.T) {
	s := newTestServer(t, &fakeGateway{role: models.RoleAdmin}, 0)

	req := httptest.NewRequest(http.MethodPut, "/api/bookings/r1", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("removes remote and local", func(t *testing.T) {
		gw := &fakeGateway{role: models.RoleAdmin}
		s := newTestServer(t, gw, 0)
		s.records.Upsert(ctx, models.Booking{ID: "r1", GuestName: "Ann"})

		rec, _ := s.do(t, http.MethodDelete, "/api/bookings/r1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if len(gw.deleted) != 1 || gw.deleted[0] != "r1" {
			t.Errorf("Expected remote delete of r1, got %v", gw.deleted)
		}
		if _, ok := s.records.Find(ctx, models.Booking{ID: "r1"}); ok {
			t.Error("Expected local copy to be removed")
		}
	})

	t.Run("failure keeps local copy", func(t *testing.T) {
		gw := &fakeGateway{role: models.RoleAdmin, deleteErr: apperrors.WithStatus(http.StatusInternalServerError, "boom")}
		s := newTestServer(t, gw, 0)
		s.records.Upsert(ctx, models.Booking{ID: "r1", GuestName: "Ann"})

		rec, body := s.do(t, http.MethodDelete, "/api/bookings/r1", nil)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("Expected 502, got %d", rec.Code)
		}
		if body["message"] != "boom" {
			t.Errorf("Expected remote message, got %v", body["message"])
		}
		if _, ok := s.records.Find(ctx, models.Booking{ID: "r1"}); !ok {
			t.Error("Expected local copy to be kept")
		}
	})
}

func TestVisitStats(t *testing.T) {
	tests := []struct {
		query  string
		rng    models.Range
		points int
	}{
		{"", models.RangeWeek, analytics.BucketCount(models.RangeWeek)},
		{"?range=day", models.RangeDay, analytics.BucketCount(models.RangeDay)},
		{"?range=month", models.RangeMonth, analytics.BucketCount(models.RangeMonth)},
		{"?range=YEAR", models.RangeYear, analytics.BucketCount(models.RangeYear)},
		{"?range=decade", models.RangeWeek, analytics.BucketCount(models.RangeWeek)},
	}

	for _, tt := range tests {
		t.Run(string(tt.rng)+tt.query, func(t *testing.T) {
			gw := &fakeGateway{role: models.RoleAdmin, visits: []models.VisitLogEntry{
				{"timestamp": time.Now().UTC().Format(time.RFC3339), "user_id": "u1"},
			}}
			s := newTestServer(t, gw, 0)

			rec, body := s.do(t, http.MethodGet, "/api/visits"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if body["range"] != string(tt.rng) {
				t.Errorf("Expected range %s, got %v", tt.rng, body["range"])
			}
			if got := len(body["points"].([]interface{})); got != tt.points {
				t.Errorf("Expected %d points, got %d", tt.points, got)
			}
		})
	}
}

func TestVisitStats_unavailable(t *testing.T) {
	gw := &fakeGateway{role: models.RoleAdmin, visitErr: apperrors.New(apperrors.ErrRemoteUnavailable, "down")}
	s := newTestServer(t, gw, 0)

	rec, body := s.do(t, http.MethodGet, "/api/visits?range=day", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["status"] != string(console.StatusFailure) {
		t.Errorf("Expected failure status, got %v", body["status"])
	}
	if body["summary"] != "Unique users: 0 | Total visits: 0" {
		t.Errorf("Unexpected summary %v", body["summary"])
	}
}

func bookingPage(headings ...string) capture.PageSnapshot {
	return capture.PageSnapshot{
		Inputs: []capture.Input{
			{Placeholder: "John Doe", Value: "Ann"},
			{Placeholder: "john@example.com", Value: "ann@example.com"},
		},
		Summary:  capture.Summary{Sauna: "Lakeside", Date: "2024-03-15", Time: "18:00"},
		Title:    "Lakeside",
		Headings: headings,
	}
}

func TestCapture_commit(t *testing.T) {
	s := newTestServer(t, &fakeGateway{}, 0)

	rec, _ := s.do(t, http.MethodPost, "/api/capture/snapshot", bookingPage())
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec, body := s.do(t, http.MethodPost, "/api/capture/click", clickRequest{
		Label:    "  Confirm Booking ",
		Snapshot: func() *capture.PageSnapshot { p := bookingPage("Booking Confirmed!"); return &p }(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["result"] != string(capture.ClickWatching) {
		t.Fatalf("Expected watching, got %v", body["result"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.api.capture.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	_, state := s.do(t, http.MethodGet, "/api/capture/state", nil)
	last, ok := state["last"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected a finished session, got %v", state)
	}
	if last["state"] != string(capture.StateCommitted) {
		t.Errorf("Expected committed, got %v", last["state"])
	}

	stored := s.records.ReadAll(context.Background())
	if len(stored) != 1 || stored[0].GuestEmail != "ann@example.com" {
		t.Errorf("Expected captured booking in store, got %+v", stored)
	}
}

func TestCapture_clicks(t *testing.T) {
	tests := []struct {
		name  string
		label string
		page  capture.PageSnapshot
		want  capture.ClickResult
	}{
		{"other control", "Cancel", bookingPage(), capture.ClickIgnored},
		{"no guest identity", "Confirm Booking", capture.PageSnapshot{Title: "Lakeside"}, capture.ClickSuppressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeGateway{}, 0)
			page := tt.page
			_, body := s.do(t, http.MethodPost, "/api/capture/click", clickRequest{Label: tt.label, Snapshot: &page})
			if body["result"] != string(tt.want) {
				t.Errorf("Expected %s, got %v", tt.want, body["result"])
			}
			if got := s.records.ReadAll(context.Background()); len(got) != 0 {
				t.Errorf("Expected empty store, got %+v", got)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeGateway{role: models.RoleAdmin}, 1)

	first, _ := s.do(t, http.MethodGet, "/api/admin/me", nil)
	second, body := s.do(t, http.MethodGet, "/api/admin/me", nil)
	if first.Code != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", second.Code)
	}
	if body["message"] != "Too many requests" {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestRateLimiter_evictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	now = now.Add(visitorTTL + time.Second)
	rl.getLimiter("10.0.0.2")

	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("Expected idle visitor to be evicted")
	}
	if len(rl.visitors) != 1 {
		t.Errorf("Expected 1 visitor, got %d", len(rl.visitors))
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://admin.example"}, "https://admin.example", true},
		{"unlisted", []string{"https://admin.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://admin.example"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(req); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
