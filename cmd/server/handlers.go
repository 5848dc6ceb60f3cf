package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kimhsiao/gosauna/backend/internal/capture"
	"github.com/kimhsiao/gosauna/backend/internal/console"
	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/sync/scheduler"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// API serves the booking core over HTTP.
type API struct {
	ctx       context.Context // outlives requests; used for background refreshes
	console   *console.Service
	scheduler *scheduler.Scheduler
	capture   *capture.Controller
	page      *capture.SnapshotPage
	hub       *WSHub
	limiter   *RateLimiter
}

// Routes registers every endpoint.
func (a *API) Routes() *httprouter.Router {
	router := httprouter.New()

	router.GET("/api/health", a.health)
	router.GET("/ws", HandleWebSocket(a.hub))

	router.GET("/api/admin/me", a.limiter.Limit(a.adminMe))
	router.GET("/api/bookings", a.limiter.Limit(a.requireAdmin(a.listBookings)))
	router.POST("/api/bookings/sync", a.limiter.Limit(a.requireAdmin(a.triggerSync)))
	router.GET("/api/bookings/sync", a.limiter.Limit(a.requireAdmin(a.syncStatus)))
	router.PUT("/api/bookings/:id", a.limiter.Limit(a.requireAdmin(a.updateBooking)))
	router.DELETE("/api/bookings/:id", a.limiter.Limit(a.requireAdmin(a.deleteBooking)))
	router.GET("/api/visits", a.limiter.Limit(a.requireAdmin(a.visitStats)))

	router.POST("/api/capture/snapshot", a.limiter.Limit(a.captureSnapshot))
	router.POST("/api/capture/click", a.limiter.Limit(a.captureClick))
	router.GET("/api/capture/state", a.captureState)

	return router
}

// requireAdmin rejects callers whose credential is not an admin.
func (a *API) requireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !a.console.ResolveAdmin(r.Context()) {
			writeJSON(w, http.StatusForbidden, console.Result{
				Status:  console.StatusFailure,
				Message: "Admin access required.",
			})
			return
		}
		next(w, r, ps)
	}
}

// health handles GET /api/health
func (a *API) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "gosauna-core",
		"sync":      a.scheduler.GetStatus(),
		"capture":   a.capture.State(),
		"ws_online": a.hub.ClientCount(),
	})
}

// adminMe handles GET /api/admin/me
func (a *API) adminMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]bool{"admin": a.console.ResolveAdmin(r.Context())})
}

// listBookings handles GET /api/bookings
// Degraded results are still 200; the banner carries the data mode.
func (a *API) listBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.console.LoadBookings(r.Context()))
}

// triggerSync handles POST /api/bookings/sync
func (a *API) triggerSync(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	started := a.scheduler.TriggerSync(a.ctx)
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{
		"started": started,
		"sync":    a.scheduler.GetStatus(),
	})
}

// syncStatus handles GET /api/bookings/sync
func (a *API) syncStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.scheduler.GetStatus())
}

// updateBooking handles PUT /api/bookings/:id
func (a *API) updateBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var fields map[string]string
	if err := decodeBody(r, &fields); err != nil {
		writeJSON(w, http.StatusBadRequest, console.Result{
			Status:  console.StatusFailure,
			Message: "Invalid request body.",
		})
		return
	}
	change := a.console.UpdateBooking(r.Context(), ps.ByName("id"), fields)
	writeJSON(w, statusFor(change.Result), change)
}

// deleteBooking handles DELETE /api/bookings/:id
func (a *API) deleteBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	change := a.console.DeleteBooking(r.Context(), ps.ByName("id"))
	writeJSON(w, statusFor(change.Result), change)
}

// visitStats handles GET /api/visits?range=day|week|month|year
// An unavailable log still returns the zero series.
func (a *API) visitStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rng := models.ParseRange(r.URL.Query().Get("range"), models.RangeWeek)
	writeJSON(w, http.StatusOK, a.console.LoadVisitStats(r.Context(), rng))
}

// captureSnapshot handles POST /api/capture/snapshot
// The in-page script reports what the booking page currently shows.
func (a *API) captureSnapshot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var snap capture.PageSnapshot
	if err := decodeBody(r, &snap); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid snapshot"})
		return
	}
	a.page.Update(snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": a.capture.State()})
}

type clickRequest struct {
	Label    string                `json:"label"`
	Snapshot *capture.PageSnapshot `json:"snapshot,omitempty"`
}

// captureClick handles POST /api/capture/click
func (a *API) captureClick(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req clickRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid click"})
		return
	}
	if req.Snapshot != nil {
		a.page.Update(*req.Snapshot)
	}

	result, session := a.capture.HandleClick(r.Context(), req.Label)
	if result == capture.ClickWatching && session != nil {
		a.hub.BroadcastCapture(*session)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":  result,
		"session": session,
	})
}

// captureState handles GET /api/capture/state
func (a *API) captureState(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	body := map[string]interface{}{"state": a.capture.State()}
	if s, ok := a.capture.Active(); ok {
		body["active"] = s
	}
	if s, ok := a.capture.Last(); ok {
		body["last"] = s
	}
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps a console result to an HTTP status.
func statusFor(res console.Result) int {
	if res.Status != console.StatusFailure {
		return http.StatusOK
	}
	switch apperrors.CodeOf(res.Err) {
	case apperrors.ErrInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrRemoteStatus:
		var appErr *apperrors.AppError
		if stderrors.As(res.Err, &appErr) && appErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case apperrors.ErrRemoteUnavailable, apperrors.ErrRemoteDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
