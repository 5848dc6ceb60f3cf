// Package scheduler refreshes the merged booking view in the background.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/logging"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
)

// Scheduler manages background merge operations.
type Scheduler struct {
	engine       syncpkg.BookingSyncer
	syncInterval time.Duration
	syncTimeout  time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
	isRunning    bool
	isOnline     bool
	lastSyncTime time.Time
	inFlight     int
	latest       *syncpkg.MergeResult
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval time.Duration // How often to refresh when online (default: 5 minutes)
	SyncTimeout  time.Duration // Upper bound of one refresh (default: 1 minute)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval: 5 * time.Minute,
		SyncTimeout:  1 * time.Minute,
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine syncpkg.BookingSyncer, config *SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config == nil {
		config = defaults
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = defaults.SyncInterval
	}
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = defaults.SyncTimeout
	}

	return &Scheduler{
		engine:       engine,
		syncInterval: config.SyncInterval,
		syncTimeout:  config.SyncTimeout,
		stopCh:       make(chan struct{}),
		isOnline:     true, // Assume online initially
	}
}

// Start starts the background refresh loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.periodicSyncLoop(ctx)

	logging.Info("Background sync scheduler started",
		map[string]interface{}{"interval_seconds": s.syncInterval.Seconds()})
}

// Stop stops the scheduler and waits for in-flight refreshes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background sync scheduler stopped", nil)
}

// SetOnlineStatus changes the online status of the scheduler.
// When offline, periodic refreshes are skipped.
func (s *Scheduler) SetOnlineStatus(isOnline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasOnline := s.isOnline
	s.isOnline = isOnline

	if wasOnline != isOnline {
		logging.Info("Online status changed",
			map[string]interface{}{
				"was_online": wasOnline,
				"is_online":  isOnline,
			})
	}
}

func (s *Scheduler) periodicSyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			if !s.TriggerSync(ctx) {
				logging.Debug("Sync already in progress, skipping", nil)
			}
		}
	}
}

// TriggerSync starts a refresh in the background.
// Returns true if it was started, false if one is already in progress.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	s.mu.Lock()
	if s.inFlight > 0 {
		s.mu.Unlock()
		return false
	}
	s.inFlight++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, "periodic")
	}()
	return true
}

// SyncNow refreshes immediately and waits for the result.
func (s *Scheduler) SyncNow(ctx context.Context) *syncpkg.MergeResult {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()

	return s.run(ctx, "manual")
}

// run performs one merge; the caller has already counted it in inFlight.
func (s *Scheduler) run(ctx context.Context, trigger string) *syncpkg.MergeResult {
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	result := s.engine.MergeAndLoad(syncCtx)

	s.mu.Lock()
	s.latest = result
	if !result.Degraded() {
		s.lastSyncTime = result.EndTime
	}
	s.mu.Unlock()

	logging.Debug("Sync finished",
		map[string]interface{}{
			"trigger":  trigger,
			"mode":     result.Mode,
			"bookings": len(result.Bookings),
		})

	return result
}

// Latest returns the result of the most recent refresh, or nil before the first.
func (s *Scheduler) Latest() *syncpkg.MergeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// SchedulerStatus is a snapshot of the scheduler state.
type SchedulerStatus struct {
	IsRunning      bool               `json:"is_running"`
	IsOnline       bool               `json:"is_online"`
	LastSyncTime   *time.Time         `json:"last_sync_time,omitempty"`
	SyncInProgress bool               `json:"sync_in_progress"`
	EngineStatus   syncpkg.SyncStatus `json:"engine_status"`
	LastError      string             `json:"last_error,omitempty"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	status := SchedulerStatus{
		IsRunning:      s.isRunning,
		IsOnline:       s.isOnline,
		SyncInProgress: s.inFlight > 0,
	}
	if !s.lastSyncTime.IsZero() {
		t := s.lastSyncTime
		status.LastSyncTime = &t
	}
	s.mu.RUnlock()

	status.EngineStatus = s.engine.Status()
	if err := s.engine.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// IsOnline returns whether the scheduler is in online mode.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
