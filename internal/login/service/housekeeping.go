package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/internal/login/store"
)

// HousekeepingService periodically clears lapsed login codes and expired
// login sessions so neither accumulates without bound.
type HousekeepingService struct {
	Store    store.Store
	Sessions *session.Manager
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, sessions *session.Manager, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Sessions: sessions,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of expired records. Each step is
// independent, a failure in one does not stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Debug("starting housekeeping cleanup")

	if err := s.Store.Accounts().PurgeExpiredLoginCodes(ctx, time.Now()); err != nil {
		s.Logger.Error("failed to purge expired login codes", "error", err)
	}

	if s.Sessions != nil {
		if purged := s.Sessions.PurgeExpired(); purged > 0 {
			s.Logger.Debug("purged expired login sessions", "count", purged)
		}
	}

	s.Logger.Debug("housekeeping cleanup completed")
}
