package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when a sync is triggered within the cooldown.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncCooldown is the minimum time between two triggered syncs.
const SyncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	ModelsAdded     int       `json:"models_added"`
	ModelsRemoved   int       `json:"models_removed"`
	ModelsTotal     int       `json:"models_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService keeps the model registry in line with remote storage, on a
// schedule and on demand.
type SyncService struct {
	registry *ModelRegistry
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	lastTrigger time.Time
	triggerMu   sync.Mutex

	// serializes scheduled and triggered syncs
	syncMu sync.Mutex

	nextSync   time.Time
	nextSyncMu sync.RWMutex
}

// NewSyncService creates a new sync service. An interval of zero disables
// scheduled syncs.
func NewSyncService(registry *ModelRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduled sync disabled")
		return
	}
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.setNextSync(s.now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(s.now().Add(s.interval))
		}
	}
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync now. It returns ErrRateLimited when the last
// triggered sync started less than SyncCooldown ago.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.triggerMu.Lock()
	now := s.now()
	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < SyncCooldown {
		s.triggerMu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = now
	s.triggerMu.Unlock()

	return s.sync(ctx)
}

func (s *SyncService) sync(ctx context.Context) (SyncResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		ModelsAdded:   stats.Added,
		ModelsRemoved: stats.Removed,
		ModelsTotal:   s.registry.ModelCount(),
		SyncedAt:      s.now(),
	}
	if s.interval > 0 {
		result.NextScheduledAt = s.getNextSync()
	}
	return result, nil
}

func (s *SyncService) setNextSync(t time.Time) {
	s.nextSyncMu.Lock()
	defer s.nextSyncMu.Unlock()
	s.nextSync = t
}

func (s *SyncService) getNextSync() time.Time {
	s.nextSyncMu.RLock()
	defer s.nextSyncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
