package worker

import (
	"context"
	"errors"
	"sync"

	"stocklink/internal/repository"
	"stocklink/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// PullScheduler runs the scheduled pulls: one cron entry per active link with
// pull enabled. Rebuild reloads the entry set from the database after any
// link mutation.
type PullScheduler struct {
	mu              sync.Mutex
	cron            *cron.Cron
	entries         map[uuid.UUID]cron.EntryID
	linkRepo        repository.LinkRepository
	pullService     service.PullService
	defaultInterval string
}

func NewPullScheduler(linkRepo repository.LinkRepository, pullService service.PullService, defaultInterval string) *PullScheduler {
	return &PullScheduler{
		cron:            cron.New(),
		entries:         make(map[uuid.UUID]cron.EntryID),
		linkRepo:        linkRepo,
		pullService:     pullService,
		defaultInterval: defaultInterval,
	}
}

// Start loads the initial schedule and starts the cron runner.
func (s *PullScheduler) Start(ctx context.Context) {
	s.reload(ctx)
	s.cron.Start()
	log.Info().Int("entries", len(s.entries)).Msg("pull_scheduler: started")
}

// Stop halts the cron runner and waits for in-flight pulls it triggered.
func (s *PullScheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("pull_scheduler: stopped")
}

// Rebuild reloads the schedule in the background. Implements the notifier
// hook the link service calls after mutations.
func (s *PullScheduler) Rebuild() {
	go s.reload(context.Background())
}

func (s *PullScheduler) reload(ctx context.Context) {
	links, err := s.linkRepo.ListActivePull(ctx)
	if err != nil {
		log.Error().Err(err).Msg("pull_scheduler: loading links failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	for i := range links {
		link := links[i]
		if link.Store == nil || link.Integration == nil {
			continue
		}
		interval := link.SyncConfig.Pull.Interval
		if interval == "" {
			interval = s.defaultInterval
		}

		tenantID := link.Store.TenantID
		storeID := link.StoreID
		integrationID := link.IntegrationID

		entryID, err := s.cron.AddFunc(interval, func() {
			s.runPull(tenantID, storeID, integrationID)
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("link_id", link.ID.String()).
				Str("interval", interval).
				Msg("pull_scheduler: invalid interval, link skipped")
			continue
		}
		s.entries[link.ID] = entryID
	}
	log.Info().Int("entries", len(s.entries)).Msg("pull_scheduler: schedule rebuilt")
}

func (s *PullScheduler) runPull(tenantID, storeID, integrationID uuid.UUID) {
	result, err := s.pullService.Pull(context.Background(), tenantID, storeID, integrationID, service.PullOptions{})
	switch {
	case errors.Is(err, service.ErrPullInProgress):
		// the previous run is still going, this tick just skips
		return
	case err != nil:
		log.Error().
			Err(err).
			Str("store_id", storeID.String()).
			Str("integration_id", integrationID.String()).
			Msg("pull_scheduler: scheduled pull failed")
		return
	}
	log.Info().
		Str("store_id", storeID.String()).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("pull_scheduler: scheduled pull finished")
}
