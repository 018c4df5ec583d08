package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"

	"tradedash/src/fetcher"
	"tradedash/src/reconcile"
	"tradedash/src/repository"
)

const runTimeout = 2 * time.Minute

// Scheduler periodically reconciles every user that has stored broker
// credentials.
type Scheduler struct {
	cron        *cron.Cron
	credentials *repository.BotCredentialRepository
	positions   *repository.PositionRepository
	trades      *repository.TradeRepository
}

func New() *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		credentials: repository.NewBotCredentialRepository(),
		positions:   repository.NewPositionRepository(),
		trades:      repository.NewTradeRepository(),
	}
}

// Start registers the sync job and launches the cron loop. Returns without
// scheduling anything when disabled by config.
func (s *Scheduler) Start() error {
	config := GetConfig()
	if !config.Enabled {
		logger.Info("Scheduled sync disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(config.CronSpec, s.runAll); err != nil {
		return err
	}

	s.cron.Start()
	logger.WithField("spec", config.CronSpec).Info("Scheduled sync started")
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runAll reconciles each user sequentially. A failing user is logged and
// skipped so one bad credential set cannot starve the rest.
func (s *Scheduler) runAll() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	userIDs, err := s.credentials.ListUserIDs(ctx)
	if err != nil {
		logger.WithError(err).Error("Scheduled sync failed to list users")
		return
	}

	for _, userID := range userIDs {
		creds, err := s.credentials.FindByUser(ctx, userID)
		if err != nil {
			logger.WithField("user_id", userID).WithError(err).Error("Scheduled sync failed to load credentials")
			continue
		}

		syncer := reconcile.NewSyncer(s.positions, s.trades, fetcher.BuildPositionFetchers(creds))
		if _, err := syncer.Run(ctx, userID); err != nil {
			logger.WithField("user_id", userID).WithError(err).Error("Scheduled sync run failed")
		}
	}
}
