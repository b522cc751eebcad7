package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/signup-verification/internal/core/ports"
)

const sweepTimeout = 30 * time.Second

// StagingSweeper periodically removes expired staged records from stores that do not expire
// keys on their own.
type StagingSweeper struct {
	sweeper  ports.ExpiredRecordSweeper
	interval time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

func NewStagingSweeper(sweeper ports.ExpiredRecordSweeper, interval time.Duration, logger *logrus.Logger) *StagingSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StagingSweeper{sweeper: sweeper, interval: interval, now: time.Now, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *StagingSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes every staged record that has expired by now and returns how many went.
func (s *StagingSweeper) SweepOnce(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.sweeper.DeleteExpired(sweepCtx, s.now())
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Error("failed to cleanup expired staged records")
		}
		return 0
	}
	if n > 0 {
		recordEvents(eventSweptExpired, n)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"deleted": n}).Info("staging: expired records swept")
		}
	}
	return n
}
