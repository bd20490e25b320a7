package sweeper

import (
	"context"
	"time"

	votingdomain "osbb-app-go/internal/domain/voting"
	"osbb-app-go/pkg/logger"
)

// Sweeper periodically closes active votings whose end_time has passed.
// Closing is idempotent at the service layer, so overlapping triggers or a
// racing explicit close are harmless.
type Sweeper struct {
	votings  *votingdomain.Service
	interval time.Duration
	log      logger.Logger
}

func New(votings *votingdomain.Service, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{votings: votings, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper: started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper: stopped")
			return nil
		case <-ticker.C:
			closed, err := s.votings.CloseExpired(ctx)
			if err != nil {
				s.log.InternalError("sweeper: close expired votings failed", err)
				continue
			}
			if closed > 0 {
				s.log.Info("sweeper: closed expired votings", "count", closed)
			}
		}
	}
}
