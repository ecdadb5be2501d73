package social

import (
	"context"
	"time"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// RunJanitor barre estados vencidos cada interval hasta que ctx se cancele.
func (s *StateStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.janitor"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				log.Warn("state sweep failed", logger.Err(err))
			}
		}
	}
}
