package services

import (
	"context"
)

// LogPublisher is the stub terminal side effect for the "post" decision. It
// records the publication in the log; integration with a real social network
// would replace this implementation.
type LogPublisher struct {
	logger Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the finalized draft.
func (p *LogPublisher) Publish(ctx context.Context, ownerID, draft string) error {
	p.logger.Info("post published for user %s: %s", ownerID, draft)
	return nil
}
