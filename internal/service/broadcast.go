package service

import (
	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// BroadcastCoordinator aggregates per-recipient outcomes into the
// campaign counters and owns cancel-remaining semantics.
type BroadcastCoordinator struct {
	Broadcasts repository.BroadcastRepositoryInterface
	Messages   repository.MessageRepositoryInterface
	Log        zerolog.Logger
}

// MessageFinished records one terminal outcome (sent, failed or
// cancelled) against the broadcast counters.
func (c *BroadcastCoordinator) MessageFinished(broadcastID int, status string) error {
	return c.Broadcasts.ApplyTerminal(broadcastID, status)
}

// CancelRemaining bulk-cancels the queued messages of a broadcast.
// Messages already sending finish naturally and report their outcome
// through MessageFinished as usual; cancellation only stops new sends.
func (c *BroadcastCoordinator) CancelRemaining(broadcastID int) (int64, error) {
	n, err := c.Messages.CancelQueuedByBroadcast(broadcastID)
	if err != nil {
		return 0, err
	}
	if err := c.Broadcasts.ApplyCancelled(broadcastID, n); err != nil {
		return n, err
	}

	c.Log.Info().Int("broadcast_id", broadcastID).Int64("cancelled", n).Msg("broadcast remaining messages cancelled")
	return n, nil
}
