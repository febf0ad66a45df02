package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/webinarflow/whatsapp-dispatch/internal/channel"
	"github.com/webinarflow/whatsapp-dispatch/internal/config"
	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// connectionRetryDelay is how long a message waits after its account
// turned out to be unreachable; short, because the next cycle will
// usually pick a different account.
const connectionRetryDelay = 10 * time.Second

// Dispatcher is the worker loop: it claims due messages, reserves an
// account, invokes the channel adapter with no locks held, and records
// the outcome. Any number of Dispatcher processes may run against the
// same queue; claims and quota reservations are the only serialization
// points and both live in conditional updates at the storage layer.
type Dispatcher struct {
	Messages    repository.MessageRepositoryInterface
	Accounts    repository.AccountRepositoryInterface
	Tenants     repository.TenantRepositoryInterface
	Pool        *AccountPool
	Adapters    *channel.Registry
	Coordinator *BroadcastCoordinator
	Cfg         config.Dispatch
	Limiter     *rate.Limiter
	Log         zerolog.Logger
}

// Run polls on a fixed interval until the context ends.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Cfg.PollInterval)
	defer ticker.Stop()

	d.Log.Info().Dur("poll_interval", d.Cfg.PollInterval).Int("batch_size", d.Cfg.BatchSize).Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.Log.Info().Msg("dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.PollOnce(ctx, time.Now()); err != nil {
				d.Log.Error().Err(err).Msg("poll cycle failed")
			}
		}
	}
}

// PollOnce processes one bounded batch of due messages and returns how
// many were dispatched (successfully or not). Capacity deferrals do not
// count as dispatched.
func (d *Dispatcher) PollOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := d.Messages.FetchDue(now, d.Cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, m := range due {
		select {
		case <-ctx.Done():
			return dispatched, ctx.Err()
		default:
		}
		if d.dispatch(ctx, m, now) {
			dispatched++
		}
	}
	return dispatched, nil
}

// dispatch drives one message through the claim -> reserve -> send ->
// record pipeline. Every failure stays isolated to this message/account
// pair; errors are logged and the loop moves on.
func (d *Dispatcher) dispatch(ctx context.Context, m *model.Message, now time.Time) bool {
	claimed, err := d.Messages.Claim(m.ID, now)
	if err != nil {
		d.Log.Error().Err(err).Int("message_id", m.ID).Msg("claim failed")
		return false
	}
	if !claimed {
		// Another worker got it first.
		return false
	}

	account, err := d.Pool.SelectAndReserve(m.TenantID, m.Scope, now)
	if err != nil {
		d.Log.Error().Err(err).Int("message_id", m.ID).Msg("account selection failed, releasing claim")
		d.release(m.ID)
		return false
	}
	if account == nil {
		// Capacity deferral: put the message back untouched. No attempt
		// is charged and send_at stays, so the next poll retries it.
		d.release(m.ID)
		return false
	}

	attempt, err := d.Messages.BeginAttempt(m.ID, account.ID)
	if err != nil {
		// The claim was recovered out from under us; the message is back
		// in the queue and someone else will pick it up.
		d.Log.Warn().Err(err).Int("message_id", m.ID).Msg("attempt could not start")
		return false
	}

	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			// Nothing was sent, but the attempt is already charged; the
			// message goes back with its original send time.
			d.requeue(m, attempt, m.SendAt, errors.New("shutdown before send"))
			return false
		}
	}

	adapter, err := d.Adapters.ForAccount(account)
	if err != nil {
		d.recordFailure(m, account, attempt, err, now)
		return true
	}

	// The network call happens with no claim beyond the message's own
	// sending state and no account lock at all.
	providerID, sendErr := adapter.Send(account, m.TargetAddress, m.Payload)
	if sendErr != nil {
		d.recordFailure(m, account, attempt, sendErr, now)
		return true
	}
	d.recordSuccess(m, account, attempt, providerID)
	return true
}

func (d *Dispatcher) release(messageID int) {
	if err := d.Messages.Release(messageID); err != nil {
		d.Log.Error().Err(err).Int("message_id", messageID).Msg("release failed")
	}
}

func (d *Dispatcher) recordSuccess(m *model.Message, account *model.Account, attempt int, providerID string) {
	ok, err := d.Messages.MarkSent(m.ID, attempt, providerID)
	if err != nil {
		d.Log.Error().Err(err).Int("message_id", m.ID).Msg("mark sent failed")
		return
	}
	if !ok {
		// The staleness sweep requeued this message while the send was in
		// flight; this acknowledgment is stale and must not double-count.
		d.Log.Warn().Int("message_id", m.ID).Int("attempt", attempt).Msg("discarding stale send acknowledgment")
		return
	}

	d.Log.Info().
		Int("message_id", m.ID).
		Int("account_id", account.ID).
		Int("attempt", attempt).
		Str("provider_message_id", providerID).
		Msg("message sent")

	if m.BroadcastID != nil {
		if err := d.Coordinator.MessageFinished(*m.BroadcastID, model.MessageSent); err != nil {
			d.Log.Error().Err(err).Int("broadcast_id", *m.BroadcastID).Msg("broadcast accounting failed")
		}
	}
}

func (d *Dispatcher) recordFailure(m *model.Message, account *model.Account, attempt int, sendErr error, now time.Time) {
	class := appErrors.ClassOf(sendErr)
	logEvent := d.Log.Warn().
		Int("message_id", m.ID).
		Int("account_id", account.ID).
		Int("attempt", attempt).
		Str("class", string(class)).
		Err(sendErr)

	switch class {
	case appErrors.ClassPermanent:
		d.fail(m, attempt, sendErr)
		logEvent.Msg("message failed permanently")

	case appErrors.ClassBanned:
		// The account is gone from the pool; the message itself is fine
		// and goes straight back for a different account.
		if err := d.Accounts.UpdateStatus(account.ID, model.AccountBanned); err != nil {
			d.Log.Error().Err(err).Int("account_id", account.ID).Msg("failed to mark account banned")
		}
		d.requeue(m, attempt, now, sendErr)
		logEvent.Msg("account banned, message requeued")

	case appErrors.ClassConnection:
		if attempt >= d.maxAttemptsFor(m.TenantID) {
			d.fail(m, attempt, sendErr)
			logEvent.Msg("message failed after repeated connection errors")
			return
		}
		d.requeue(m, attempt, now.Add(connectionRetryDelay), sendErr)
		logEvent.Msg("account unreachable, message requeued")

	default: // transient
		if attempt >= d.maxAttemptsFor(m.TenantID) {
			d.fail(m, attempt, sendErr)
			logEvent.Msg("message failed after max attempts")
			return
		}
		d.requeue(m, attempt, now.Add(d.backoff(attempt)), sendErr)
		logEvent.Msg("transient send failure, message requeued with backoff")
	}
}

func (d *Dispatcher) fail(m *model.Message, attempt int, sendErr error) {
	ok, err := d.Messages.MarkFailed(m.ID, attempt, sendErr.Error())
	if err != nil {
		d.Log.Error().Err(err).Int("message_id", m.ID).Msg("mark failed errored")
		return
	}
	if !ok {
		d.Log.Warn().Int("message_id", m.ID).Int("attempt", attempt).Msg("discarding stale failure acknowledgment")
		return
	}
	if m.BroadcastID != nil {
		if err := d.Coordinator.MessageFinished(*m.BroadcastID, model.MessageFailed); err != nil {
			d.Log.Error().Err(err).Int("broadcast_id", *m.BroadcastID).Msg("broadcast accounting failed")
		}
	}
}

func (d *Dispatcher) requeue(m *model.Message, attempt int, sendAt time.Time, sendErr error) {
	ok, err := d.Messages.Requeue(m.ID, attempt, sendAt, sendErr.Error())
	if err != nil {
		d.Log.Error().Err(err).Int("message_id", m.ID).Msg("requeue failed")
		return
	}
	if !ok {
		d.Log.Warn().Int("message_id", m.ID).Int("attempt", attempt).Msg("message already recovered, skipping requeue")
	}
}

// backoff returns base * 2^attempt capped at the configured maximum,
// with ±20% jitter so retries from one incident spread out.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.Cfg.BackoffBase
	for i := 0; i < attempt && delay < d.Cfg.BackoffCap; i++ {
		delay *= 2
	}
	if delay > d.Cfg.BackoffCap {
		delay = d.Cfg.BackoffCap
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(float64(delay) * jitter)
}

func (d *Dispatcher) maxAttemptsFor(tenantID int) int {
	tenant, err := d.Tenants.GetByID(tenantID)
	if err != nil || tenant == nil || tenant.MaxAttempts <= 0 {
		return d.Cfg.MaxAttempts
	}
	return tenant.MaxAttempts
}

// RecoverStale requeues messages stuck in sending past the staleness
// window, typically after a worker crash mid-send.
func (d *Dispatcher) RecoverStale(now time.Time) (int64, error) {
	n, err := d.Messages.RecoverStale(now.Add(-d.Cfg.StaleSendingAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.Log.Warn().Int64("recovered", n).Msg("recovered stale sending messages")
	}
	return n, nil
}
