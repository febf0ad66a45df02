package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// SendAt computes when a sequence message fires relative to a webinar
// occurrence. Negative offsets are pre-webinar reminders.
func SendAt(occurrenceStart time.Time, offsetMinutes int) time.Time {
	return occurrenceStart.Add(time.Duration(offsetMinutes) * time.Minute)
}

// Scheduler materializes queue entries from sequence definitions and
// broadcast launches.
type Scheduler struct {
	Sequences  repository.SequenceRepositoryInterface
	Leads      repository.LeadRepositoryInterface
	Messages   repository.MessageRepositoryInterface
	Broadcasts repository.BroadcastRepositoryInterface
	Stagger    time.Duration
	Log        zerolog.Logger
}

// MaterializeOccurrence creates queue entries for every enabled sequence
// of the occurrence's webinar, for every registered lead. Re-running it
// is safe: a non-cancelled message already existing for the
// (sequence, occurrence, lead) tuple is never duplicated.
func (s *Scheduler) MaterializeOccurrence(occ *model.Occurrence) (int, error) {
	sequences, err := s.Sequences.ListEnabledForWebinar(occ.WebinarID)
	if err != nil {
		return 0, err
	}
	leads, err := s.Leads.ListByOccurrence(occ.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, seq := range sequences {
		for _, lead := range leads {
			exists, err := s.Messages.ExistsForOccurrence(seq.ID, lead.ID, occ.StartsAt)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}

			seqID := seq.ID
			occAt := occ.StartsAt
			msg := &model.Message{
				TenantID:      seq.TenantID,
				SequenceID:    &seqID,
				LeadID:        lead.ID,
				OccurrenceAt:  &occAt,
				Scope:         model.ScopeNotification,
				TargetAddress: lead.Phone,
				Payload:       RenderForLead(seq.Template, lead),
				SendAt:        SendAt(occ.StartsAt, seq.OffsetMinutes),
				Status:        model.MessageQueued,
			}
			if err := s.Messages.Create(msg); err != nil {
				return created, err
			}
			created++
		}
	}

	if created > 0 {
		s.Log.Info().
			Int("occurrence_id", occ.ID).
			Int("webinar_id", occ.WebinarID).
			Int("created", created).
			Msg("materialized sequence messages")
	}
	return created, nil
}

// MaterializeWindow scans occurrences around now and materializes each.
// The window reaches backwards as well, so post-webinar sequences of
// recently finished occurrences are covered.
func (s *Scheduler) MaterializeWindow(now time.Time, window time.Duration) (int, error) {
	occurrences, err := s.Sequences.ListOccurrencesBetween(now.Add(-window), now.Add(window))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, occ := range occurrences {
		n, err := s.MaterializeOccurrence(occ)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LaunchBroadcast resolves the recipient filter once, creates one message
// per recipient with a staggered send time, and fixes the broadcast
// totals. Later recipient-set changes never alter the counts. A launch
// interrupted mid-insert can be replayed (the queue redelivers failed
// jobs once): recipients that already have a live message are skipped,
// so the replay finishes the set instead of doubling it.
func (s *Scheduler) LaunchBroadcast(broadcastID int, now time.Time) (int, error) {
	b, err := s.Broadcasts.GetByID(broadcastID)
	if err != nil {
		return 0, err
	}
	if b.Status != model.BroadcastDraft {
		return 0, fmt.Errorf("broadcast %d cannot be launched in status %s", b.ID, b.Status)
	}

	leads, err := s.resolveRecipients(b)
	if err != nil {
		return 0, err
	}

	created := 0
	for i, lead := range leads {
		exists, err := s.Messages.ExistsForBroadcast(b.ID, lead.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		broadcastRef := b.ID
		msg := &model.Message{
			TenantID:      b.TenantID,
			BroadcastID:   &broadcastRef,
			LeadID:        lead.ID,
			Scope:         model.ScopeMarketing,
			TargetAddress: lead.Phone,
			Payload:       RenderForLead(b.Template, lead),
			SendAt:        now.Add(time.Duration(i) * s.Stagger),
			Status:        model.MessageQueued,
		}
		if err := s.Messages.Create(msg); err != nil {
			return created, err
		}
		created++
	}

	if err := s.Broadcasts.FixTotals(b.ID, len(leads)); err != nil {
		return created, err
	}

	s.Log.Info().
		Int("broadcast_id", b.ID).
		Str("filter", b.FilterKind).
		Int("recipients", len(leads)).
		Int("created", created).
		Msg("broadcast launched")
	return created, nil
}

func (s *Scheduler) resolveRecipients(b *model.Broadcast) ([]*model.Lead, error) {
	switch b.FilterKind {
	case model.FilterAll:
		return s.Leads.ListAll(b.TenantID)
	case model.FilterDateRange:
		if b.FilterFrom == nil || b.FilterTo == nil {
			return nil, fmt.Errorf("broadcast %d date_range filter is missing bounds", b.ID)
		}
		return s.Leads.ListRegisteredBetween(b.TenantID, *b.FilterFrom, *b.FilterTo)
	case model.FilterSession:
		if b.FilterSessionID == nil {
			return nil, fmt.Errorf("broadcast %d session filter is missing the session", b.ID)
		}
		return s.Leads.ListByOccurrence(*b.FilterSessionID)
	case model.FilterList:
		ids := make([]int, len(b.FilterLeadIDs))
		for i, id := range b.FilterLeadIDs {
			ids[i] = int(id)
		}
		return s.Leads.ListByIDs(b.TenantID, ids)
	default:
		return nil, fmt.Errorf("broadcast %d has unknown filter kind %q", b.ID, b.FilterKind)
	}
}
