package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/quota"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// AccountPool selects the sending account for a dispatch. Candidates come
// back from the repository already ordered (priority ascending, then
// oldest last_used_at), so the first account that wins its quota CAS is
// the right one.
type AccountPool struct {
	Accounts repository.AccountRepositoryInterface
	Log      zerolog.Logger
}

// SelectAndReserve returns a connected, in-scope account with one unit of
// quota already committed, or nil when no account has capacity. Selection
// and reservation are one operation from the caller's point of view: the
// account is only returned after its counters are durably incremented, so
// two workers can never both spend the same unit.
func (p *AccountPool) SelectAndReserve(tenantID int, scope string, now time.Time) (*model.Account, error) {
	candidates, err := p.Accounts.ListEligible(tenantID, scope)
	if err != nil {
		return nil, err
	}

	for _, a := range candidates {
		oldHour, oldDay := a.MessagesSentThisHour, a.MessagesSentToday
		if !quota.Apply(a, now) {
			continue
		}
		ok, err := p.Accounts.ReserveQuota(a, oldHour, oldDay, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the CAS to another worker (or the account just went
			// offline). Skip it for this round.
			p.Log.Debug().Int("account_id", a.ID).Msg("quota reservation lost race, trying next account")
			continue
		}
		used := now
		a.LastUsedAt = &used
		return a, nil
	}
	return nil, nil
}
