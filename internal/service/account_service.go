package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/channel"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
)

// AccountService covers account administration and the connection events
// arriving from the connectivity layer.
type AccountService struct {
	Accounts repository.AccountRepositoryInterface
	Adapters *channel.Registry
	Log      zerolog.Logger
}

func (s *AccountService) Register(a *model.Account) error {
	if a.Scope != model.ScopeNotification && a.Scope != model.ScopeMarketing {
		return fmt.Errorf("invalid scope: %s", a.Scope)
	}
	if a.Adapter != model.AdapterSession && a.Adapter != model.AdapterCloud {
		return fmt.Errorf("invalid adapter kind: %s", a.Adapter)
	}
	if a.HourlyLimit <= 0 || a.DailyLimit <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	return s.Accounts.Create(a)
}

// ApplyConnectionEvent records a status transition reported by the
// connectivity layer (webhook or gateway callback).
func (s *AccountService) ApplyConnectionEvent(accountID int, status string) error {
	if !model.IsValidAccountStatus(status) {
		return fmt.Errorf("invalid account status: %s", status)
	}
	if err := s.Accounts.UpdateStatus(accountID, status); err != nil {
		return err
	}
	s.Log.Info().Int("account_id", accountID).Str("status", status).Msg("account connection status changed")
	return nil
}

// Connect asks the account's adapter to establish its session and stores
// the resulting status.
func (s *AccountService) Connect(accountID int) (string, error) {
	account, err := s.Accounts.GetByID(accountID)
	if err != nil {
		return "", err
	}
	adapter, err := s.Adapters.ForAccount(account)
	if err != nil {
		return "", err
	}

	if err := s.Accounts.UpdateStatus(accountID, model.AccountConnecting); err != nil {
		return "", err
	}
	status, err := adapter.Connect(account)
	if err != nil {
		_ = s.Accounts.UpdateStatus(accountID, model.AccountDisconnected)
		return model.AccountDisconnected, err
	}
	if err := s.Accounts.UpdateStatus(accountID, status); err != nil {
		return status, err
	}
	return status, nil
}
