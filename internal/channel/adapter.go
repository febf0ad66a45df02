// Package channel is the boundary to the WhatsApp connectivity layer. The
// dispatcher only sees the Adapter interface; whether an account rides a
// QR-paired session gateway or an official cloud API is decided here by
// the account's adapter field, never inside the dispatcher.
package channel

import (
	"fmt"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// Adapter sends messages on behalf of one account.
type Adapter interface {
	// Connect asks the connectivity layer to (re)establish the account
	// session and returns the resulting connection status.
	Connect(a *model.Account) (string, error)
	// Send delivers one payload and returns the provider message ID.
	// Failures carry an appErrors.SendError classification.
	Send(a *model.Account, targetAddress, payload string) (string, error)
}

// Registry maps account adapter kinds to implementations.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(kind string, a Adapter) {
	r.adapters[kind] = a
}

// ForAccount picks the adapter configured on the account.
func (r *Registry) ForAccount(a *model.Account) (Adapter, error) {
	adapter, ok := r.adapters[a.Adapter]
	if !ok {
		return nil, appErrors.NewSendError(appErrors.ClassConnection,
			fmt.Errorf("no adapter registered for kind %q", a.Adapter))
	}
	return adapter, nil
}
