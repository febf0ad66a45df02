package channel

import (
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// SessionAdapter talks to a QR-paired session gateway. Each account
// carries its own gateway URL; the gateway holds the actual WhatsApp
// session and pairing state.
type SessionAdapter struct {
	client *http.Client
}

func NewSessionAdapter(timeout time.Duration) *SessionAdapter {
	return &SessionAdapter{client: newHTTPClient(timeout)}
}

type sessionSendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *SessionAdapter) Connect(a *model.Account) (string, error) {
	if a.GatewayURL == "" {
		return model.AccountDisconnected, fmt.Errorf("account %d has no gateway URL", a.ID)
	}
	resp, err := s.client.Post(a.GatewayURL+"/session/connect", "application/json", nil)
	if err != nil {
		return model.AccountDisconnected, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return model.AccountConnected, nil
	case http.StatusAccepted:
		return model.AccountAwaitingPairing, nil
	default:
		return model.AccountDisconnected, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
}

func (s *SessionAdapter) Send(a *model.Account, targetAddress, payload string) (string, error) {
	if a.GatewayURL == "" {
		return "", appErrors.NewSendError(appErrors.ClassConnection,
			fmt.Errorf("account %d has no gateway URL", a.ID))
	}
	return postSend(s.client, a.GatewayURL+"/send", a.APIToken, sessionSendRequest{
		From: a.PhoneNumber,
		To:   targetAddress,
		Body: payload,
	})
}

var _ Adapter = (*SessionAdapter)(nil)
