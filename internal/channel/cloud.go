package channel

import (
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// CloudAdapter talks to the official provider API. Cloud accounts are
// token-authenticated and never need pairing: Connect only validates the
// token.
type CloudAdapter struct {
	baseURL string
	client  *http.Client
}

func NewCloudAdapter(baseURL string, timeout time.Duration) *CloudAdapter {
	return &CloudAdapter{baseURL: baseURL, client: newHTTPClient(timeout)}
}

type cloudSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (c *CloudAdapter) Connect(a *model.Account) (string, error) {
	if a.APIToken == "" {
		return model.AccountDisconnected, fmt.Errorf("account %d has no API token", a.ID)
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, a.PhoneNumber), nil)
	if err != nil {
		return model.AccountDisconnected, err
	}
	req.Header.Set("Authorization", "Bearer "+a.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.AccountDisconnected, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return model.AccountConnected, nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return model.AccountBanned, nil
	}
	return model.AccountDisconnected, fmt.Errorf("provider returned %d", resp.StatusCode)
}

func (c *CloudAdapter) Send(a *model.Account, targetAddress, payload string) (string, error) {
	if a.APIToken == "" {
		return "", appErrors.NewSendError(appErrors.ClassConnection,
			fmt.Errorf("account %d has no API token", a.ID))
	}
	body := cloudSendRequest{MessagingProduct: "whatsapp", To: targetAddress, Type: "text"}
	body.Text.Body = payload
	return postSend(c.client, fmt.Sprintf("%s/%s/messages", c.baseURL, a.PhoneNumber), a.APIToken, body)
}

var _ Adapter = (*CloudAdapter)(nil)
