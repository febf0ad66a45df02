package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
)

// sendResponse is the common reply shape of both bridge endpoints.
type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postSend performs one bridge call and maps the HTTP outcome onto the
// dispatcher's error taxonomy:
//
//	2xx        -> provider message id
//	400, 404   -> permanent recipient error
//	401, 403   -> account banned / disabled upstream
//	408, 429   -> transient provider error
//	5xx        -> transient provider error
//	transport  -> connection error
func postSend(client *http.Client, url, token string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", appErrors.NewSendError(appErrors.ClassConnection, err)
	}
	defer resp.Body.Close()

	var parsed sendResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(data, &parsed)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return parsed.MessageID, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return "", appErrors.NewSendError(appErrors.ClassPermanent,
			fmt.Errorf("bridge rejected recipient: %s (%d)", parsed.Error, resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", appErrors.NewSendError(appErrors.ClassBanned,
			fmt.Errorf("bridge reports account disabled: %s (%d)", parsed.Error, resp.StatusCode))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return "", appErrors.NewSendError(appErrors.ClassTransient,
			fmt.Errorf("bridge throttled: %s (%d)", parsed.Error, resp.StatusCode))
	default:
		return "", appErrors.NewSendError(appErrors.ClassTransient,
			fmt.Errorf("bridge error: %s (%d)", parsed.Error, resp.StatusCode))
	}
}
