package channel

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	appErrors "github.com/webinarflow/whatsapp-dispatch/internal/errors"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

// SimulatedAdapter delivers nothing and succeeds ~90% of the time. Used
// in local development and the seeded demo environment.
type SimulatedAdapter struct {
	FailureRate float64 // 0..1, defaults to 0.1
}

func NewSimulatedAdapter() *SimulatedAdapter {
	return &SimulatedAdapter{FailureRate: 0.1}
}

func (s *SimulatedAdapter) Connect(a *model.Account) (string, error) {
	return model.AccountConnected, nil
}

func (s *SimulatedAdapter) Send(a *model.Account, targetAddress, payload string) (string, error) {
	if rand.Float64() < s.FailureRate {
		return "", appErrors.NewSendError(appErrors.ClassTransient, fmt.Errorf("simulated send failure"))
	}
	return uuid.NewString(), nil
}

var _ Adapter = (*SimulatedAdapter)(nil)
