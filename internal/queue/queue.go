package queue

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TopicBroadcastLaunches carries broadcast IDs from the API to the worker
// that materializes recipients.
const TopicBroadcastLaunches = "broadcast_launches"

// LaunchJob is the payload published when a broadcast is launched.
type LaunchJob struct {
	JobID       string `json:"job_id"`
	BroadcastID int    `json:"broadcast_id"`
}

func (j LaunchJob) Marshal() ([]byte, error) { return json.Marshal(j) }

func UnmarshalLaunchJob(data []byte) (LaunchJob, error) {
	var j LaunchJob
	err := json.Unmarshal(data, &j)
	return j, err
}

// Handler consumes one payload; a non-nil error asks for redelivery.
type Handler func(payload []byte) error

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue dispatches synchronously to subscribers. Used in tests
// and single-process development runs.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{handlers: make(map[string][]Handler)}
}

func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	for _, handler := range handlers {
		if err := handler(payload); err != nil {
			return err
		}
	}
	return nil
}

func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

func (q *InMemoryQueue) Close() error { return nil }

var _ Queue = (*InMemoryQueue)(nil)
