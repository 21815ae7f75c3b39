package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finance/internal/core"
)

// Event names carried in TransactionEvent.Event.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionEvent announces a change to the transaction store. Deletions
// carry only the id.
type TransactionEvent struct {
	Event       string            `json:"event"`
	ID          int64             `json:"id"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewCreatedEvent wraps a freshly stored transaction.
func NewCreatedEvent(t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Event:       EventTransactionCreated,
		ID:          t.ID,
		Transaction: &t,
		Timestamp:   time.Now().UTC(),
	}
}

// NewDeletedEvent announces a permanent removal.
func NewDeletedEvent(id int64) *TransactionEvent {
	return &TransactionEvent{
		Event:     EventTransactionDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventTransactionCreated:
		if msg.Transaction == nil {
			return nil, fmt.Errorf("%s event without transaction", msg.Event)
		}
	case EventTransactionDeleted:
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	return &msg, nil
}
