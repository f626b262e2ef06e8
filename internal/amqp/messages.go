package amqp

import (
	"encoding/json"
	"time"

	"financetracker/internal/core"
)

// Event types published on the ledger exchange
const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionCancelled = "transaction.cancelled"
)

// TransactionEvent is a lightweight notification about a ledger change.
// Consumers fetch the full row from the database when they need more.
type TransactionEvent struct {
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Amount     string    `json:"amount"`
	AccountID  int64     `json:"account_id"`
	PeriodID   int64     `json:"period_id"`
	ReversesID *int64    `json:"reverses_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransactionEvent builds an event of the given type for t
func NewTransactionEvent(eventType string, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:       eventType,
		ID:         t.ID,
		Code:       t.Code,
		Amount:     t.Amount.String(),
		AccountID:  t.AccountID,
		PeriodID:   t.PeriodID,
		ReversesID: t.ReversesID,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
