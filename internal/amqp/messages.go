package amqp

import (
	"encoding/json"
	"time"
)

// Payment provider event names carried on the subscription queue.
const (
	EventPurchaseComplete         = "PURCHASE_COMPLETE"
	EventPurchaseCanceled         = "PURCHASE_CANCELED"
	EventPurchaseRefunded         = "PURCHASE_REFUNDED"
	EventSubscriptionCancellation = "SUBSCRIPTION_CANCELLATION"
)

// SubscriptionEventMessage is the queue payload for one payment event.
// The worker resolves the user by email and applies the plan transition.
type SubscriptionEventMessage struct {
	Event          string    `json:"event"`
	Email          string    `json:"email"`
	Plan           string    `json:"plan"`
	AmountCents    int64     `json:"amount_cents"`
	Transaction    string    `json:"transaction"`
	SubscriberCode string    `json:"subscriber_code"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewSubscriptionEventMessage stamps a message with the current time.
func NewSubscriptionEventMessage(event, email, plan string, amountCents int64, transaction, subscriberCode string) *SubscriptionEventMessage {
	return &SubscriptionEventMessage{
		Event:          event,
		Email:          email,
		Plan:           plan,
		AmountCents:    amountCents,
		Transaction:    transaction,
		SubscriberCode: subscriberCode,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubscriptionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SubscriptionEventMessageFromJSON creates a message from JSON bytes
func SubscriptionEventMessageFromJSON(data []byte) (*SubscriptionEventMessage, error) {
	var msg SubscriptionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
