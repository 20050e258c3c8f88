package amqp

import (
	"encoding/json"
	"time"

	"subtrack/internal/services"
)

// ReminderMessage is the wire form of an upcoming-bill reminder. It is
// self-contained: the delivery worker needs no database access to turn
// it into a chat message.
type ReminderMessage struct {
	RecipientID      int64     `json:"recipient_id"`
	SubscriptionName string    `json:"subscription_name"`
	Price            float64   `json:"price"`
	Currency         string    `json:"currency"`
	NextBillDate     string    `json:"next_bill_date"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewReminderMessage(rem services.Reminder) *ReminderMessage {
	return &ReminderMessage{
		RecipientID:      rem.RecipientID,
		SubscriptionName: rem.SubscriptionName,
		Price:            rem.Price,
		Currency:         rem.Currency,
		NextBillDate:     rem.NextBillDate.Format("2006-01-02"),
		Timestamp:        time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
