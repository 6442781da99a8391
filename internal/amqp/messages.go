package amqp

import (
	"encoding/json"
	"time"
)

// ReconcileMessage asks the worker to recompute one user's balance from
// source rows. It carries only the user ID and the trigger reason; the
// worker reads everything else from the database.
type ReconcileMessage struct {
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReconcileMessage(userID int64, reason string) *ReconcileMessage {
	return &ReconcileMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *ReconcileMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReconcileMessageFromJSON(data []byte) (*ReconcileMessage, error) {
	var msg ReconcileMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
