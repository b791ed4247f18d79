package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record kinds carried by change messages.
const (
	KindCredit        = "credit"
	KindCharge        = "charge"
	KindSavings       = "savings"
	KindIncome        = "income"
	KindCollaboration = "collaboration"
)

// Actions carried by change messages.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionSettled = "settled"
)

// ChangeMessage announces that a ledger record changed. It carries no amounts;
// consumers reload what they need, so a stale message is harmless.
type ChangeMessage struct {
	Kind     string `json:"kind"`
	Action   string `json:"action"`
	RecordID string `json:"record_id"`
	OwnerID  string `json:"owner_id"`
	// CounterpartID is set for collaboration changes, which affect both users.
	CounterpartID string    `json:"counterpart_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewChangeMessage(kind, action, recordID, ownerID string) *ChangeMessage {
	return &ChangeMessage{
		Kind:      kind,
		Action:    action,
		RecordID:  recordID,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

// AffectedUsers lists the users whose views may have changed.
func (m *ChangeMessage) AffectedUsers() []string {
	if m.CounterpartID != "" && m.CounterpartID != m.OwnerID {
		return []string{m.OwnerID, m.CounterpartID}
	}
	return []string{m.OwnerID}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects ones without an owner.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("change message without owner_id")
	}
	return &msg, nil
}
