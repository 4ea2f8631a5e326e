package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"livelyclient/internal/eventlog"
)

// SentMessage is one archived broadcast. The auth token is never stored.
type SentMessage struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID   string    `json:"event_id" gorm:"type:uuid;uniqueIndex;not null"`
	Room      string    `json:"room" gorm:"not null;index"`
	Sender    string    `json:"sender" gorm:"not null"`
	Action    string    `json:"action" gorm:"not null"`
	N         int       `json:"n" gorm:"not null"`
	Data      string    `json:"data" gorm:"type:jsonb;not null"` // the inner data envelope
	SentAt    time.Time `json:"sent_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (SentMessage) TableName() string {
	return "sent_messages"
}

var ErrNotSentEvent = errors.New("event is not a sent message")

// FromEvent converts a sent event into its archive row.
func FromEvent(ev eventlog.Event) (*SentMessage, error) {
	if ev.Kind != eventlog.KindSent {
		return nil, fmt.Errorf("%w: %s", ErrNotSentEvent, ev.Kind)
	}

	var env struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
		N      int             `json:"n"`
		Sender string          `json:"sender"`
	}
	if err := json.Unmarshal([]byte(ev.Message), &env); err != nil {
		return nil, fmt.Errorf("decode sent envelope: %w", err)
	}

	return &SentMessage{
		EventID: ev.ID.String(),
		Room:    ev.Room,
		Sender:  env.Sender,
		Action:  env.Action,
		N:       env.N,
		Data:    string(env.Data),
		SentAt:  ev.At,
	}, nil
}

// Payload decodes the broadcast payload out of the stored data envelope.
func (m SentMessage) Payload() (any, error) {
	var data struct {
		Broadcast struct {
			Payload any `json:"payload"`
		} `json:"broadcast"`
	}
	if err := json.Unmarshal([]byte(m.Data), &data); err != nil {
		return nil, err
	}
	return data.Broadcast.Payload, nil
}
