package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a lifecycle event.
type Kind string

const (
	KindConnectedFlag Kind = "connected-flag" // transport connected state right after connect
	KindConnected     Kind = "connected"
	KindDisconnected  Kind = "disconnected"
	KindAck           Kind = "ack"  // server confirmed receipt of an emitted message
	KindSent          Kind = "sent" // message handed to the transport
)

const (
	TextConnected    = "Client Connected"
	TextDisconnected = "Client Disconnected"
	TextAck          = "Message has been received by server."
	sentPrefix       = "Sent message to room "
)

// Event is one entry of the lifecycle trail.
type Event struct {
	ID        uuid.UUID `json:"id"`
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Connected *bool     `json:"connected,omitempty"`
	Room      string    `json:"room,omitempty"`
	Message   string    `json:"message,omitempty"` // serialized envelope with the token masked, sent events only
}

// Recorder receives lifecycle events. Implementations must be safe for
// concurrent use: acks arrive on the transport's goroutine.
type Recorder interface {
	Record(ev Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ev Event)

func (f RecorderFunc) Record(ev Event) { f(ev) }

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(Event) {})

func newEvent(now time.Time, kind Kind, text string) Event {
	return Event{
		ID:   uuid.New(),
		At:   now,
		Kind: kind,
		Text: text,
	}
}

// ConnectedFlag records the transport's connected state.
func ConnectedFlag(now time.Time, connected bool) Event {
	ev := newEvent(now, KindConnectedFlag, "")
	ev.Connected = &connected
	return ev
}

func Connected(now time.Time) Event { return newEvent(now, KindConnected, TextConnected) }

func Disconnected(now time.Time) Event { return newEvent(now, KindDisconnected, TextDisconnected) }

func Ack(now time.Time) Event { return newEvent(now, KindAck, TextAck) }

// Sent records a message emitted to room. message is the serialized envelope
// with its token already masked; see envelope.Message.Redacted.
func Sent(now time.Time, room, message string) Event {
	ev := newEvent(now, KindSent, SentText(room))
	ev.Room = room
	ev.Message = message
	return ev
}

// SentText is the trail line for a message sent to room.
func SentText(room string) string { return sentPrefix + room }

// Value is the flat trail value: the connected flag for KindConnectedFlag,
// the text otherwise.
func (e Event) Value() any {
	if e.Kind == KindConnectedFlag && e.Connected != nil {
		return *e.Connected
	}
	return e.Text
}
