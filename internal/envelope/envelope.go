package envelope

// envelope.go = the two-level value objects sent for one broadcast.
// Data is the room/broadcast shape, Message is the dispatch envelope around it.

const (
	DataAction    = "[el-jupyter] message" // origin tag carried by every Data
	EventTypeLoad = "load"                 // only event type produced by this path

	DefaultSender = "lively_client client"
	DefaultAction = "[broadcast] send"
	DefaultN      = 1
)

// Broadcast wraps the caller payload with its event type.
type Broadcast struct {
	Payload   any    // opaque caller data
	EventType string // always EventTypeLoad
}

// Data is the inner layer: business payload plus room routing.
type Data struct {
	Action    string
	Room      string
	Broadcast Broadcast
}

// Message is the outer transport envelope. It owns its Data by value.
type Message struct {
	Sender string
	Data   Data
	Action string
	N      int
	Token  string
}

// BuildData constructs the inner layer. Every input is accepted as-is.
func BuildData(action, room string, payload any) Data {
	return Data{
		Action: action,
		Room:   room,
		Broadcast: Broadcast{
			Payload:   payload,
			EventType: EventTypeLoad,
		},
	}
}

// BuildMessage wraps data with routing and auth metadata.
func BuildMessage(sender string, data Data, action string, n int, token string) Message {
	return Message{
		Sender: sender,
		Data:   data,
		Action: action,
		N:      n,
		Token:  token,
	}
}

// RedactedToken replaces the realm token in envelopes kept after sending.
const RedactedToken = "[redacted]"

// Redacted returns a copy of m whose token is masked. Anything that outlives
// the send (the event trail, its Redis mirror) stores this form.
func (m Message) Redacted() Message {
	if m.Token != "" {
		m.Token = RedactedToken
	}
	return m
}
