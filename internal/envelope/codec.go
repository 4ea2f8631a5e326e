package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// codec.go = canonical JSON for the envelope types.
// Keys are written in lexicographic order at every level; the payload is
// normalised through a generic decode so its own objects come out sorted too.

// SerializationVersion identifies the layout written by AppendJSON.
const SerializationVersion = 1

// Serialize returns the canonical JSON string of m.
func Serialize(m Message) (string, error) {
	buf, err := m.AppendJSON(nil)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ParseWire decodes a serialized envelope into a plain mapping.
// Numbers stay json.Number so integers survive unchanged.
func ParseWire(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return out, nil
}

// ToWire serializes m and parses the result back, so nothing but plain
// JSON-compatible values reach the transport.
func ToWire(m Message) (map[string]any, error) {
	raw, err := Serialize(m)
	if err != nil {
		return nil, err
	}
	return ParseWire(raw)
}

// AppendJSON appends the canonical form of m to buf.
// Key order: action, data, n, sender, token.
func (m Message) AppendJSON(buf []byte) ([]byte, error) {
	var err error
	buf = append(buf, `{"action":`...)
	buf = appendString(buf, m.Action)
	buf = append(buf, `,"data":`...)
	if buf, err = m.Data.AppendJSON(buf); err != nil {
		return nil, err
	}
	buf = append(buf, `,"n":`...)
	buf = strconv.AppendInt(buf, int64(m.N), 10)
	buf = append(buf, `,"sender":`...)
	buf = appendString(buf, m.Sender)
	buf = append(buf, `,"token":`...)
	buf = appendString(buf, m.Token)
	return append(buf, '}'), nil
}

// AppendJSON appends the canonical form of d to buf.
// Key order: action, broadcast{eventType, payload}, room.
func (d Data) AppendJSON(buf []byte) ([]byte, error) {
	payload, err := canonical(d.Broadcast.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	buf = append(buf, `{"action":`...)
	buf = appendString(buf, d.Action)
	buf = append(buf, `,"broadcast":{"eventType":`...)
	buf = appendString(buf, d.Broadcast.EventType)
	buf = append(buf, `,"payload":`...)
	buf = append(buf, payload...)
	buf = append(buf, `},"room":`...)
	buf = appendString(buf, d.Room)
	return append(buf, '}'), nil
}

// MarshalJSON makes json.Marshal produce the canonical form.
func (m Message) MarshalJSON() ([]byte, error) { return m.AppendJSON(nil) }

func (d Data) MarshalJSON() ([]byte, error) { return d.AppendJSON(nil) }

// canonical encodes v, then round-trips it through a generic value so that
// struct field order is replaced by sorted map keys.
func canonical(v any) ([]byte, error) {
	first, err := marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return marshal(generic)
}

// marshal is json.Marshal without HTML escaping and without the trailing newline.
func marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(b.Bytes(), []byte{'\n'}), nil
}

func appendString(buf []byte, s string) []byte {
	// strings never fail to encode
	b, _ := marshal(s)
	return append(buf, b...)
}
