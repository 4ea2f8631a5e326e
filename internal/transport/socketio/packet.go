package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// packet.go = Engine.IO v4 / Socket.IO v4 text framing.
// One websocket frame carries one Engine.IO packet; MESSAGE packets carry one
// Socket.IO packet: <type>[<namespace>,][<ack id>][<json data>]

// EnginePacket is the first byte of every frame.
type EnginePacket byte

const (
	EngineOpen    EnginePacket = '0'
	EngineClose   EnginePacket = '1'
	EnginePing    EnginePacket = '2'
	EnginePong    EnginePacket = '3'
	EngineMessage EnginePacket = '4'
	EngineUpgrade EnginePacket = '5'
	EngineNoop    EnginePacket = '6'
)

// PacketType is the Socket.IO packet type.
type PacketType byte

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

const DefaultNamespace = "/"

var (
	ErrEmptyPacket       = errors.New("empty packet")
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrBinaryUnsupported = errors.New("binary packets are not supported")
)

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        *uint64 // ack id; nil when no ack is requested or carried
	Data      json.RawMessage
}

// OpenPayload is the body of the Engine.IO open packet.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"` // milliseconds
	PingTimeout  int      `json:"pingTimeout"`  // milliseconds
	MaxPayload   int      `json:"maxPayload"`
}

// Encode renders p without the Engine.IO prefix.
func (p Packet) Encode() string {
	var b strings.Builder
	b.WriteByte('0' + byte(p.Type))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID != nil {
		b.WriteString(strconv.FormatUint(*p.ID, 10))
	}
	if len(p.Data) > 0 {
		b.Write(p.Data)
	}
	return b.String()
}

// Frame renders p as a complete Engine.IO MESSAGE frame.
func (p Packet) Frame() string {
	return string(EngineMessage) + p.Encode()
}

// DecodePacket parses a Socket.IO packet (Engine.IO prefix already stripped).
func DecodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, ErrEmptyPacket
	}
	if s[0] < '0' || s[0] > '6' {
		return Packet{}, fmt.Errorf("%w: %q", ErrUnknownPacketType, s[0])
	}
	p := Packet{Type: PacketType(s[0] - '0'), Namespace: DefaultNamespace}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, ErrBinaryUnsupported
	}

	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		if i := strings.IndexByte(rest, ','); i >= 0 {
			p.Namespace, rest = rest[:i], rest[i+1:]
		} else {
			p.Namespace, rest = rest, ""
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseUint(rest[:digits], 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("invalid ack id: %w", err)
		}
		p.ID = &id
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return Packet{}, fmt.Errorf("invalid packet data: %q", rest)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// Args decodes the data of an EVENT or ACK packet as a JSON array.
func (p Packet) Args() ([]any, error) {
	if len(p.Data) == 0 {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return nil, fmt.Errorf("decode packet args: %w", err)
	}
	return args, nil
}

// ConnectErrorMessage extracts the message of a CONNECT_ERROR packet.
func (p Packet) ConnectErrorMessage() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p.Data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var plain string
	if err := json.Unmarshal(p.Data, &plain); err == nil {
		return plain
	}
	return string(p.Data)
}

// EventPacket builds an EVENT packet whose arguments are args.
func EventPacket(namespace string, id *uint64, args ...any) (Packet, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return Packet{}, fmt.Errorf("encode event args: %w", err)
	}
	return Packet{Type: PacketEvent, Namespace: namespace, ID: id, Data: data}, nil
}
