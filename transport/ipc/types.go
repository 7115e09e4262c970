package ipc

import "fmt"

type OpCode uint32

const (
	OpHandshake OpCode = 0
	OpFrame     OpCode = 1
	OpClose     OpCode = 2
	OpPing      OpCode = 3
	OpPong      OpCode = 4
)

func (op OpCode) String() string {
	switch op {
	case OpHandshake:
		return "HANDSHAKE"
	case OpFrame:
		return "FRAME"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	}
	return fmt.Sprintf("OpCode(%d)", uint32(op))
}

const (
	// HeaderSize is the opcode plus the payload length, both little-endian uint32.
	HeaderSize = 8
	// MaxPayloadSize bounds what a peer can make us allocate for one frame.
	MaxPayloadSize = 65535
)

// Frame is one decoded opcode + JSON object unit.
type Frame struct {
	Opcode  OpCode
	Payload map[string]any
}
