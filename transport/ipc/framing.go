package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/codec"
)

// EncodeFrameOp serializes payload and prefixes it with the 8-byte header.
func EncodeFrameOp(op OpCode, payload any) ([]byte, error) {
	j, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(j) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(j), MaxPayloadSize)
	}
	buf := make([]byte, HeaderSize+len(j))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(j)))
	copy(buf[HeaderSize:], j)
	return buf, nil
}

// PayloadLength validates the length field of a header.
func PayloadLength(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("%w: header is %d bytes", ErrMalformedFrame, len(header))
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	if length == 0 || length > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d", ErrOversizedFrame, length)
	}
	return int(length), nil
}

// DecodeFrameOp parses a header and its payload into an opcode and a JSON object.
// The declared length is checked before the payload is looked at.
func DecodeFrameOp(header, payload []byte) (OpCode, map[string]any, error) {
	length, err := PayloadLength(header)
	if err != nil {
		return 0, nil, err
	}
	if len(payload) != length {
		return 0, nil, fmt.Errorf("%w: length mismatch: expected %d got %d", ErrMalformedFrame, length, len(payload))
	}
	op := OpCode(binary.LittleEndian.Uint32(header[0:4]))
	doc, err := codec.UnmarshalObject(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return op, doc, nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("%w: header: %w", ErrMalformedFrame, err)
	}
	length, err := PayloadLength(header[:])
	if err != nil {
		return Frame{}, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("%w: payload: %w", ErrMalformedFrame, err)
	}
	op, doc, err := DecodeFrameOp(header[:], payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Opcode: op, Payload: doc}, nil
}

// WriteFrame encodes and writes one frame to w.
func WriteFrame(w io.Writer, op OpCode, payload any) error {
	data, err := EncodeFrameOp(op, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
