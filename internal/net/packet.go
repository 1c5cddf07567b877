package net

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketSize is the fixed encoded length of every datagram:
// opcode (1) | epoch (2) | input (8), big-endian.
const PacketSize = 11

// Opcode selects how a packet is handled by the receiver.
type Opcode uint8

const (
	OpCmd Opcode = iota
	OpAck
	OpStart
	OpHash
)

func (o Opcode) String() string {
	switch o {
	case OpCmd:
		return "CMD"
	case OpAck:
		return "ACK"
	case OpStart:
		return "START"
	case OpHash:
		return "HASH"
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// ErrPacketSize is returned by Decode for any buffer that is not exactly
// PacketSize bytes long.
var ErrPacketSize = errors.New("net: datagram is not a packet")

// START packets carry the sender's participant index in the low byte of Input
// and set StartReply on answers.
const StartReply uint64 = 1 << 8

// Packet is the only message exchanged between peers.
type Packet struct {
	Opcode Opcode
	Epoch  Epoch
	Input  uint64
}

// Command returns Input interpreted as a command value.
func (p Packet) Command() Command {
	return Command(p.Input)
}

// Encode writes p into a fresh PacketSize buffer.
func Encode(p Packet) []byte {
	b := make([]byte, PacketSize)
	EncodeTo(b, p)
	return b
}

// EncodeTo writes p into b, which must hold at least PacketSize bytes.
func EncodeTo(b []byte, p Packet) {
	_ = b[PacketSize-1]
	b[0] = byte(p.Opcode)
	binary.BigEndian.PutUint16(b[1:3], uint16(p.Epoch))
	binary.BigEndian.PutUint64(b[3:11], p.Input)
}

// Decode parses a datagram. Opcode values are not checked here; an unknown
// opcode is a handling decision, not a framing error.
func Decode(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, fmt.Errorf("%w: got %d bytes, want %d", ErrPacketSize, len(b), PacketSize)
	}
	return Packet{
		Opcode: Opcode(b[0]),
		Epoch:  Epoch(binary.BigEndian.Uint16(b[1:3])),
		Input:  binary.BigEndian.Uint64(b[3:11]),
	}, nil
}

// NewCmd, NewAck and NewStart build the common packets.

func NewCmd(e Epoch, c Command) Packet {
	return Packet{Opcode: OpCmd, Epoch: e, Input: uint64(c)}
}

func NewAck(e Epoch) Packet {
	return Packet{Opcode: OpAck, Epoch: e}
}

func NewStart(player int, reply bool) Packet {
	in := uint64(player) & 0xff
	if reply {
		in |= StartReply
	}
	return Packet{Opcode: OpStart, Input: in}
}
