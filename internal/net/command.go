package net

import "fmt"

// Epoch identifies one simulation step. It wraps at 2^16; ordering between
// two epochs is decided with serial arithmetic (see Before).
type Epoch uint16

// Before reports whether e precedes o, treating the counter as a wrapping
// sequence number.
func (e Epoch) Before(o Epoch) bool {
	return int16(e-o) < 0
}

// Add returns e advanced by n, wrapping.
func (e Epoch) Add(n int) Epoch {
	return e + Epoch(n)
}

// Command is one participant's input for one epoch.
type Command uint8

const (
	CmdNone Command = iota
	CmdUp
	CmdDown

	numCommands
)

// Valid reports whether c is a known command value.
func (c Command) Valid() bool {
	return c < numCommands
}

func (c Command) String() string {
	switch c {
	case CmdNone:
		return "none"
	case CmdUp:
		return "up"
	case CmdDown:
		return "down"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}
