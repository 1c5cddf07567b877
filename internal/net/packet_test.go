package net

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	b := Encode(Packet{Opcode: OpAck, Epoch: 0x0102, Input: 0x0a})
	want := []byte{1, 0x01, 0x02, 0, 0, 0, 0, 0, 0, 0, 0x0a}
	if !bytes.Equal(b, want) {
		t.Fatalf("Encode = %v, want %v", b, want)
	}
}

func TestDecodeCmd(t *testing.T) {
	p, err := Decode(Encode(NewCmd(65535, CmdDown)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Opcode != OpCmd || p.Epoch != 65535 || p.Command() != CmdDown {
		t.Fatalf("decoded %+v", p)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, PacketSize - 1, PacketSize + 1, 1500} {
		if _, err := Decode(make([]byte, n)); !errors.Is(err, ErrPacketSize) {
			t.Fatalf("Decode(%d bytes) err = %v, want ErrPacketSize", n, err)
		}
	}
}

func TestDecodeKeepsUnknownOpcode(t *testing.T) {
	b := Encode(NewAck(3))
	b[0] = 0xee
	p, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Opcode != 0xee {
		t.Fatalf("opcode = %v", p.Opcode)
	}
}

func TestStartInput(t *testing.T) {
	p := NewStart(1, true)
	if p.Input&0xff != 1 || p.Input&StartReply == 0 {
		t.Fatalf("start input = %#x", p.Input)
	}
	if NewStart(0, false).Input != 0 {
		t.Fatalf("request from player 0 should carry zero input")
	}
}

func TestEpochBeforeWraps(t *testing.T) {
	if !Epoch(65530).Before(3) {
		t.Fatalf("65530 should precede 3 after wrap")
	}
	if Epoch(3).Before(65530) {
		t.Fatalf("3 should not precede 65530")
	}
	if Epoch(7).Before(7) {
		t.Fatalf("an epoch does not precede itself")
	}
	if Epoch(65535).Add(1) != 0 {
		t.Fatalf("Add should wrap")
	}
}

func TestCommandValid(t *testing.T) {
	if !CmdDown.Valid() || Command(3).Valid() {
		t.Fatalf("unexpected validity")
	}
	if CmdUp.String() != "up" {
		t.Fatalf("String = %q", CmdUp.String())
	}
}
