package keyboard_test

import (
	"testing"

	"github.com/opsys391/minikernel/keyboard"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/terminal"
)

func typeString(d *keyboard.Driver, keys ...keyboard.Key) {
	for _, k := range keys {
		d.KeyDown(k)
	}
}

func TestTypeLsEnter(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	d := keyboard.NewDriver(mux)

	typeString(d, keyboard.KeyL, keyboard.KeyS, keyboard.KeyEnter)

	viewing := mux.Terminal(mux.CurTerminal())
	buf := make([]byte, 16)
	n := viewing.ConsumeLine(buf)
	if n != 3 || string(buf[:n]) != "ls\n" {
		t.Fatalf("got %q (%d)", buf[:n], n)
	}
}

func TestShiftWithoutCapsKeepsLettersBase(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	d := keyboard.NewDriver(mux)

	d.KeyDown(keyboard.KeyShift)
	d.KeyDown(keyboard.KeyA)
	d.KeyUp(keyboard.KeyShift)
	d.KeyDown(keyboard.KeyB)

	viewing := mux.Terminal(mux.CurTerminal())
	buf := make([]byte, 16)
	n := viewing.BufIndex
	copy(buf, viewing.LineBuf[:n])
	if string(buf[:n]) != "ab" {
		t.Fatalf("got %q, want \"ab\"", buf[:n])
	}
}

func TestCapsLockInvertsLettersOnly(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	d := keyboard.NewDriver(mux)

	d.KeyDown(keyboard.KeyCapsLock)
	d.KeyDown(keyboard.KeyA)
	d.KeyDown(keyboard.Key1)

	viewing := mux.Terminal(mux.CurTerminal())
	n := viewing.BufIndex
	got := string(viewing.LineBuf[:n])
	if got != "A1" {
		t.Fatalf("got %q, want \"A1\" (caps affects letters only)", got)
	}
}

func TestAltF2SwitchesViewingTerminal(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	d := keyboard.NewDriver(mux)

	d.KeyDown(keyboard.KeyAlt)
	d.KeyDown(keyboard.KeyF2)
	d.KeyUp(keyboard.KeyAlt)

	if mux.CurTerminal() != 1 {
		t.Fatalf("expected Alt+F2 to switch to terminal 1, got %d", mux.CurTerminal())
	}
}

func TestBackspaceRemovesLastChar(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	d := keyboard.NewDriver(mux)

	d.KeyDown(keyboard.KeyA)
	d.KeyDown(keyboard.KeyB)
	d.KeyDown(keyboard.KeyBackspace)

	viewing := mux.Terminal(mux.CurTerminal())
	if viewing.BufIndex != 1 || viewing.LineBuf[0] != 'a' {
		t.Fatalf("expected buffer to contain just \"a\", index=%d", viewing.BufIndex)
	}
}
