package terminal_test

import (
	"testing"

	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/terminal"
)

func TestLineBufferRendezvous(t *testing.T) {
	term := &terminal.Terminal{}

	for _, c := range []byte("ls") {
		if !term.AppendChar(c) {
			t.Fatalf("expected room in line buffer")
		}
	}
	if term.ReadFlag() {
		t.Fatalf("flag should not be set before Enter")
	}
	term.Enter()
	if !term.ReadFlag() {
		t.Fatalf("flag should be set after Enter")
	}

	buf := make([]byte, 128)
	n := term.ConsumeLine(buf)
	if n != 3 || string(buf[:n]) != "ls\n" {
		t.Fatalf("got %q (%d), want \"ls\\n\" (3)", buf[:n], n)
	}
	if term.ReadFlag() {
		t.Fatalf("flag should clear after consuming")
	}
}

func TestLineBufferOverflow(t *testing.T) {
	term := &terminal.Terminal{}
	for i := 0; i < 127; i++ {
		if !term.AppendChar('x') {
			t.Fatalf("unexpected overflow at %d", i)
		}
	}
	if term.AppendChar('y') {
		t.Fatalf("expected overflow to be rejected once the newline cap is reached")
	}
}

func TestPutcRoutesToShadowWhenUnviewed(t *testing.T) {
	arena := paging.NewArena()
	m := terminal.NewMultiplexer(arena)

	m.SetPrintTerminal(1) // terminal 1 prints, but terminal 0 is being viewed
	m.Putc('A')

	vga := arena.At(paging.VGAPhys, 2)
	if vga[0] == 'A' {
		t.Fatalf("unviewed terminal should not write to physical VGA")
	}

	shadow := arena.At(paging.ShadowPhys(1), 2)
	if shadow[0] != 'A' {
		t.Fatalf("expected 'A' in terminal 1's shadow buffer, got %q", shadow[0])
	}
}

func TestSwitchPreservesShadowContent(t *testing.T) {
	arena := paging.NewArena()
	m := terminal.NewMultiplexer(arena)

	m.SetPrintTerminal(0)
	m.Putc('X')

	m.Switch(1)
	m.SetPrintTerminal(1)
	m.Putc('Y')

	m.Switch(0)
	vga := arena.At(paging.VGAPhys, 4)
	if vga[0] != 'X' {
		t.Fatalf("switching back to terminal 0 should restore its prior screen content")
	}
}
