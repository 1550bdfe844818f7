// Package hostterm drives the keyboard driver (spec.md component C4) from
// the host's own terminal: it puts the controlling tty into raw/cbreak
// mode and turns each byte read from stdin into a keyboard.Key delivered
// to an interrupt.Bus, standing in for the 8042 controller's IRQ1.
//
// Grounded on debugger/terminal/colorterm/easyterm/easyterm.go's
// termios-based raw-mode switch, adapted from "read one line at a time for
// a debugger prompt" to "read one byte at a time and translate it",
// because this kernel's own line buffering (terminal.Terminal) replaces
// the host terminal's line discipline rather than layering on top of it.
package hostterm

import (
	"os"
	"syscall"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"

	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/keyboard"
)

// KeyDeliverer is the subset of interrupt.Bus hostterm drives; keeping it
// an interface lets tests substitute a recorder instead of a real Bus.
type KeyDeliverer interface {
	KeyDown(k keyboard.Key)
	KeyUp(k keyboard.Key)
}

// Host owns the raw-mode terminal state and the byte-to-Key translation
// table.
type Host struct {
	input *os.File
	canon syscall.Termios
	raw   syscall.Termios

	bus KeyDeliverer

	stopCh chan struct{}
}

// byteKeys maps a raw stdin byte to the Key it represents in canonical
// (unshifted, lowercase) form; letters and digits are derived
// algorithmically instead of listed exhaustively.
var byteKeys = map[byte]keyboard.Key{
	' ':  keyboard.KeySpace,
	'\r': keyboard.KeyEnter,
	'\n': keyboard.KeyEnter,
	0x7f: keyboard.KeyBackspace, // DEL, what most terminals send for backspace
	0x08: keyboard.KeyBackspace, // BS
	0x0c: keyboard.KeyNone,      // handled specially: Ctrl+L
	'-':  keyboard.KeyMinus,
	'=':  keyboard.KeyEquals,
	';':  keyboard.KeySemicolon,
	',':  keyboard.KeyComma,
	'.':  keyboard.KeyPeriod,
	'/':  keyboard.KeySlash,
}

func letterKey(c byte) (keyboard.Key, bool) {
	if c >= 'a' && c <= 'z' {
		return keyboard.KeyA + keyboard.Key(c-'a'), true
	}
	if c >= 'A' && c <= 'Z' {
		return keyboard.KeyA + keyboard.Key(c-'A'), true
	}
	return keyboard.KeyNone, false
}

func digitKey(c byte) (keyboard.Key, bool) {
	if c >= '0' && c <= '9' {
		return keyboard.Key0 + keyboard.Key(c-'0'), true
	}
	return keyboard.KeyNone, false
}

// New puts input's fd into raw mode and returns a Host ready to Run.
func New(input *os.File, bus KeyDeliverer) (*Host, error) {
	h := &Host{input: input, bus: bus, stopCh: make(chan struct{})}

	if err := termios.Tcgetattr(input.Fd(), &h.canon); err != nil {
		return nil, err
	}
	h.raw = h.canon
	termios.Cfmakeraw(&h.raw)

	if err := termios.Tcsetattr(input.Fd(), termios.TCSANOW, &h.raw); err != nil {
		return nil, err
	}
	klog.Log("hostterm", "raw mode engaged")
	return h, nil
}

// Close restores the terminal's original (canonical) mode.
func (h *Host) Close() error {
	return termios.Tcsetattr(h.input.Fd(), termios.TCSANOW, &h.canon)
}

// Geometry reports the host terminal's size in character cells, via
// TIOCGWINSZ.
func (h *Host) Geometry() (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(int(h.input.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}

// Run reads stdin one byte at a time, translating each into KeyDown (and,
// for every translated key, an immediate matching KeyUp -- a raw terminal
// gives no separate key-release event) until Stop is called or input
// returns EOF.
func (h *Host) Run() {
	buf := make([]byte, 1)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		n, err := h.input.Read(buf)
		if err != nil || n == 0 {
			return
		}
		h.deliver(buf[0])
	}
}

// Stop signals Run to return after its next read.
func (h *Host) Stop() {
	close(h.stopCh)
}

func (h *Host) deliver(c byte) {
	if c == 0x0c { // Ctrl+L
		h.bus.KeyDown(keyboard.KeyCtrl)
		h.bus.KeyDown(keyboard.KeyL)
		h.bus.KeyUp(keyboard.KeyL)
		h.bus.KeyUp(keyboard.KeyCtrl)
		return
	}

	if k, ok := letterKey(c); ok {
		isUpper := c >= 'A' && c <= 'Z'
		if isUpper {
			h.bus.KeyDown(keyboard.KeyShift)
		}
		h.bus.KeyDown(k)
		h.bus.KeyUp(k)
		if isUpper {
			h.bus.KeyUp(keyboard.KeyShift)
		}
		return
	}
	if k, ok := digitKey(c); ok {
		h.bus.KeyDown(k)
		h.bus.KeyUp(k)
		return
	}
	if k, ok := byteKeys[c]; ok && k != keyboard.KeyNone {
		h.bus.KeyDown(k)
		h.bus.KeyUp(k)
	}
}
