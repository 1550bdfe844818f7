// Package keyboard implements the keyboard driver (spec.md component C4):
// key identity to character translation with shift/caps/ctrl/alt, line
// buffering, Alt+F1/F2/F3 terminal switching and Ctrl+L screen clearing.
//
// A hosted emulation has no 8042 controller or raw PS/2 scan codes, so Key
// stands in for "scan code": a stable per-physical-key identity that a host
// input layer (hostterm, or a test) maps a real keystroke onto. The
// translation rules from Key+modifiers to an echoed character are exactly
// §4.4's rules.
package keyboard

import (
	"github.com/opsys391/minikernel/terminal"
)

// Key identifies a physical key, independent of modifier state.
type Key int

const (
	KeyNone Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyEnter
	KeyBackspace
	KeyMinus
	KeyEquals
	KeySemicolon
	KeyComma
	KeyPeriod
	KeySlash

	// modifiers, never produce a character on their own
	KeyShift
	KeyCtrl
	KeyAlt
	KeyCapsLock

	// terminal switch keys
	KeyF1
	KeyF2
	KeyF3
)

var isLetterKey = map[Key]bool{
	KeyA: true, KeyB: true, KeyC: true, KeyD: true, KeyE: true, KeyF: true,
	KeyG: true, KeyH: true, KeyI: true, KeyJ: true, KeyK: true, KeyL: true,
	KeyM: true, KeyN: true, KeyO: true, KeyP: true, KeyQ: true, KeyR: true,
	KeyS: true, KeyT: true, KeyU: true, KeyV: true, KeyW: true, KeyX: true,
	KeyY: true, KeyZ: true,
}

// base and shifted give the character produced for every printable key,
// mirroring the 256-entry table of §4.4 (indices 0..127 = base, 128..255 =
// shifted) collapsed here to two parallel maps over the same key space.
var base = map[Key]byte{
	KeyA: 'a', KeyB: 'b', KeyC: 'c', KeyD: 'd', KeyE: 'e', KeyF: 'f',
	KeyG: 'g', KeyH: 'h', KeyI: 'i', KeyJ: 'j', KeyK: 'k', KeyL: 'l',
	KeyM: 'm', KeyN: 'n', KeyO: 'o', KeyP: 'p', KeyQ: 'q', KeyR: 'r',
	KeyS: 's', KeyT: 't', KeyU: 'u', KeyV: 'v', KeyW: 'w', KeyX: 'x',
	KeyY: 'y', KeyZ: 'z',
	Key0: '0', Key1: '1', Key2: '2', Key3: '3', Key4: '4',
	Key5: '5', Key6: '6', Key7: '7', Key8: '8', Key9: '9',
	KeySpace: ' ', KeyMinus: '-', KeyEquals: '=', KeySemicolon: ';',
	KeyComma: ',', KeyPeriod: '.', KeySlash: '/',
}

var shifted = map[Key]byte{
	KeyA: 'A', KeyB: 'B', KeyC: 'C', KeyD: 'D', KeyE: 'E', KeyF: 'F',
	KeyG: 'G', KeyH: 'H', KeyI: 'I', KeyJ: 'J', KeyK: 'K', KeyL: 'L',
	KeyM: 'M', KeyN: 'N', KeyO: 'O', KeyP: 'P', KeyQ: 'Q', KeyR: 'R',
	KeyS: 'S', KeyT: 'T', KeyU: 'U', KeyV: 'V', KeyW: 'W', KeyX: 'X',
	KeyY: 'Y', KeyZ: 'Z',
	Key0: ')', Key1: '!', Key2: '@', Key3: '#', Key4: '$',
	Key5: '%', Key6: '^', Key7: '&', Key8: '*', Key9: '(',
	KeySpace: ' ', KeyMinus: '_', KeyEquals: '+', KeySemicolon: ':',
	KeyComma: '<', KeyPeriod: '>', KeySlash: '?',
}

// Translate computes the character a key produces given modifier state,
// exactly per §4.4: letter-and-caps-and-shift -> base letter;
// letter-and-caps-no-shift -> shifted letter; non-letter-and-shift ->
// shifted; else base.
func Translate(k Key, shift, caps bool) (byte, bool) {
	letter := isLetterKey[k]

	var c byte
	var ok bool
	switch {
	case letter && caps && shift:
		c, ok = base[k]
	case letter && caps && !shift:
		c, ok = shifted[k]
	case !letter && shift:
		c, ok = shifted[k]
	default:
		c, ok = base[k]
	}
	return c, ok
}

// Driver is the keyboard ISR driving one Multiplexer. It owns no state of
// its own beyond modifier flags; the line buffers it writes into live in
// the Multiplexer's Terminal instances.
type Driver struct {
	mux *terminal.Multiplexer

	shift, ctrl, alt, caps bool
}

// NewDriver constructs a keyboard driver for mux.
func NewDriver(mux *terminal.Multiplexer) *Driver {
	return &Driver{mux: mux}
}

// KeyDown handles one key-press scan code (§4.4's "scan code < 0x80"
// branch). It mutates modifier flags, performs terminal switches and
// Ctrl+L, and otherwise appends the translated character to the viewing
// terminal's line buffer and echoes it.
func (d *Driver) KeyDown(k Key) {
	switch k {
	case KeyShift:
		d.shift = true
		return
	case KeyCtrl:
		d.ctrl = true
		return
	case KeyAlt:
		d.alt = true
		return
	case KeyCapsLock:
		d.caps = !d.caps
		return
	}

	if d.alt {
		switch k {
		case KeyF1:
			d.mux.Switch(0)
			return
		case KeyF2:
			d.mux.Switch(1)
			return
		case KeyF3:
			d.mux.Switch(2)
			return
		}
	}

	if d.ctrl && k == KeyL {
		d.clearAndReprint()
		return
	}

	viewing := d.mux.Terminal(d.mux.CurTerminal())

	if k == KeyBackspace {
		if viewing.Backspace() {
			d.echoBackspace()
		}
		return
	}

	if k == KeyEnter {
		viewing.AppendNewline()
		d.echo('\n')
		d.mux.Terminal(d.mux.CurSchedTerm()).RaiseFlag()
		return
	}

	c, ok := Translate(k, d.shift, d.caps)
	if !ok {
		return
	}
	if viewing.AppendChar(c) {
		d.echo(c)
	}
}

// KeyUp handles a key-release scan code (>= 0x80 in the real encoding);
// only modifier keys are tracked on release.
func (d *Driver) KeyUp(k Key) {
	switch k {
	case KeyShift:
		d.shift = false
	case KeyCtrl:
		d.ctrl = false
	case KeyAlt:
		d.alt = false
	}
}

// echo prints c to the screen. The handler briefly points print_terminal
// at the viewing terminal so echo is always visible there, then restores
// whatever the scheduler had set -- the narrow critical section Design
// Notes calls out, run under the multiplexer's IRQ lock so the scheduler's
// own print_terminal update in Tick can't land in the middle of it.
func (d *Driver) echo(c byte) {
	d.mux.WithIRQLock(func() {
		saved := d.mux.CurSchedTerm()
		d.mux.SetPrintTerminal(d.mux.CurTerminal())
		d.mux.Putc(c)
		d.mux.SetPrintTerminal(saved)
	})
}

func (d *Driver) echoBackspace() {
	d.mux.WithIRQLock(func() {
		saved := d.mux.CurSchedTerm()
		d.mux.SetPrintTerminal(d.mux.CurTerminal())
		d.mux.Backspace()
		d.mux.SetPrintTerminal(saved)
	})
}

func (d *Driver) clearAndReprint() {
	d.mux.WithIRQLock(func() {
		saved := d.mux.CurSchedTerm()
		d.mux.SetPrintTerminal(d.mux.CurTerminal())
		d.mux.ClearScreen()

		viewing := d.mux.Terminal(d.mux.CurTerminal())
		buf := make([]byte, len(viewing.LineBuf))
		n := viewing.BufIndex
		copy(buf, viewing.LineBuf[:n])
		for i := 0; i < n; i++ {
			d.mux.Putc(buf[i])
		}
		d.mux.SetPrintTerminal(saved)
	})
}
