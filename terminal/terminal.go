// Package terminal implements the three-terminal multiplexer (spec.md
// component C3): one physical VGA framebuffer shared by three independent
// terminal states, redirected between physical VGA and per-terminal shadow
// pages depending on which terminal is being viewed versus which is
// merely printing.
//
// Grounded on debugger/terminal/terminal.go's Input/Output split (a
// terminal is a line-buffered reader plus a styled writer) and
// debugger/terminal/plainterm/plainterm.go's minimal TermPrint/TermRead
// pair, generalised here to three independent instances multiplexed onto
// one backing store instead of one terminal backed by the host console.
package terminal

import (
	"sync"

	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/paging"
)

const (
	Columns     = kernelprefs.ScreenColumns
	Rows        = kernelprefs.ScreenRows
	cellBytes   = 2
	lineBufCap  = 127 // + newline, per §3's "127 chars + newline cap"
	screenBytes = Columns * Rows * cellBytes
)

// Terminal is the per-terminal state described in §3: a 128-byte line
// buffer and index, modifier flags, the line_buffer_flag rendezvous with
// terminal_read, and a cursor position.
type Terminal struct {
	mu sync.Mutex

	LineBuf        [128]byte
	BufIndex       int
	LineBufferFlag bool

	Shift, Ctrl, Alt, Caps bool

	cursorRow, cursorCol int
}

// AppendChar appends c to the line buffer if there is room for it plus the
// eventual newline. Returns false if the buffer is full.
func (t *Terminal) AppendChar(c byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.BufIndex >= lineBufCap {
		return false
	}
	t.LineBuf[t.BufIndex] = c
	t.BufIndex++
	return true
}

// Backspace removes the last character in the buffer, if any, returning
// true if one was removed.
func (t *Terminal) Backspace() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.BufIndex == 0 {
		return false
	}
	t.BufIndex--
	return true
}

// AppendNewline appends a newline to the buffer if there is room, without
// touching line_buffer_flag. Split out from Enter because the keyboard
// driver raises the flag on a possibly different Terminal than the one
// whose buffer it just terminated (§4.4).
func (t *Terminal) AppendNewline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.BufIndex < len(t.LineBuf) {
		t.LineBuf[t.BufIndex] = '\n'
		t.BufIndex++
	}
}

// RaiseFlag sets line_buffer_flag -- the wake-up for any blocked
// terminal_read on this terminal.
func (t *Terminal) RaiseFlag() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LineBufferFlag = true
}

// Enter appends a newline and raises line_buffer_flag on the same
// Terminal. Convenience for callers (tests, a single-terminal setup) where
// the two always coincide.
func (t *Terminal) Enter() {
	t.AppendNewline()
	t.RaiseFlag()
}

// ConsumeLine copies the current line buffer into dst (up to len(dst)
// bytes), resets the buffer and clears line_buffer_flag. It is the
// terminal_read side of the keyboard ISR's single-producer/single-consumer
// rendezvous.
func (t *Terminal) ConsumeLine(dst []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.BufIndex
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst[:n], t.LineBuf[:n])
	t.BufIndex = 0
	t.LineBufferFlag = false
	return n
}

// ReadFlag reports whether the line_buffer_flag is set without consuming
// anything.
func (t *Terminal) ReadFlag() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.LineBufferFlag
}

// Multiplexer owns the three Terminal states, the physical VGA buffer and
// the three shadow buffers, and implements the redirection rules of §4.3.
type Multiplexer struct {
	mu sync.Mutex

	// irq is the host-side stand-in for "interrupts disabled": the keyboard
	// ISR's echo/echoBackspace/clearAndReprint critical sections and the
	// scheduler's print_terminal update in Tick both hold it around their
	// save-set-write-restore sequences, since print_terminal has exactly
	// one writer at a time on real hardware only because both run with
	// interrupts off (§5).
	irq sync.Mutex

	arena *paging.Arena
	terms [kernelprefs.NumTerminals]*Terminal

	curTerminal  int // viewing terminal (Alt+F1/F2/F3)
	curSchedTerm int // scheduled (running) terminal
	printTerminal int
}

// WithIRQLock runs fn with the multiplexer's IRQ lock held, serializing it
// against every other WithIRQLock caller the way a real interrupts-off
// section would. fn is expected to call other Multiplexer methods, which
// take the separate mu lock internally -- irq guards only the ordering of
// those calls relative to other callers, not their own state.
func (m *Multiplexer) WithIRQLock(fn func()) {
	m.irq.Lock()
	defer m.irq.Unlock()
	fn()
}

// NewMultiplexer constructs a multiplexer backed by arena, with terminal 0
// both viewed and scheduled initially.
func NewMultiplexer(arena *paging.Arena) *Multiplexer {
	m := &Multiplexer{arena: arena}
	for i := range m.terms {
		m.terms[i] = &Terminal{}
	}
	m.curTerminal = 0
	m.curSchedTerm = 0
	m.printTerminal = 0
	return m
}

// Terminal returns the state for terminal index i.
func (m *Multiplexer) Terminal(i int) *Terminal {
	return m.terms[i]
}

// CurTerminal returns the currently-viewed terminal.
func (m *Multiplexer) CurTerminal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curTerminal
}

// CurSchedTerm returns the currently-scheduled terminal.
func (m *Multiplexer) CurSchedTerm() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curSchedTerm
}

// SetSchedTerm updates the scheduled terminal; called by the scheduler on
// every tick (§4.5 step 2).
func (m *Multiplexer) SetSchedTerm(t int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.curSchedTerm = t
}

// PrintTerminal returns the current destination of Putc.
func (m *Multiplexer) PrintTerminal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.printTerminal
}

// SetPrintTerminal sets the destination of Putc. The keyboard ISR sets this
// to curTerminal for the duration of echo; everywhere else it tracks
// curSchedTerm (§3, "print_terminal").
func (m *Multiplexer) SetPrintTerminal(t int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.printTerminal = t
}

func (m *Multiplexer) vgaBuf() []byte {
	return m.arena.At(paging.VGAPhys, screenBytes)
}

func (m *Multiplexer) shadowBuf(t int) []byte {
	return m.arena.At(paging.ShadowPhys(t), screenBytes)
}

// destBuf returns the physical buffer Putc should write to for the current
// print_terminal: physical VGA if print_terminal == curTerminal, otherwise
// that terminal's shadow page. This indirection is what lets a
// scheduled-but-unviewed process keep printing without corrupting the
// viewer's screen.
func (m *Multiplexer) destBuf() ([]byte, int) {
	if m.printTerminal == m.curTerminal {
		return m.vgaBuf(), m.printTerminal
	}
	return m.shadowBuf(m.printTerminal), m.printTerminal
}

// Putc writes one character to the current print_terminal's destination,
// advancing that terminal's cursor and scrolling if necessary.
func (m *Multiplexer) Putc(c byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, termIdx := m.destBuf()
	term := m.terms[termIdx]

	if c == '\n' {
		term.cursorCol = 0
		term.cursorRow++
	} else {
		idx := (term.cursorRow*Columns + term.cursorCol) * cellBytes
		if idx+1 < len(buf) {
			buf[idx] = c
			buf[idx+1] = 0x07 // light grey on black, VGA default attribute
		}
		term.cursorCol++
		if term.cursorCol >= Columns {
			term.cursorCol = 0
			term.cursorRow++
		}
	}

	if term.cursorRow >= Rows {
		m.scroll(buf)
		term.cursorRow = Rows - 1
	}
}

// Backspace moves the current print_terminal's cursor back one cell and
// blanks it, matching a destructive terminal backspace.
func (m *Multiplexer) Backspace() {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, termIdx := m.destBuf()
	term := m.terms[termIdx]

	if term.cursorCol == 0 {
		if term.cursorRow == 0 {
			return
		}
		term.cursorRow--
		term.cursorCol = Columns - 1
	} else {
		term.cursorCol--
	}

	idx := (term.cursorRow*Columns + term.cursorCol) * cellBytes
	if idx+1 < len(buf) {
		buf[idx] = ' '
		buf[idx+1] = 0x07
	}
}

// scroll shifts buf up by one text row and blanks the last row.
func (m *Multiplexer) scroll(buf []byte) {
	rowBytes := Columns * cellBytes
	copy(buf, buf[rowBytes:])
	for i := len(buf) - rowBytes; i < len(buf); i += 2 {
		buf[i] = ' '
		buf[i+1] = 0x07
	}
}

// ClearScreen clears the current print_terminal's destination buffer and
// homes its cursor -- Ctrl+L (§4.4).
func (m *Multiplexer) ClearScreen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, termIdx := m.destBuf()
	for i := 0; i < len(buf); i += 2 {
		buf[i] = ' '
		buf[i+1] = 0x07
	}
	m.terms[termIdx].cursorRow = 0
	m.terms[termIdx].cursorCol = 0
}

// Switch performs an Alt+F1/F2/F3 terminal switch: the on-screen contents
// are copied to the outgoing terminal's shadow, the incoming terminal's
// shadow is copied onto the screen, and the cursor is restored from the
// incoming terminal's saved state (§4.3).
func (m *Multiplexer) Switch(next int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next == m.curTerminal {
		return
	}

	vga := m.vgaBuf()
	copy(m.shadowBuf(m.curTerminal), vga)
	copy(vga, m.shadowBuf(next))

	m.curTerminal = next
	klog.Logf("terminal", "switched viewing terminal to %d", next)
}
