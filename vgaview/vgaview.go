//go:build sdl

// Package vgaview renders the physical VGA buffer and the two shadow
// buffers (spec.md §6) as three SDL windows -- the hosted substitute for a
// monitor plugged into VGA output. It is built only with the "sdl" tag
// since go-sdl2 needs cgo and the SDL2 shared library at build time.
//
// Each text-mode cell is drawn as a solid block in its attribute byte's
// foreground color rather than a real glyph; a bitmap font is out of scope
// for visualising scheduler/terminal behaviour, which is this package's
// only purpose.
//
// Grounded on gui/sdl/screen.go's window/renderer/texture triple and pixel
// buffer upload pattern, reduced from "stream a decoded TV frame" to
// "stream a text-mode cell grid".
package vgaview

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/paging"
)

const (
	cellW = 9
	cellH = 16
)

// cgaPalette is the standard 16-color CGA/VGA text-mode palette, indexed by
// the low nibble of the attribute byte.
var cgaPalette = [16]sdl.Color{
	{R: 0, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 170, A: 255},
	{R: 0, G: 170, B: 0, A: 255},
	{R: 0, G: 170, B: 170, A: 255},
	{R: 170, G: 0, B: 0, A: 255},
	{R: 170, G: 0, B: 170, A: 255},
	{R: 170, G: 85, B: 0, A: 255},
	{R: 170, G: 170, B: 170, A: 255},
	{R: 85, G: 85, B: 85, A: 255},
	{R: 85, G: 85, B: 255, A: 255},
	{R: 85, G: 255, B: 85, A: 255},
	{R: 85, G: 255, B: 255, A: 255},
	{R: 255, G: 85, B: 85, A: 255},
	{R: 255, G: 85, B: 255, A: 255},
	{R: 255, G: 255, B: 85, A: 255},
	{R: 255, G: 255, B: 255, A: 255},
}

// Window is one SDL window rendering a single physical text-mode page.
type Window struct {
	title    string
	phys     uint32
	arena    *paging.Arena
	window   *sdl.Window
	renderer *sdl.Renderer
}

// newWindow creates and shows one SDL window for the text-mode page at
// phys.
func newWindow(title string, phys uint32, arena *paging.Arena) (*Window, error) {
	w := int32(kernelprefs.ScreenColumns * cellW)
	h := int32(kernelprefs.ScreenRows * cellH)

	sdlWin, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, w, h, sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("vgaview: create window %q: %w", title, err)
	}
	renderer, err := sdl.CreateRenderer(sdlWin, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		sdlWin.Destroy()
		return nil, fmt.Errorf("vgaview: create renderer %q: %w", title, err)
	}

	return &Window{title: title, phys: phys, arena: arena, window: sdlWin, renderer: renderer}, nil
}

// Render redraws every text cell from the window's backing physical page.
func (w *Window) Render() {
	buf := w.arena.At(w.phys, kernelprefs.ScreenColumns*kernelprefs.ScreenRows*2)

	w.renderer.SetDrawColor(0, 0, 0, 255)
	w.renderer.Clear()

	for row := 0; row < kernelprefs.ScreenRows; row++ {
		for col := 0; col < kernelprefs.ScreenColumns; col++ {
			idx := (row*kernelprefs.ScreenColumns + col) * 2
			attr := buf[idx+1]
			fg := cgaPalette[attr&0x0f]

			w.renderer.SetDrawColor(fg.R, fg.G, fg.B, fg.A)
			rect := sdl.Rect{X: int32(col * cellW), Y: int32(row * cellH), W: cellW, H: cellH}
			w.renderer.FillRect(&rect)
		}
	}
	w.renderer.Present()
}

// Destroy releases the window's SDL resources.
func (w *Window) Destroy() {
	w.renderer.Destroy()
	w.window.Destroy()
}

// Trio is the three text-mode windows for physical VGA and the two
// terminals not currently occupying it.
type Trio struct {
	windows [kernelprefs.NumTerminals]*Window
}

// NewTrio opens one window per terminal's physical page: terminal 0
// renders whichever physical page is currently VGA (the caller re-points
// it as the viewing terminal changes), terminals 1/2 always render their
// own shadow page.
func NewTrio(arena *paging.Arena) (*Trio, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("vgaview: sdl.Init: %w", err)
	}

	t := &Trio{}
	phys := [kernelprefs.NumTerminals]uint32{paging.VGAPhys, paging.ShadowPhys(1), paging.ShadowPhys(2)}
	for i := range t.windows {
		w, err := newWindow(fmt.Sprintf("minikernel: terminal %d", i), phys[i], arena)
		if err != nil {
			t.Destroy()
			return nil, err
		}
		t.windows[i] = w
	}
	return t, nil
}

// RenderAll redraws every window from its current backing page.
func (t *Trio) RenderAll() {
	for _, w := range t.windows {
		w.Render()
	}
}

// Destroy releases every window and quits SDL.
func (t *Trio) Destroy() {
	for _, w := range t.windows {
		if w != nil {
			w.Destroy()
		}
	}
	sdl.Quit()
}
