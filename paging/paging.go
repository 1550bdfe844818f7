// Package paging implements the paging controller (spec.md component C2):
// one page directory and two page tables, the user-program window, the
// user-video window and the discipline that every mutation is followed by
// an explicit TLB flush before any user-mode code runs.
//
// There is no real MMU in a hosted emulation, so "physical memory" is a
// flat byte Arena and a "translation" is bookkeeping the controller keeps
// about which physical range is currently reachable through which virtual
// window. The bookkeeping is real, though: RequireFlushed fails after a
// mutation until FlushTLB is called, the stand-in for a real CPU being
// forbidden from trusting a stale TLB entry. The Translate methods do not
// check this; they always return the most recently installed mapping.
package paging

import (
	"sync"

	"github.com/opsys391/minikernel/kernelerror"
)

const (
	PageSize = 4096
	MiB      = 1024 * 1024

	// Virtual memory map, §6.
	KernelLowBase  = 0
	KernelLowSize  = 4 * MiB
	KernelHighBase = 4 * MiB
	KernelHighSize = 4 * MiB
	UserSlotBase   = 8 * MiB
	UserSlotSize   = 4 * MiB
	MaxUserSlots   = 6
	UserProgVirt   = 128 * MiB
	UserVideoVirt  = 0x4500000

	// Physical locations, §6.
	VGAPhys      = 0xB8000
	Shadow0Phys  = 0xB9000
	Shadow1Phys  = 0xBA000
	Shadow2Phys  = 0xBB000
	ArenaSize    = UserSlotBase + MaxUserSlots*UserSlotSize
)

// ShadowPhys returns the physical address of the shadow video page for
// terminal t (0, 1 or 2).
func ShadowPhys(t int) uint32 {
	switch t {
	case 0:
		return Shadow0Phys
	case 1:
		return Shadow1Phys
	default:
		return Shadow2Phys
	}
}

// Arena is the flat physical memory backing every mapping the controller
// installs.
type Arena struct {
	mem []byte
}

// NewArena allocates a zeroed physical arena large enough for kernel space
// and all six user slots.
func NewArena() *Arena {
	return &Arena{mem: make([]byte, ArenaSize)}
}

// At returns a slice view of n bytes of physical memory starting at phys.
func (a *Arena) At(phys uint32, n int) []byte {
	return a.mem[phys : phys+uint32(n)]
}

// Controller owns the (simulated) page directory and two page tables, and
// enforces the flush-after-mutation discipline described in §4.2.
type Controller struct {
	mu sync.Mutex

	userProgPhys uint32 // physical base currently windowed at UserProgVirt
	videoTarget  uint32 // physical address currently windowed at UserVideoVirt
	videoMapped  bool

	dirty bool // true from the moment a mapping changes until FlushTLB
}

// NewController returns a controller with directory entry 0/1 conceptually
// installed (kernel low/high, always present) and no user mappings yet.
func NewController() *Controller {
	return &Controller{dirty: true}
}

// SetPDE installs the directory entry that maps the user-program window to
// phys, a 4 MiB-aligned physical address. This stands in for "directory
// entry for virtual 128 MiB is a user-accessible 4 MiB page pointing to
// phys" in §4.2.
func (c *Controller) SetPDE(phys uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userProgPhys = phys
	c.dirty = true
}

// SetPTE2 installs the user-video page table entry, pointing the one 4 KiB
// page at UserVideoVirt to phys -- either physical VGA memory or the
// current process's shadow buffer.
func (c *Controller) SetPTE2(phys uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoTarget = phys
	c.videoMapped = true
	c.dirty = true
}

// DisablePTE2 removes the user-video mapping entirely.
func (c *Controller) DisablePTE2() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoMapped = false
	c.dirty = true
}

// FlushTLB marks every pending mutation as visible. Every mutator above
// must be followed by exactly this call before control returns to
// user-mode code -- §8's invariant.
func (c *Controller) FlushTLB() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}

// Flushed reports whether the TLB is consistent with the last mutation.
func (c *Controller) Flushed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dirty
}

// RequireFlushed returns an error if a mutation has happened since the last
// FlushTLB -- the paging equivalent of executing a user-mode instruction
// against a stale translation.
func (c *Controller) RequireFlushed() error {
	if !c.Flushed() {
		return kernelerror.New(kernelerror.BadArgument, "TLB not flushed before user-mode resume")
	}
	return nil
}

// TranslateUserProg returns the physical base currently windowed at
// UserProgVirt.
func (c *Controller) TranslateUserProg() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userProgPhys
}

// TranslateUserVideo returns the physical address currently windowed at
// UserVideoVirt and whether that window is installed at all.
func (c *Controller) TranslateUserVideo() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoTarget, c.videoMapped
}

// SlotPhys returns the physical base of user slot pid (1..MaxUserSlots).
func SlotPhys(pid int) uint32 {
	return UserSlotBase + uint32(pid-1)*UserSlotSize
}

// InUserWindow reports whether virt..virt+n lies entirely within the
// current user-program window [UserProgVirt, UserProgVirt+UserSlotSize).
// getargs and vidmap both gate on this (§4.7).
func InUserWindow(virt uint32, n uint32) bool {
	if virt < UserProgVirt {
		return false
	}
	end := uint64(virt) + uint64(n)
	return end <= uint64(UserProgVirt)+uint64(UserSlotSize)
}
