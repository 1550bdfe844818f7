package paging_test

import (
	"testing"

	"github.com/opsys391/minikernel/paging"
)

func TestFlushDiscipline(t *testing.T) {
	c := paging.NewController()
	if c.Flushed() {
		t.Fatalf("fresh controller should require an initial flush")
	}
	c.FlushTLB()
	if !c.Flushed() {
		t.Fatalf("expected flushed after FlushTLB")
	}

	c.SetPDE(paging.SlotPhys(1))
	if c.Flushed() {
		t.Fatalf("mutation should dirty the TLB")
	}
	if err := c.RequireFlushed(); err == nil {
		t.Fatalf("expected RequireFlushed to fail while dirty")
	}
	c.FlushTLB()
	if err := c.RequireFlushed(); err != nil {
		t.Fatalf("expected RequireFlushed to succeed after flush: %v", err)
	}
}

func TestUserProgramWindow(t *testing.T) {
	c := paging.NewController()
	c.SetPDE(paging.SlotPhys(3))
	c.FlushTLB()
	if got := c.TranslateUserProg(); got != paging.SlotPhys(3) {
		t.Fatalf("got %#x, want %#x", got, paging.SlotPhys(3))
	}
}

func TestVideoWindowToggle(t *testing.T) {
	c := paging.NewController()
	c.SetPTE2(paging.VGAPhys)
	c.FlushTLB()
	phys, mapped := c.TranslateUserVideo()
	if !mapped || phys != paging.VGAPhys {
		t.Fatalf("expected video mapped to VGA, got %#x mapped=%v", phys, mapped)
	}

	c.DisablePTE2()
	c.FlushTLB()
	if _, mapped := c.TranslateUserVideo(); mapped {
		t.Fatalf("expected video unmapped")
	}
}

func TestInUserWindow(t *testing.T) {
	if !paging.InUserWindow(paging.UserProgVirt, 4) {
		t.Fatalf("start of window should be in range")
	}
	if !paging.InUserWindow(paging.UserProgVirt+paging.UserSlotSize-4, 4) {
		t.Fatalf("end of window should be in range")
	}
	if paging.InUserWindow(paging.UserProgVirt+paging.UserSlotSize-2, 4) {
		t.Fatalf("range spanning past the window should fail")
	}
	if paging.InUserWindow(0, 4) {
		t.Fatalf("null pointer should not be in the user window")
	}
}

func TestSlotPhysLayout(t *testing.T) {
	if paging.SlotPhys(1) != paging.UserSlotBase {
		t.Fatalf("slot 1 should start at UserSlotBase")
	}
	if paging.SlotPhys(6) != paging.UserSlotBase+5*paging.UserSlotSize {
		t.Fatalf("slot 6 offset wrong")
	}
}
