// Package scheduler implements the PIT scheduler (spec.md component C5):
// a 100 Hz tick driving round-robin time-slicing across the three
// scheduling slots, reprogramming the paging window and the VGA window on
// every switch.
//
// A hosted emulation has no real esp/ebp to save and restore, so "resume
// the next slot" becomes "hand that slot's goroutine a quantum grant" --
// the channel-based analogue Design Notes asks for when it says to factor
// the context switch into save/restore primitives and keep the rest of the
// scheduling logic portable. Grounded on emulation/emulation.go's State
// enum and FeatureReq pattern for the scheduler's own run/pause surface.
package scheduler

import (
	"sync"
	"time"

	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/terminal"
)

// Slot is one of the three round-robin scheduling slots (§3).
type Slot struct {
	ProcessNum int  // pid currently running in this terminal
	VidMap     bool // whether that process's vidmap mapping is installed
	Cold       bool // true until this slot has been scheduled at least once
}

// ColdStarter is called the first time a slot is scheduled; it is expected
// to launch that terminal's root shell. Implemented by process.Manager.
type ColdStarter interface {
	ColdStart(term int)
}

// Scheduler owns the three scheduling slots and the grant channels that
// stand in for "resume this process's kernel stack".
type Scheduler struct {
	mu sync.Mutex

	slots        [kernelprefs.NumTerminals]*Slot
	curSchedTerm int
	prevSchedTerm int // -1 sentinel: "never ticked", skips the first switch

	mux     *terminal.Multiplexer
	paging  *paging.Controller
	cold    ColdStarter
	grants  [kernelprefs.NumTerminals]chan struct{}

	hz     int
	ticker *time.Ticker
	stopCh chan struct{}
}

// New constructs a scheduler over mux/pc, with slot 0 alive (running the
// first root shell) and slots 1/2 cold, matching §4.5's initial state.
func New(mux *terminal.Multiplexer, pc *paging.Controller, cold ColdStarter, hz int) *Scheduler {
	s := &Scheduler{
		mux:           mux,
		paging:        pc,
		cold:          cold,
		hz:            hz,
		prevSchedTerm: -1,
		stopCh:        make(chan struct{}),
	}
	for i := range s.slots {
		s.slots[i] = &Slot{ProcessNum: i + 1, Cold: i != 0}
		s.grants[i] = make(chan struct{}, 1)
	}
	// slot 0 is alive immediately; give it the first grant so its shell
	// goroutine can start running as soon as it's launched.
	s.grants[0] <- struct{}{}
	return s
}

// Slot returns a copy of scheduling slot i's state.
func (s *Scheduler) Slot(i int) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.slots[i]
}

// SetProcessNum updates the pid running in scheduling slot i -- called by
// execute (on entry) and halt (on exit) per §4.6 steps 8 and the halt
// restore sequence.
func (s *Scheduler) SetProcessNum(term, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[term].ProcessNum = pid
}

// SetVidMap records whether scheduling slot i's process currently has its
// vidmap mapping installed.
func (s *Scheduler) SetVidMap(term int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[term].VidMap = v
}

// CurSchedTerm returns the terminal currently holding the CPU.
func (s *Scheduler) CurSchedTerm() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curSchedTerm
}

// Grant blocks the calling goroutine until scheduling slot term is the one
// scheduled to run -- the process-side half of the channel-based context
// switch. A process calls this once per unit of work it performs, so that
// preemption happens at a bounded granularity instead of never.
func (s *Scheduler) Grant(term int) {
	<-s.grants[term]
}

// Run starts the periodic tick goroutine at hz (100 by default, §4.5).
// Stop() shuts it down.
func (s *Scheduler) Run() {
	s.ticker = time.NewTicker(time.Second / time.Duration(s.hz))
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.Tick()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the tick goroutine started by Run.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// Tick performs one scheduling decision, §4.5 steps 1-8 minus the
// esp/ebp save/restore a real kernel would do (there is none to save; the
// outgoing goroutine is simply left blocked on its own grant channel).
func (s *Scheduler) Tick() {
	s.mu.Lock()

	if s.prevSchedTerm == -1 {
		// boot re-entrancy guard: let slot 0 finish initialising before
		// round-robin begins.
		s.prevSchedTerm = s.curSchedTerm
		s.mu.Unlock()
		return
	}

	outgoing := s.curSchedTerm
	next := (s.curSchedTerm + 1) % kernelprefs.NumTerminals
	s.curSchedTerm = next
	s.prevSchedTerm = outgoing

	slot := s.slots[next]
	wasCold := slot.Cold
	slot.Cold = false

	s.paging.SetPDE(paging.SlotPhys(slot.ProcessNum))

	viewing := s.mux.CurTerminal()
	if next == viewing {
		s.paging.SetPTE2(paging.VGAPhys)
	} else {
		s.paging.SetPTE2(paging.ShadowPhys(next))
	}
	if !slot.VidMap {
		s.paging.DisablePTE2()
	}

	s.paging.FlushTLB()
	// Under the same IRQ lock the keyboard ISR's echo critical sections use
	// (§5: print_terminal is "written by both the keyboard ISR and the
	// scheduler, always under interrupts-off"), so a Tick can't land
	// between an echo's save and restore or vice versa.
	s.mux.WithIRQLock(func() {
		s.mux.SetSchedTerm(next)
		s.mux.SetPrintTerminal(next)
	})

	s.mu.Unlock()

	klog.Logf("scheduler", "tick: %d -> %d (pid %d, cold=%v)", outgoing, next, slot.ProcessNum, wasCold)

	if wasCold {
		s.cold.ColdStart(next)
		return
	}

	// hand the incoming slot's process goroutine its quantum. the
	// channel is buffered 1, so this never blocks the tick itself.
	select {
	case s.grants[next] <- struct{}{}:
	default:
	}
}
