// Package kernel wires every subsystem (image, paging, terminal, keyboard,
// scheduler, process, ksyscall, interrupt) into the single aggregate a
// front end -- a CLI, a test, a GUI -- owns and drives: KernelState.
//
// Grounded on hardware/instance.Instance, the one object the rest of the
// teacher repository is handed instead of wiring up TIA/CPU/memory
// separately; KernelState plays the same role here.
package kernel

import (
	"fmt"

	"github.com/opsys391/minikernel/image"
	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/interrupt"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/keyboard"
	"github.com/opsys391/minikernel/ksyscall"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/process"
	"github.com/opsys391/minikernel/scheduler"
	"github.com/opsys391/minikernel/terminal"
	"github.com/opsys391/minikernel/userprog"
)

// KernelState is everything a booted kernel owns.
type KernelState struct {
	Prefs *kernelprefs.Prefs

	Arena   *paging.Arena
	Paging  *paging.Controller
	Mux     *terminal.Multiplexer
	Keyboard *keyboard.Driver
	Sched   *scheduler.Scheduler
	Images  *image.FS
	Manager *process.Manager
	Bus     *interrupt.Bus
}

// Boot parses raw as the boot image, wires every subsystem together and
// registers the standard programs (shell, ls, cat, counter, pingpong),
// matching the ambient stack and domain stack sections of the kernel's own
// wiring description. It does not start the scheduler tick or launch any
// root shells -- call Run for that.
func Boot(raw []byte, prefs *kernelprefs.Prefs) (*KernelState, error) {
	if prefs == nil {
		prefs = kernelprefs.NewPrefs()
	}
	prefs.Normalise()

	fs, err := image.New(raw)
	if err != nil {
		return nil, fmt.Errorf("kernel: parsing boot image: %w", err)
	}

	arena := paging.NewArena()
	pc := paging.NewController()
	mux := terminal.NewMultiplexer(arena)
	kbd := keyboard.NewDriver(mux)

	mgr := process.NewManager(fs, pc, mux, nil)
	mgr.NewContext = ksyscall.NewContextFactory(arena)
	mgr.InstallStdio = ksyscall.InstallStdio(mux)
	userprog.Register(mgr)

	sched := scheduler.New(mux, pc, mgr, prefs.PITHz)
	mgr.Sched = sched

	bus := interrupt.New(kbd, sched, mgr)

	klog.Logf("kernel", "boot image parsed: %d dentries", fs.NumDentries())

	return &KernelState{
		Prefs:    prefs,
		Arena:    arena,
		Paging:   pc,
		Mux:      mux,
		Keyboard: kbd,
		Sched:    sched,
		Images:   fs,
		Manager:  mgr,
		Bus:      bus,
	}, nil
}

// Run launches the first root shell into terminal 0 -- the slot the
// scheduler considers already alive the instant it's constructed -- then
// starts the PIT tick goroutine, which cold-starts terminals 1 and 2 on its
// first two round-robin switches.
func (k *KernelState) Run() {
	k.Manager.ColdStart(0)
	k.Sched.Run()
	klog.Log("kernel", "scheduler running")
}

// Shutdown stops the PIT tick goroutine. It does not tear down any running
// process -- their goroutines are left to finish or block on their next
// Yield.
func (k *KernelState) Shutdown() {
	k.Sched.Stop()
	klog.Log("kernel", "scheduler stopped")
}

// ProcessTree renders the current process table, for a debug console or
// the monitor package's JSON API.
func (k *KernelState) ProcessTree() string {
	return process.DumpTree(k.Manager.Table)
}
