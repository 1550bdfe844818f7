// Package interrupt implements the interrupt/exception glue (spec.md
// component C8): the syscall vector a user-mode program's "int 0x80"
// maps onto, IRQ routing from the keyboard and PIT into their drivers, and
// exception delivery that tears a faulting process down via halt(256).
//
// A hosted emulation has no IDT to populate; Dispatch below is the portable
// remainder of one -- a numbered entry point a caller invokes directly
// instead of trapping into. Grounded on hardware/cpu's interrupt-vs-normal
// instruction dispatch split (a small, explicit table of "this opcode class
// routes here") translated from CPU opcodes to syscall/exception numbers.
package interrupt

import (
	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/kernelerror"
	"github.com/opsys391/minikernel/keyboard"
	"github.com/opsys391/minikernel/process"
	"github.com/opsys391/minikernel/scheduler"
)

// Syscall numbers, §4.7's ABI (vector 0x80, eax selects the operation).
const (
	SysHalt = iota + 1
	SysExecute
	SysRead
	SysWrite
	SysOpen
	SysClose
	SysGetArgs
	SysVidmap
	SysSetHandler
	SysSigreturn
)

// Args bundles a syscall's arguments loosely typed, since each syscall
// number expects a different shape (open/close/getargs/vidmap take no
// buffer+fd pair the way read/write do).
type Args struct {
	FD       int
	Buf      []byte
	Name     string
	Cmd      string
	Status   int
	Signum   int
	Handler  uint32
	VirtAddr uint32
}

// Dispatch is the syscall vector: it maps a numeric syscall (what a
// "int 0x80" trap would have carried in eax) onto ctx's Syscaller methods.
// Returning (-1, err) mirrors the real ABI's single-register error
// reporting; callers that care about the distinction use err directly.
func Dispatch(ctx process.Syscaller, num int, a Args) (ret int, err error) {
	defer func() {
		if err != nil {
			ret = -1
		}
	}()
	switch num {
	case SysHalt:
		ctx.Halt(a.Status)
		return 0, nil
	case SysExecute:
		return ctx.Execute(a.Cmd)
	case SysRead:
		return ctx.Read(a.FD, a.Buf)
	case SysWrite:
		return ctx.Write(a.FD, a.Buf)
	case SysOpen:
		return ctx.Open(a.Name)
	case SysClose:
		return 0, ctx.Close(a.FD)
	case SysGetArgs:
		return ctx.GetArgs(a.VirtAddr, a.Buf)
	case SysVidmap:
		addr, err := ctx.Vidmap(a.VirtAddr)
		return int(addr), err
	case SysSetHandler:
		return 0, ctx.SetHandler(a.Signum, a.Handler)
	case SysSigreturn:
		return 0, ctx.Sigreturn()
	default:
		return -1, kernelerror.New(kernelerror.Unimplemented, num)
	}
}

// Bus owns the IRQ sources (keyboard, PIT) and routes a user-mode
// exception to the process it faulted in.
type Bus struct {
	Keyboard *keyboard.Driver
	Sched    *scheduler.Scheduler
	Manager  *process.Manager
}

// New wires a Bus over the drivers/subsystems it routes interrupts to and
// from.
func New(kbd *keyboard.Driver, sched *scheduler.Scheduler, mgr *process.Manager) *Bus {
	return &Bus{Keyboard: kbd, Sched: sched, Manager: mgr}
}

// KeyDown/KeyUp forward the keyboard IRQ to its driver -- the host input
// layer (hostterm) calls these, standing in for the 8042's IRQ1.
func (b *Bus) KeyDown(k keyboard.Key) { b.Keyboard.KeyDown(k) }
func (b *Bus) KeyUp(k keyboard.Key)   { b.Keyboard.KeyUp(k) }

// Tick forwards the PIT IRQ0 to the scheduler.
func (b *Bus) Tick() { b.Sched.Tick() }

// Fault delivers a user-mode exception: the faulting process is torn down
// exactly as if it had called halt(256), the sentinel status spec.md
// reserves for "died by exception" rather than a voluntary exit code
// (§4.6's halt/exception note).
func (b *Bus) Fault(proc *process.Process, cause error) {
	klog.Logf("interrupt", "exception in pid=%d: %v", proc.Pid, cause)
	b.Manager.Halt(proc, 256)
}

// UserFault wraps cause as a curated UserFault error, for callers that
// want to log or propagate the reason a process was torn down.
func UserFault(cause error) error {
	return kernelerror.New(kernelerror.UserFault, cause)
}
