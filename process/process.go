// Package process implements process control (spec.md component C6): the
// six-slot process table, the PCB, and the execute/halt lifecycle that ties
// together the image reader, the paging controller and the scheduler.
//
// There is no x86 kernel stack to switch in a hosted emulation, so a
// process's "context" is a goroutine and its "user-mode execution" is a
// ProgramFunc running against a Syscaller. execute() maps onto Go more
// directly than the scheduler did: the real kernel's execute() already
// blocks the calling process's kernel stack until the child halts, which is
// exactly what a synchronous channel receive expresses.
//
// Grounded on hardware/instance (the one long-lived aggregate a console
// owns, referenced by everything beneath it) for the Manager/Table
// ownership shape, and on assert.GetGoRoutineID for identifying which
// goroutine is "in" a given process during debugging.
package process

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/bradleyjkemp/memviz"

	"github.com/opsys391/minikernel/assert"
	"github.com/opsys391/minikernel/image"
	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/kernelerror"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/scheduler"
	"github.com/opsys391/minikernel/terminal"
)

// NumFDs is the size of a process's file descriptor table (§3: "8 entries,
// 0 and 1 reserved for stdin/stdout").
const NumFDs = 8

// FileOps is the read/write/close surface a file descriptor's type (RTC,
// regular file, directory, stdin, stdout) must implement. Concrete
// implementations live in ksyscall, which knows how to open each type;
// this package only needs the interface to hold in a FileDescriptor slot.
// fd identifies which of the process's NumFDs slots is being operated on,
// since a type's behaviour is frequently stateful per-descriptor (a
// regular file's read position, an RTC descriptor's configured frequency)
// rather than per-process.
type FileOps interface {
	Read(p *Process, fd int, buf []byte) (int, error)
	Write(p *Process, fd int, buf []byte) (int, error)
	Close(p *Process, fd int) error
}

// FileDescriptor is one entry of a process's FDT.
type FileDescriptor struct {
	Ops      FileOps
	Inode    uint32
	Position uint32
	Freq     uint32 // RTC descriptors only: the configured interrupt rate
	InUse    bool
}

// Process is the PCB described in §3: identity, argument string, the file
// descriptor table, and the vidmap flag that Halt consults when restoring a
// parent's video mapping (the scheduler tick consults its own Slot.VidMap).
type Process struct {
	Pid       int
	ParentPid int
	Term      int
	Cmd       string
	ArgStr    string

	FDT [NumFDs]FileDescriptor

	VidMap bool

	goroutineID uint64
	exit        chan int
}

// GoroutineID returns the id of the goroutine currently executing this
// process's ProgramFunc, for debugging -- the hosted stand-in for "find the
// PCB by masking esp".
func (p *Process) GoroutineID() uint64 {
	return p.goroutineID
}

// Table is the fixed six-slot process table (§3, kernelprefs.MaxProcessSlots).
type Table struct {
	mu    sync.Mutex
	slots [kernelprefs.MaxProcessSlots]*Process
}

// NewTable returns an empty process table.
func NewTable() *Table {
	return &Table{}
}

// Allocate reserves the lowest-numbered free slot (pids are 1-based) for a
// new process, or returns NoFreeProcessSlot if all six are in use.
func (t *Table) Allocate(parentPid, term int, cmd string) (*Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i] != nil {
			continue
		}
		p := &Process{
			Pid:       i + 1,
			ParentPid: parentPid,
			Term:      term,
			Cmd:       cmd,
			exit:      make(chan int, 1),
		}
		t.slots[i] = p
		return p, nil
	}
	return nil, kernelerror.New(kernelerror.NoFreeProcessSlot)
}

// Full reports whether every process slot is occupied -- the check
// execute's step 1 performs before it even looks at the requested file
// (§4.6), so a full table is reported as NoFreeProcessSlot rather than
// whatever the file lookup would have said.
func (t *Table) Full() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.slots {
		if p == nil {
			return false
		}
	}
	return true
}

// Free releases pid's slot.
func (t *Table) Free(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid >= 1 && pid <= len(t.slots) {
		t.slots[pid-1] = nil
	}
}

// Get returns the process in slot pid, if any.
func (t *Table) Get(pid int) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid < 1 || pid > len(t.slots) {
		return nil, false
	}
	p := t.slots[pid-1]
	return p, p != nil
}

// Active returns every in-use process, ordered by pid -- the input
// memviz.Map needs to render a process tree deterministically.
func (t *Table) Active() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Process, 0, len(t.slots))
	for _, p := range t.slots {
		if p != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out
}

// Syscaller is the surface a ProgramFunc is given to act as the running
// process: file I/O, execute/halt, and the scheduling checkpoint a
// cooperatively-scheduled program must call between units of work.
type Syscaller interface {
	Pid() int
	ParentPid() int
	Args() string

	Open(name string) (int, error)
	Close(fd int) error
	Read(fd int, buf []byte) (int, error)
	Write(fd int, buf []byte) (int, error)

	Execute(cmd string) (int, error)
	Halt(status int)

	GetArgs(virt uint32, buf []byte) (int, error)
	Vidmap(ptr uint32) (uint32, error)
	WriteVideoMem(offset uint32, data []byte) error
	SetHandler(signum int, handler uint32) error
	Sigreturn() error

	// Yield blocks until the scheduler next grants this process's
	// terminal the CPU -- the cooperative checkpoint a real kernel gets
	// for free from preemptive interrupts.
	Yield()
}

// ProgramFunc is a registered "ELF-like executable": a function run on its
// own goroutine, given a Syscaller bound to its own Process.
type ProgramFunc func(ctx Syscaller)

// Manager owns every subsystem execute/halt touches: the image it loads
// programs from, the paging window it reprograms, the terminal/scheduler
// pair it updates scheduling-slot bookkeeping in, and the process table.
//
// NewContext and InstallStdio are injected rather than imported so this
// package does not need to depend on ksyscall for the syscall ABI details
// (avoiding an import cycle, since ksyscall depends on process for
// Process/FileDescriptor/FileOps).
type Manager struct {
	mu sync.Mutex

	Images *image.FS
	Paging *paging.Controller
	Mux    *terminal.Multiplexer
	Sched  *scheduler.Scheduler
	Table  *Table

	Programs map[string]ProgramFunc

	NewContext   func(mgr *Manager, proc *Process) Syscaller
	InstallStdio func(proc *Process)
}

// NewManager wires a Manager over its subsystems. NewContext and
// InstallStdio must be set (by the ksyscall wiring code) before Execute or
// ColdStart is used.
func NewManager(images *image.FS, pc *paging.Controller, mux *terminal.Multiplexer, sched *scheduler.Scheduler) *Manager {
	return &Manager{
		Images:   images,
		Paging:   pc,
		Mux:      mux,
		Sched:    sched,
		Table:    NewTable(),
		Programs: make(map[string]ProgramFunc),
	}
}

// RegisterProgram adds name to the set of executables the boot image may
// resolve to a running goroutine.
func (m *Manager) RegisterProgram(name string, fn ProgramFunc) {
	m.Programs[name] = fn
}

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// ColdStart implements scheduler.ColdStarter: the first time a terminal's
// scheduling slot is ticked, launch a fresh root shell in it.
func (m *Manager) ColdStart(term int) {
	m.launch(0, term, "shell", "")
}

// launch allocates a process, installs stdio, and starts its goroutine. It
// does not block; callers needing the exit status use Execute instead.
func (m *Manager) launch(parentPid, term int, name, args string) (*Process, error) {
	fn, ok := m.Programs[name]
	if !ok {
		return nil, kernelerror.New(kernelerror.Unimplemented, name)
	}

	proc, err := m.Table.Allocate(parentPid, term, name)
	if err != nil {
		return nil, err
	}
	proc.ArgStr = args
	m.InstallStdio(proc)

	m.Sched.SetProcessNum(term, proc.Pid)
	m.Paging.SetPDE(paging.SlotPhys(proc.Pid))
	m.Paging.DisablePTE2()
	m.Paging.FlushTLB()

	ctx := m.NewContext(m, proc)
	klog.Logf("process", "launch pid=%d term=%d cmd=%q args=%q", proc.Pid, term, name, args)
	go func() {
		proc.goroutineID = assert.GetGoRoutineID()
		// A ProgramFunc is plain Go, so the analogue of a CPU exception
		// (dereferencing 0x0, a bad instruction) is a panic; recover it
		// here and tear down only the faulting process via the same
		// halt(256) "died by exception" path a real page fault reaches,
		// rather than letting it crash the whole hosted kernel (§4.6/§4.8).
		defer func() {
			if r := recover(); r != nil {
				klog.Logf("process", "exception in pid=%d: %v", proc.Pid, r)
				m.Halt(proc, 256)
			}
		}()
		fn(ctx)
	}()
	return proc, nil
}

// Execute implements the execute syscall: validate the named program is a
// regular, ELF-magic-prefixed file with a registered emulation, start it as
// a child of caller, and block until it halts (§4.6). Step 1 refuses
// outright once every process slot is in use, before step 2 even looks at
// the requested file, so a full table is reported as NoFreeProcessSlot
// rather than FileNotFound.
func (m *Manager) Execute(caller *Process, cmd string) (int, error) {
	if m.Table.Full() {
		return -1, kernelerror.New(kernelerror.NoFreeProcessSlot)
	}

	name, args := splitCommand(cmd)

	d, err := m.Images.Lookup(name)
	if err != nil {
		return -1, err
	}
	if d.Type != image.TypeRegular {
		return -1, kernelerror.New(kernelerror.NotELF, name)
	}

	var magic [4]byte
	n, err := m.Images.Read(d.Inode, 0, magic[:])
	if err != nil {
		return -1, err
	}
	if n != 4 || magic != elfMagic {
		return -1, kernelerror.New(kernelerror.NotELF, name)
	}

	proc, err := m.launch(caller.Pid, caller.Term, d.Name, args)
	if err != nil {
		return -1, err
	}

	status := <-proc.exit
	return status, nil
}

// Halt implements the halt syscall: tear down proc's file descriptors,
// free its slot, restore the parent's scheduling/paging state, and wake
// whichever Execute call is blocked waiting for proc (§4.6). A root shell
// (ParentPid == 0) has no blocked caller; halting one simply relaunches a
// fresh shell in its terminal, per the boot design note.
func (m *Manager) Halt(proc *Process, status int) {
	for i := range proc.FDT {
		if proc.FDT[i].InUse && proc.FDT[i].Ops != nil {
			proc.FDT[i].Ops.Close(proc, i)
		}
	}

	term := proc.Term
	parentPid := proc.ParentPid
	m.Table.Free(proc.Pid)

	if parentPid == 0 {
		klog.Logf("process", "root shell in terminal %d halted (status %d), relaunching", term, status)
		if _, err := m.launch(0, term, "shell", ""); err != nil {
			klog.Logf("process", "failed to relaunch shell in terminal %d: %v", term, err)
		}
		return
	}

	parent, ok := m.Table.Get(parentPid)
	if ok {
		m.Sched.SetProcessNum(term, parentPid)
		m.Paging.SetPDE(paging.SlotPhys(parentPid))
		if parent.VidMap {
			if term == m.Mux.CurTerminal() {
				m.Paging.SetPTE2(paging.VGAPhys)
			} else {
				m.Paging.SetPTE2(paging.ShadowPhys(term))
			}
		} else {
			m.Paging.DisablePTE2()
		}
		m.Paging.FlushTLB()
	}

	klog.Logf("process", "halt pid=%d status=%d", proc.Pid, status)
	proc.exit <- status
}

// splitCommand separates a command string into its program name and
// argument remainder on the first space, matching §4.6's getargs source.
func splitCommand(cmd string) (name, args string) {
	cmd = strings.TrimSpace(cmd)
	i := strings.IndexByte(cmd, ' ')
	if i < 0 {
		return cmd, ""
	}
	return cmd[:i], strings.TrimSpace(cmd[i+1:])
}

// DumpTree renders the current process table as a parent/child tree, one
// line per process.
func DumpTree(t *Table) string {
	active := t.Active()
	var b strings.Builder
	for _, p := range active {
		fmt.Fprintf(&b, "pid=%d parent=%d term=%d cmd=%q args=%q\n", p.Pid, p.ParentPid, p.Term, p.Cmd, p.ArgStr)
	}
	return b.String()
}

// DumpDot writes a dot graph of the current process table to w, via
// memviz -- a visual equivalent of DumpTree for `go tool cover`-style
// graphviz pipelines.
func DumpDot(w io.Writer, t *Table) {
	active := t.Active()
	memviz.Map(w, &active)
}
