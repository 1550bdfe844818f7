package interrupt_test

import (
	"errors"
	"testing"

	"github.com/opsys391/minikernel/interrupt"
	"github.com/opsys391/minikernel/kernelerror"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/process"
	"github.com/opsys391/minikernel/scheduler"
	"github.com/opsys391/minikernel/terminal"
)

// stubCtx is a minimal process.Syscaller for exercising Dispatch without a
// real process/manager pair.
type stubCtx struct {
	halted     bool
	haltStatus int
	writeBuf   []byte
}

func (s *stubCtx) Pid() int       { return 1 }
func (s *stubCtx) ParentPid() int { return 0 }
func (s *stubCtx) Args() string   { return "" }
func (s *stubCtx) Open(name string) (int, error) { return 2, nil }
func (s *stubCtx) Close(fd int) error             { return nil }
func (s *stubCtx) Read(fd int, buf []byte) (int, error) { return 0, nil }
func (s *stubCtx) Write(fd int, buf []byte) (int, error) {
	s.writeBuf = append(s.writeBuf, buf...)
	return len(buf), nil
}
func (s *stubCtx) Execute(cmd string) (int, error) { return 0, nil }
func (s *stubCtx) Halt(status int) {
	s.halted = true
	s.haltStatus = status
}
func (s *stubCtx) GetArgs(virt uint32, buf []byte) (int, error) { return 0, nil }
func (s *stubCtx) Vidmap(ptr uint32) (uint32, error)            { return paging.UserVideoVirt, nil }
func (s *stubCtx) WriteVideoMem(offset uint32, data []byte) error { return nil }
func (s *stubCtx) SetHandler(signum int, handler uint32) error { return nil }
func (s *stubCtx) Sigreturn() error                         { return nil }
func (s *stubCtx) Yield()                                   {}

func TestDispatchHalt(t *testing.T) {
	ctx := &stubCtx{}
	if _, err := interrupt.Dispatch(ctx, interrupt.SysHalt, interrupt.Args{Status: 7}); err != nil {
		t.Fatalf("dispatch halt: %v", err)
	}
	if !ctx.halted || ctx.haltStatus != 7 {
		t.Fatalf("expected Halt(7) to have been called, got halted=%v status=%d", ctx.halted, ctx.haltStatus)
	}
}

func TestDispatchWrite(t *testing.T) {
	ctx := &stubCtx{}
	n, err := interrupt.Dispatch(ctx, interrupt.SysWrite, interrupt.Args{FD: 1, Buf: []byte("hi")})
	if err != nil {
		t.Fatalf("dispatch write: %v", err)
	}
	if n != 2 || string(ctx.writeBuf) != "hi" {
		t.Fatalf("expected write-through of 'hi', got n=%d buf=%q", n, ctx.writeBuf)
	}
}

func TestDispatchUnknownSyscall(t *testing.T) {
	ctx := &stubCtx{}
	if _, err := interrupt.Dispatch(ctx, 999, interrupt.Args{}); !kernelerror.Is(err, kernelerror.Unimplemented) {
		t.Fatalf("expected Unimplemented for an unknown syscall number, got %v", err)
	}
}

func TestFaultFreesFaultingProcessSlot(t *testing.T) {
	mux := terminal.NewMultiplexer(paging.NewArena())
	pc := paging.NewController()
	mgr := process.NewManager(nil, pc, mux, scheduler.New(mux, pc, nil, 100))
	mgr.InstallStdio = func(*process.Process) {}

	proc, err := mgr.Table.Allocate(0, 0, "bad")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	proc.ParentPid = 99 // avoid the relaunch-shell path, mirroring process_test's halt test

	bus := interrupt.New(nil, mgr.Sched, mgr)
	bus.Fault(proc, errors.New("page fault"))

	if _, ok := mgr.Table.Get(proc.Pid); ok {
		t.Fatalf("expected Fault to free the faulting process's slot")
	}
}
