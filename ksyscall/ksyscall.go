// Package ksyscall implements syscall dispatch (spec.md component C7): the
// per-file-type operation tables (RTC, regular file, directory, stdin,
// stdout) open() selects between, and the ten-syscall ABI -- halt,
// execute, read, write, open, close, getargs, vidmap, set_handler,
// sigreturn -- described in §4.7.
//
// This package is where process.Syscaller gets its concrete
// implementation (Context) and where the per-type FileOps process's FDT
// holds get built. It depends on process, not the reverse, so
// process.Manager's NewContext/InstallStdio hooks are wired here rather
// than imported there.
package ksyscall

import (
	"encoding/binary"
	"time"

	"github.com/opsys391/minikernel/image"
	"github.com/opsys391/minikernel/kernelerror"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/process"
	"github.com/opsys391/minikernel/terminal"
)

// validRTCFreqs is the set of RTC rates §4.7 allows a write() to select --
// nine powers of two from 2 Hz to 1024 Hz; 256 Hz is not among them.
var validRTCFreqs = map[uint32]bool{
	2: true, 4: true, 8: true, 16: true, 32: true,
	64: true, 128: true, 512: true, 1024: true,
}

// rtcFileOps virtualises the real-time clock: write() reprograms the rate,
// read() blocks for one tick at the descriptor's configured rate.
type rtcFileOps struct{}

func (rtcFileOps) Read(p *process.Process, fd int, buf []byte) (int, error) {
	freq := p.FDT[fd].Freq
	if freq == 0 {
		freq = kernelprefs.DefaultRTCHz
	}
	time.Sleep(time.Second / time.Duration(freq))
	return 0, nil
}

func (rtcFileOps) Write(p *process.Process, fd int, buf []byte) (int, error) {
	if len(buf) < 4 {
		return -1, kernelerror.New(kernelerror.BadArgument, "rtc write needs 4 bytes")
	}
	freq := binary.LittleEndian.Uint32(buf[:4])
	if !validRTCFreqs[freq] {
		return -1, kernelerror.New(kernelerror.BadFrequency, freq)
	}
	p.FDT[fd].Freq = freq
	return 4, nil
}

func (rtcFileOps) Close(p *process.Process, fd int) error { return nil }

// regularFileOps reads the read-only boot image through the fd's saved
// inode and byte position; writes are rejected (§4.1, "the image is
// immutable").
type regularFileOps struct {
	images *image.FS
}

func (o regularFileOps) Read(p *process.Process, fd int, buf []byte) (int, error) {
	n, err := o.images.Read(p.FDT[fd].Inode, p.FDT[fd].Position, buf)
	if err != nil {
		return -1, err
	}
	p.FDT[fd].Position += uint32(n)
	return n, nil
}

func (o regularFileOps) Write(p *process.Process, fd int, buf []byte) (int, error) {
	return -1, kernelerror.New(kernelerror.ReadOnly, "regular file")
}

func (o regularFileOps) Close(p *process.Process, fd int) error { return nil }

// directoryFileOps returns one directory entry name per read() call,
// advancing the fd's position as a dentry index rather than a byte offset.
type directoryFileOps struct {
	images *image.FS
}

func (o directoryFileOps) Read(p *process.Process, fd int, buf []byte) (int, error) {
	idx := int(p.FDT[fd].Position)
	if idx >= o.images.NumDentries() {
		return 0, nil
	}
	d, err := o.images.StatByIndex(idx)
	if err != nil {
		return -1, err
	}
	n := copy(buf, d.Name)
	p.FDT[fd].Position++
	return n, nil
}

func (o directoryFileOps) Write(p *process.Process, fd int, buf []byte) (int, error) {
	return -1, kernelerror.New(kernelerror.ReadOnly, "directory")
}

func (o directoryFileOps) Close(p *process.Process, fd int) error { return nil }

// stdinFileOps blocks read() until the process's terminal raises
// line_buffer_flag, per the keyboard/terminal rendezvous in §4.3/§4.4.
type stdinFileOps struct {
	mux *terminal.Multiplexer
}

func (o stdinFileOps) Read(p *process.Process, fd int, buf []byte) (int, error) {
	term := o.mux.Terminal(p.Term)
	for !term.ReadFlag() {
		time.Sleep(time.Millisecond)
	}
	return term.ConsumeLine(buf), nil
}

func (o stdinFileOps) Write(p *process.Process, fd int, buf []byte) (int, error) {
	return -1, kernelerror.New(kernelerror.ReadOnly, "stdin")
}

func (o stdinFileOps) Close(p *process.Process, fd int) error { return nil }

// stdoutFileOps writes through to the process's own terminal regardless of
// which terminal currently holds print_terminal, the same narrow
// save/restore the keyboard driver's echo() does -- under the same IRQ lock,
// since both touch print_terminal non-atomically otherwise.
type stdoutFileOps struct {
	mux *terminal.Multiplexer
}

func (o stdoutFileOps) Read(p *process.Process, fd int, buf []byte) (int, error) {
	return -1, kernelerror.New(kernelerror.BadFileDescriptor, fd)
}

func (o stdoutFileOps) Write(p *process.Process, fd int, buf []byte) (int, error) {
	o.mux.WithIRQLock(func() {
		saved := o.mux.PrintTerminal()
		o.mux.SetPrintTerminal(p.Term)
		for _, c := range buf {
			o.mux.Putc(c)
		}
		o.mux.SetPrintTerminal(saved)
	})
	return len(buf), nil
}

func (o stdoutFileOps) Close(p *process.Process, fd int) error { return nil }

// Open implements the open syscall: resolve name in the boot image, pick
// the operation table for its type, and install it in the lowest free
// descriptor at or above 2 (0 and 1 are reserved for stdio).
func Open(mgr *process.Manager, proc *process.Process, name string) (int, error) {
	d, err := mgr.Images.Lookup(name)
	if err != nil {
		return -1, err
	}

	fd := -1
	for i := 2; i < process.NumFDs; i++ {
		if !proc.FDT[i].InUse {
			fd = i
			break
		}
	}
	if fd == -1 {
		return -1, kernelerror.New(kernelerror.NoFreeDescriptor)
	}

	var ops process.FileOps
	switch d.Type {
	case image.TypeRTC:
		ops = rtcFileOps{}
	case image.TypeDirectory:
		ops = directoryFileOps{images: mgr.Images}
	case image.TypeRegular:
		ops = regularFileOps{images: mgr.Images}
	default:
		return -1, kernelerror.New(kernelerror.BadArgument, name)
	}

	proc.FDT[fd] = process.FileDescriptor{Ops: ops, Inode: d.Inode, InUse: true}
	if d.Type == image.TypeRTC {
		proc.FDT[fd].Freq = kernelprefs.DefaultRTCHz
	}
	return fd, nil
}

// Close implements the close syscall: 0 and 1 can never be closed, a
// not-in-use or out-of-range fd is an error.
func Close(proc *process.Process, fd int) error {
	if fd < 2 || fd >= process.NumFDs || !proc.FDT[fd].InUse {
		return kernelerror.New(kernelerror.BadFileDescriptor, fd)
	}
	err := proc.FDT[fd].Ops.Close(proc, fd)
	proc.FDT[fd] = process.FileDescriptor{}
	return err
}

// Read implements the read syscall, dispatching to fd's operation table.
func Read(proc *process.Process, fd int, buf []byte) (int, error) {
	if fd < 0 || fd >= process.NumFDs || !proc.FDT[fd].InUse {
		return -1, kernelerror.New(kernelerror.BadFileDescriptor, fd)
	}
	return proc.FDT[fd].Ops.Read(proc, fd, buf)
}

// Write implements the write syscall, dispatching to fd's operation table.
func Write(proc *process.Process, fd int, buf []byte) (int, error) {
	if fd < 0 || fd >= process.NumFDs || !proc.FDT[fd].InUse {
		return -1, kernelerror.New(kernelerror.BadFileDescriptor, fd)
	}
	return proc.FDT[fd].Ops.Write(proc, fd, buf)
}

// Context is the concrete process.Syscaller every registered program runs
// against.
type Context struct {
	mgr   *process.Manager
	proc  *process.Process
	arena *paging.Arena
}

// NewContextFactory returns the process.Manager.NewContext hook, closing
// over the physical arena so Context can resolve a vidmap'd virtual address
// to real bytes for WriteVideoMem -- the same closure-factory shape
// InstallStdio already uses to reach the multiplexer.
func NewContextFactory(arena *paging.Arena) func(mgr *process.Manager, proc *process.Process) process.Syscaller {
	return func(mgr *process.Manager, proc *process.Process) process.Syscaller {
		return &Context{mgr: mgr, proc: proc, arena: arena}
	}
}

// InstallStdio implements the process.Manager.InstallStdio hook, binding
// fd 0/1 to proc's own terminal.
func InstallStdio(mux *terminal.Multiplexer) func(*process.Process) {
	return func(p *process.Process) {
		p.FDT[0] = process.FileDescriptor{Ops: stdinFileOps{mux: mux}, InUse: true}
		p.FDT[1] = process.FileDescriptor{Ops: stdoutFileOps{mux: mux}, InUse: true}
	}
}

func (c *Context) Pid() int       { return c.proc.Pid }
func (c *Context) ParentPid() int { return c.proc.ParentPid }
func (c *Context) Args() string   { return c.proc.ArgStr }

func (c *Context) Open(name string) (int, error) { return Open(c.mgr, c.proc, name) }
func (c *Context) Close(fd int) error            { return Close(c.proc, fd) }
func (c *Context) Read(fd int, buf []byte) (int, error) {
	return Read(c.proc, fd, buf)
}
func (c *Context) Write(fd int, buf []byte) (int, error) {
	return Write(c.proc, fd, buf)
}

func (c *Context) Execute(cmd string) (int, error) { return c.mgr.Execute(c.proc, cmd) }
func (c *Context) Halt(status int)                 { c.mgr.Halt(c.proc, status) }

// GetArgs copies the process's argument string, NUL-terminated, into buf
// (§4.7). It refuses an empty argument string, refuses buf if it doesn't lie
// entirely within the calling process's user window (virt is the user
// pointer buf is backing), and fails if buf is too small to hold the string
// and its terminator rather than silently truncating. Returns the literal 0
// on success, not the copied byte count (§4.7: "Returns 0 on success, -1
// otherwise").
func (c *Context) GetArgs(virt uint32, buf []byte) (int, error) {
	args := c.proc.ArgStr
	if args == "" {
		return -1, kernelerror.New(kernelerror.BadArgument, "getargs: no arguments")
	}
	if !paging.InUserWindow(virt, uint32(len(buf))) {
		return -1, kernelerror.New(kernelerror.OutOfUserWindow, virt)
	}
	if len(args)+1 > len(buf) {
		return -1, kernelerror.New(kernelerror.BadArgument, "getargs buffer too small")
	}
	n := copy(buf, args)
	buf[n] = 0
	return 0, nil
}

// Vidmap installs the user-video window mapping for the calling process and
// returns the virtual address it now appears at (§4.7, §6). ptr must be the
// user program's pointer to the screen_start out-parameter and must lie
// within the user program window, or the call is refused without installing
// anything.
func (c *Context) Vidmap(ptr uint32) (uint32, error) {
	if !paging.InUserWindow(ptr, 4) {
		return 0xffffffff, kernelerror.New(kernelerror.OutOfUserWindow, ptr)
	}

	c.proc.VidMap = true
	c.mgr.Sched.SetVidMap(c.proc.Term, true)

	if c.proc.Term == c.mgr.Mux.CurTerminal() {
		c.mgr.Paging.SetPTE2(paging.VGAPhys)
	} else {
		c.mgr.Paging.SetPTE2(paging.ShadowPhys(c.proc.Term))
	}
	c.mgr.Paging.FlushTLB()

	return paging.UserVideoVirt, nil
}

// WriteVideoMem writes data at offset into whatever physical page is
// currently windowed at USER_VIDEO_MEM for the calling process -- VGA
// memory if its terminal is the one being viewed, its shadow buffer
// otherwise (§6) -- so a write through the address Vidmap returned actually
// lands somewhere observable. The caller must have called Vidmap first.
func (c *Context) WriteVideoMem(offset uint32, data []byte) error {
	if !c.proc.VidMap {
		return kernelerror.New(kernelerror.BadArgument, "write_video_mem: vidmap not installed")
	}
	if offset+uint32(len(data)) > paging.PageSize {
		return kernelerror.New(kernelerror.OutOfUserWindow, paging.UserVideoVirt+offset)
	}

	phys, mapped := c.mgr.Paging.TranslateUserVideo()
	if !mapped {
		return kernelerror.New(kernelerror.BadArgument, "write_video_mem: no video window installed")
	}

	page := c.arena.At(phys, paging.PageSize)
	copy(page[offset:], data)
	return nil
}

// SetHandler and Sigreturn are part of the syscall ABI but signal handling
// itself is out of scope; both report Unimplemented rather than silently
// succeeding, so a program can detect the gap instead of assuming success.
func (c *Context) SetHandler(signum int, handler uint32) error {
	return kernelerror.New(kernelerror.Unimplemented, "set_handler")
}

func (c *Context) Sigreturn() error {
	return kernelerror.New(kernelerror.Unimplemented, "sigreturn")
}

// Yield blocks until the scheduler next grants this process's terminal the
// CPU.
func (c *Context) Yield() {
	c.mgr.Sched.Grant(c.proc.Term)
}
