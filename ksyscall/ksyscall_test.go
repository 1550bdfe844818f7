package ksyscall_test

import (
	"encoding/binary"
	"testing"

	"github.com/opsys391/minikernel/image"
	"github.com/opsys391/minikernel/kernelerror"
	"github.com/opsys391/minikernel/ksyscall"
	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/process"
	"github.com/opsys391/minikernel/scheduler"
	"github.com/opsys391/minikernel/terminal"
)

func buildImage(t *testing.T) *image.FS {
	t.Helper()

	raw := make([]byte, 4096+2*4096+2*4096)
	binary.LittleEndian.PutUint32(raw[0:4], 2)  // dentry count
	binary.LittleEndian.PutUint32(raw[4:8], 2)  // inode count
	binary.LittleEndian.PutUint32(raw[8:12], 2) // data block count

	putDentry := func(i int, name string, typ image.Type, inode uint32) {
		base := 4 + 4 + 4 + 52 + i*64
		copy(raw[base:base+32], name)
		binary.LittleEndian.PutUint32(raw[base+32:base+36], uint32(typ))
		binary.LittleEndian.PutUint32(raw[base+36:base+40], inode)
	}
	putDentry(0, "shell", image.TypeRegular, 0)
	putDentry(1, "clock", image.TypeRTC, 1)

	inodeBase := func(i int) int { return 4096 + i*4096 }
	content := append([]byte{0x7f, 'E', 'L', 'F'}, []byte("hello world")...)
	binary.LittleEndian.PutUint32(raw[inodeBase(0):inodeBase(0)+4], uint32(len(content)))
	binary.LittleEndian.PutUint32(raw[inodeBase(0)+4:inodeBase(0)+8], 0) // block 0

	dataBase := 4096 + 2*4096
	copy(raw[dataBase:dataBase+4096], content)

	fs, err := image.New(raw)
	if err != nil {
		t.Fatalf("image.New: %v", err)
	}
	return fs
}

func newManager(t *testing.T) (*process.Manager, *process.Process) {
	t.Helper()
	fs := buildImage(t)
	arena := paging.NewArena()
	mux := terminal.NewMultiplexer(arena)
	pc := paging.NewController()

	mgr := process.NewManager(fs, pc, mux, nil)
	mgr.NewContext = ksyscall.NewContextFactory(arena)
	mgr.InstallStdio = ksyscall.InstallStdio(mux)

	proc, err := mgr.Table.Allocate(0, 0, "shell")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	mgr.InstallStdio(proc)
	return mgr, proc
}

func TestOpenReadRegularFile(t *testing.T) {
	mgr, proc := newManager(t)

	fd, err := ksyscall.Open(mgr, proc, "shell")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if fd < 2 {
		t.Fatalf("expected fd >= 2, got %d", fd)
	}

	buf := make([]byte, 32)
	n, err := ksyscall.Read(proc, fd, buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "\x7fELFhello world"
	if string(buf[:n]) != want {
		t.Fatalf("got %q, want %q", buf[:n], want)
	}

	if _, err := ksyscall.Write(proc, fd, buf); !kernelerror.Is(err, kernelerror.ReadOnly) {
		t.Fatalf("expected ReadOnly writing a regular file, got %v", err)
	}
}

func TestOpenNoFreeDescriptor(t *testing.T) {
	mgr, proc := newManager(t)
	for i := 2; i < process.NumFDs; i++ {
		if _, err := ksyscall.Open(mgr, proc, "shell"); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if _, err := ksyscall.Open(mgr, proc, "shell"); !kernelerror.Is(err, kernelerror.NoFreeDescriptor) {
		t.Fatalf("expected NoFreeDescriptor once all slots are used, got %v", err)
	}
}

func TestCloseRejectsStdio(t *testing.T) {
	_, proc := newManager(t)
	if err := ksyscall.Close(proc, 0); !kernelerror.Is(err, kernelerror.BadFileDescriptor) {
		t.Fatalf("expected closing fd 0 to fail, got %v", err)
	}
	if err := ksyscall.Close(proc, 1); !kernelerror.Is(err, kernelerror.BadFileDescriptor) {
		t.Fatalf("expected closing fd 1 to fail, got %v", err)
	}
}

func TestRTCWriteValidatesFrequency(t *testing.T) {
	mgr, proc := newManager(t)
	fd, err := ksyscall.Open(mgr, proc, "clock")
	if err != nil {
		t.Fatalf("open rtc: %v", err)
	}

	bad := make([]byte, 4)
	binary.LittleEndian.PutUint32(bad, 3) // not a power of two
	if _, err := ksyscall.Write(proc, fd, bad); !kernelerror.Is(err, kernelerror.BadFrequency) {
		t.Fatalf("expected BadFrequency for 3 Hz, got %v", err)
	}

	good := make([]byte, 4)
	binary.LittleEndian.PutUint32(good, 32)
	if _, err := ksyscall.Write(proc, fd, good); err != nil {
		t.Fatalf("expected 32 Hz to be accepted, got %v", err)
	}
}

func TestVidmapInstallsMapping(t *testing.T) {
	fs := buildImage(t)
	arena := paging.NewArena()
	mux := terminal.NewMultiplexer(arena)
	pc := paging.NewController()
	sched := scheduler.New(mux, pc, nil, 100)

	mgr := process.NewManager(fs, pc, mux, sched)
	mgr.NewContext = ksyscall.NewContextFactory(arena)
	mgr.InstallStdio = ksyscall.InstallStdio(mux)

	proc, _ := mgr.Table.Allocate(0, 0, "shell")
	mgr.InstallStdio(proc)
	ctx := mgr.NewContext(mgr, proc)

	addr, err := ctx.Vidmap(paging.UserProgVirt)
	if err != nil {
		t.Fatalf("vidmap: %v", err)
	}
	if addr != paging.UserVideoVirt {
		t.Fatalf("expected vidmap to return %#x, got %#x", paging.UserVideoVirt, addr)
	}
	got, mapped := pc.TranslateUserVideo()
	if !mapped || got != paging.VGAPhys {
		t.Fatalf("expected video window mapped to physical VGA, got %#x mapped=%v", got, mapped)
	}
}

func TestVidmapRejectsOutOfWindowPointer(t *testing.T) {
	fs := buildImage(t)
	arena := paging.NewArena()
	mux := terminal.NewMultiplexer(arena)
	pc := paging.NewController()
	sched := scheduler.New(mux, pc, nil, 100)

	mgr := process.NewManager(fs, pc, mux, sched)
	mgr.NewContext = ksyscall.NewContextFactory(arena)
	mgr.InstallStdio = ksyscall.InstallStdio(mux)

	proc, _ := mgr.Table.Allocate(0, 0, "shell")
	mgr.InstallStdio(proc)
	ctx := mgr.NewContext(mgr, proc)

	if _, err := ctx.Vidmap(0); err == nil {
		t.Fatalf("expected a null pointer to be refused")
	}
	if _, mapped := pc.TranslateUserVideo(); mapped {
		t.Fatalf("expected the refused vidmap call to install no mapping")
	}
}

func TestGetArgsCopiesArgString(t *testing.T) {
	mgr, proc := newManager(t)
	proc.ArgStr = "arg1 arg2"

	ctx := mgr.NewContext(mgr, proc)

	buf := make([]byte, 128)
	n, err := ctx.GetArgs(paging.UserProgVirt, buf)
	if err != nil {
		t.Fatalf("getargs: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected getargs to return the literal 0 on success, got %d", n)
	}
	want := "arg1 arg2\x00"
	if string(buf[:len(want)]) != want {
		t.Fatalf("got %q, want %q", buf[:len(want)], want)
	}
}

func TestGetArgsRejectsEmptyArgs(t *testing.T) {
	mgr, proc := newManager(t)
	proc.ArgStr = ""

	ctx := mgr.NewContext(mgr, proc)
	buf := make([]byte, 128)
	if _, err := ctx.GetArgs(paging.UserProgVirt, buf); err == nil {
		t.Fatalf("expected getargs to refuse an empty argument string")
	}
}

func TestGetArgsRejectsOutOfWindowPointer(t *testing.T) {
	mgr, proc := newManager(t)
	proc.ArgStr = "arg1"

	ctx := mgr.NewContext(mgr, proc)
	buf := make([]byte, 128)
	if _, err := ctx.GetArgs(0, buf); !kernelerror.Is(err, kernelerror.OutOfUserWindow) {
		t.Fatalf("expected OutOfUserWindow for a null pointer, got %v", err)
	}
}
