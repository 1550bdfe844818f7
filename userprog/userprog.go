// Package userprog is the registry of boot-image "ELF-like" programs a
// running kernel can execute: shell, ls, cat, counter and pingpong, the
// programs spec.md's end-to-end scenarios walk through.
//
// A hosted emulation cannot interpret arbitrary x86 object code, so a
// ProgramFunc is the substitute for "the bytes at entry point eip": the
// boot image still carries a regular file per program (ELF-magic-prefixed,
// so execute()'s validation is exercised for real), but process.Manager
// resolves the dentry's name to one of these functions instead of jumping
// into its bytes.
package userprog

import (
	"fmt"
	"strings"

	"github.com/opsys391/minikernel/paging"
	"github.com/opsys391/minikernel/process"
)

// Shell reads a line from stdin, executes it as a child, and repeats until
// the user types "exit" -- the root program every terminal's scheduling
// slot cold-starts into (§4.6).
func Shell(ctx process.Syscaller) {
	buf := make([]byte, 128)
	for {
		ctx.Write(1, []byte("391OS> "))

		n, err := ctx.Read(0, buf)
		if err != nil {
			ctx.Halt(1)
			return
		}

		line := strings.TrimRight(string(buf[:n]), "\n")
		if line == "" {
			continue
		}
		if line == "exit" {
			ctx.Halt(0)
			return
		}

		if _, err := ctx.Execute(line); err != nil {
			ctx.Write(1, []byte(err.Error()+"\n"))
		}
	}
}

// Ls lists every directory entry in the boot image's single directory,
// one name per line, exercising the directory FileOps table.
func Ls(ctx process.Syscaller) {
	fd, err := ctx.Open(".")
	if err != nil {
		ctx.Write(1, []byte(err.Error()+"\n"))
		ctx.Halt(1)
		return
	}
	defer ctx.Close(fd)

	buf := make([]byte, 33)
	for {
		n, err := ctx.Read(fd, buf)
		if err != nil || n == 0 {
			break
		}
		line := append(append([]byte{}, buf[:n]...), '\n')
		ctx.Write(1, line)
	}
	ctx.Halt(0)
}

// Cat writes its single argument's file contents to stdout, exercising the
// regular-file FileOps table and getargs-style argument passing.
func Cat(ctx process.Syscaller) {
	name := strings.TrimSpace(ctx.Args())
	if name == "" {
		ctx.Write(1, []byte("cat: missing filename\n"))
		ctx.Halt(1)
		return
	}

	fd, err := ctx.Open(name)
	if err != nil {
		ctx.Write(1, []byte(err.Error()+"\n"))
		ctx.Halt(1)
		return
	}
	defer ctx.Close(fd)

	buf := make([]byte, 256)
	for {
		n, err := ctx.Read(fd, buf)
		if err != nil || n == 0 {
			break
		}
		ctx.Write(1, buf[:n])
	}
	ctx.Halt(0)
}

// maxCounterTicks bounds an otherwise-infinite counter so a test or a
// forgotten terminal cannot leak the goroutine forever.
const maxCounterTicks = 1_000_000

// Counter prints an incrementing number once per scheduling quantum,
// demonstrating that a scheduled-but-unviewed process keeps making
// progress across Alt+F1/F2/F3 switches (§4.5's motivating example).
func Counter(ctx process.Syscaller) {
	for i := 0; i < maxCounterTicks; i++ {
		ctx.Write(1, []byte(fmt.Sprintf("%d\n", i)))
		ctx.Yield()
	}
	ctx.Halt(0)
}

// pingPongRounds bounds the pingpong demo to a fixed number of exchanges.
const pingPongRounds = 10

// PingPong prints its own name (ping, or pong if invoked with that
// argument) once per quantum, for a fixed number of rounds, and also maps
// USER_VIDEO_MEM and writes its name there each round (§8 scenario 6) -- the
// writes land in the VGA buffer while pingpong's terminal is being viewed
// and silently redirect to its shadow buffer otherwise.
func PingPong(ctx process.Syscaller) {
	word := "ping"
	if strings.TrimSpace(ctx.Args()) == "pong" {
		word = "pong"
	}

	screenStart, err := ctx.Vidmap(paging.UserProgVirt)
	if err != nil {
		ctx.Write(1, []byte(fmt.Sprintf("vidmap failed: %v\n", err)))
		ctx.Halt(1)
		return
	}
	_ = screenStart

	for i := 0; i < pingPongRounds; i++ {
		ctx.Write(1, []byte(word+"\n"))
		ctx.WriteVideoMem(0, []byte(word))
		ctx.Yield()
	}
	ctx.Halt(0)
}

// Register installs every program in this package into mgr's registry.
func Register(mgr *process.Manager) {
	mgr.RegisterProgram("shell", Shell)
	mgr.RegisterProgram("ls", Ls)
	mgr.RegisterProgram("cat", Cat)
	mgr.RegisterProgram("counter", Counter)
	mgr.RegisterProgram("pingpong", PingPong)
}
