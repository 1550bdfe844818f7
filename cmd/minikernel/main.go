// Command minikernel boots the kernel against a boot image file, attaches
// the current terminal as the keyboard/display front end, and optionally
// serves the process-table dashboard.
//
// Grounded on gopher2600.go's flag.FlagSet-per-mode structure, reduced to
// the one mode this kernel has.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/opsys391/minikernel/hostterm"
	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/kernel"
	"github.com/opsys391/minikernel/kernelprefs"
	"github.com/opsys391/minikernel/monitor"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "minikernel: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flgs := flag.NewFlagSet("minikernel", flag.ExitOnError)
	pitHz := flgs.Int("pit", kernelprefs.DefaultPITHz, "PIT scheduler rate in Hz")
	dashboard := flgs.String("dashboard", "", "address to serve the process dashboard on, eg :18066 (disabled if empty)")
	echoLog := flgs.Bool("log", false, "echo the kernel log to stderr")
	if err := flgs.Parse(args); err != nil {
		return err
	}

	rest := flgs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: minikernel [flags] <boot-image>")
	}

	raw, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("reading boot image: %w", err)
	}

	prefs := kernelprefs.NewPrefs()
	prefs.PITHz = *pitHz

	k, err := kernel.Boot(raw, prefs)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	var mon *monitor.Monitor
	if *dashboard != "" {
		mon = monitor.New(k.Manager.Table, *dashboard)
		mon.Start()
	}

	host, err := hostterm.New(os.Stdin, k.Bus)
	if err != nil {
		return fmt.Errorf("attaching host terminal: %w", err)
	}
	defer host.Close()

	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)
	go func() {
		<-intChan
		host.Stop()
	}()

	k.Run()
	defer k.Shutdown()

	host.Run()

	if mon != nil {
		mon.Stop()
	}
	if *echoLog {
		klog.Write(os.Stderr)
	}
	return nil
}
