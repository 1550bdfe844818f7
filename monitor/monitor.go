// Package monitor exposes a live dashboard over the running kernel: the
// process table as JSON, and host-process metrics (goroutines, memory,
// GC pauses -- a reasonable proxy for "how busy is the scheduler") via
// go-echarts/statsview's built-in charts.
//
// There is no hardware front panel to put scheduler/process state on, so
// this package is the emulation's equivalent of one: a browser tab instead
// of blinking LEDs. Grounded on debugger/monitor's existing
// govern.State/counter reporting shape (a small read-only snapshot served
// over an interface, not the debugger's own data), adapted from "serve
// over a Go channel to an attached debugger" to "serve over HTTP to a
// browser".
package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/go-echarts/statsview"
	"github.com/rs/cors"

	"github.com/opsys391/minikernel/internal/klog"
	"github.com/opsys391/minikernel/process"
)

// Monitor owns the statsview manager and the small JSON API layered
// alongside it.
type Monitor struct {
	sv    *statsview.Manager
	table *process.Table
	addr  string
	srv   *http.Server
}

// New constructs a Monitor that will serve on addr (eg. ":18066") once
// Start is called.
func New(table *process.Table, addr string) *Monitor {
	return &Monitor{sv: statsview.New(), table: table, addr: addr}
}

// Start launches both the statsview dashboard (goroutines/memory/GC) and
// this package's own /api/processes endpoint, wrapped in permissive CORS
// so a dashboard served from a different origin can still poll it.
func (m *Monitor) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/processes", m.serveProcesses)

	m.srv = &http.Server{
		Addr:    m.addr,
		Handler: cors.Default().Handler(mux),
	}

	go m.sv.Start()
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Logf("monitor", "http server stopped: %v", err)
		}
	}()
	klog.Logf("monitor", "dashboard listening on %s", m.addr)
}

// Stop shuts down the process-table API server. The statsview manager has
// no public Stop; it is left running for the remainder of the process.
func (m *Monitor) Stop() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Close()
}

type processView struct {
	Pid       int    `json:"pid"`
	ParentPid int    `json:"parent_pid"`
	Term      int    `json:"term"`
	Cmd       string `json:"cmd"`
	Args      string `json:"args"`
}

func (m *Monitor) serveProcesses(w http.ResponseWriter, r *http.Request) {
	active := m.table.Active()
	views := make([]processView, 0, len(active))
	for _, p := range active {
		views = append(views, processView{
			Pid: p.Pid, ParentPid: p.ParentPid, Term: p.Term, Cmd: p.Cmd, Args: p.ArgStr,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}
