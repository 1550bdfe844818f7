package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opsys391/minikernel/process"
)

func TestServeProcessesReturnsTable(t *testing.T) {
	tbl := process.NewTable()
	p, err := tbl.Allocate(0, 1, "shell")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	p.ArgStr = "hello"

	m := &Monitor{table: tbl}

	req := httptest.NewRequest(http.MethodGet, "/api/processes", nil)
	rec := httptest.NewRecorder()
	m.serveProcesses(rec, req)

	var got []processView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Pid != p.Pid || got[0].Args != "hello" {
		t.Fatalf("unexpected response: %+v", got)
	}
}
