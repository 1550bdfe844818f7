package hostterm

import (
	"testing"

	"github.com/opsys391/minikernel/keyboard"
)

type recorder struct {
	downs []keyboard.Key
	ups   []keyboard.Key
}

func (r *recorder) KeyDown(k keyboard.Key) { r.downs = append(r.downs, k) }
func (r *recorder) KeyUp(k keyboard.Key)   { r.ups = append(r.ups, k) }

func TestDeliverLowercaseLetter(t *testing.T) {
	rec := &recorder{}
	h := &Host{bus: rec, stopCh: make(chan struct{})}

	h.deliver('l')

	if len(rec.downs) != 1 || rec.downs[0] != keyboard.KeyL {
		t.Fatalf("expected a single KeyDown(KeyL), got %v", rec.downs)
	}
	if len(rec.ups) != 1 || rec.ups[0] != keyboard.KeyL {
		t.Fatalf("expected a single KeyUp(KeyL), got %v", rec.ups)
	}
}

func TestDeliverUppercaseLetterWrapsShift(t *testing.T) {
	rec := &recorder{}
	h := &Host{bus: rec, stopCh: make(chan struct{})}

	h.deliver('A')

	wantDowns := []keyboard.Key{keyboard.KeyShift, keyboard.KeyA}
	if len(rec.downs) != 2 || rec.downs[0] != wantDowns[0] || rec.downs[1] != wantDowns[1] {
		t.Fatalf("expected Shift then A on KeyDown, got %v", rec.downs)
	}
}

func TestDeliverEnterAndBackspace(t *testing.T) {
	rec := &recorder{}
	h := &Host{bus: rec, stopCh: make(chan struct{})}

	h.deliver('\r')
	h.deliver(0x7f)

	if len(rec.downs) != 2 || rec.downs[0] != keyboard.KeyEnter || rec.downs[1] != keyboard.KeyBackspace {
		t.Fatalf("got %v", rec.downs)
	}
}

func TestDeliverCtrlL(t *testing.T) {
	rec := &recorder{}
	h := &Host{bus: rec, stopCh: make(chan struct{})}

	h.deliver(0x0c)

	wantDowns := []keyboard.Key{keyboard.KeyCtrl, keyboard.KeyL}
	if len(rec.downs) != 2 || rec.downs[0] != wantDowns[0] || rec.downs[1] != wantDowns[1] {
		t.Fatalf("expected Ctrl then L on KeyDown, got %v", rec.downs)
	}
}
