package kernelerror_test

import (
	"errors"
	"testing"

	"github.com/opsys391/minikernel/kernelerror"
)

func TestHeadAndIs(t *testing.T) {
	err := kernelerror.New(kernelerror.FileNotFound, "frame0.txt")
	if !kernelerror.Is(err, kernelerror.FileNotFound) {
		t.Fatalf("expected Is to match FileNotFound")
	}
	if kernelerror.Head(err) != kernelerror.FileNotFound {
		t.Fatalf("unexpected head: %q", kernelerror.Head(err))
	}
	if err.Error() != "file not found: frame0.txt" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestHasThroughWrapping(t *testing.T) {
	inner := kernelerror.New(kernelerror.BadInode, 12)
	outer := kernelerror.New("execute failed: %v", inner)
	if !kernelerror.Has(outer, kernelerror.BadInode) {
		t.Fatalf("expected Has to find wrapped BadInode")
	}
}

func TestIsAnyRejectsPlainErrors(t *testing.T) {
	if kernelerror.IsAny(nil) {
		t.Fatalf("nil should not be IsAny")
	}
	if kernelerror.IsAny(errors.New("plain")) {
		t.Fatalf("a plain error should not be IsAny")
	}
}
