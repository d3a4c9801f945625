package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK("doc-1", "2-a")
	if r.ID() != "doc-1" || r.Rev() != "2-a" {
		t.Errorf("ID() = %q, Rev() = %q", r.ID(), r.Rev())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError("doc-2", err)
	if r.ID() != "doc-2" || r.Rev() != "" {
		t.Errorf("ID() = %q, Rev() = %q", r.ID(), r.Rev())
	}
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestFailed(t *testing.T) {
	rs := []Result{NewOK("a", "1"), NewError("b", errors.New("x")), NewError("c", errors.New("y"))}
	if n := Failed(rs); n != 2 {
		t.Errorf("Failed() = %d, want 2", n)
	}
	if n := Failed(nil); n != 0 {
		t.Errorf("Failed(nil) = %d, want 0", n)
	}
}
