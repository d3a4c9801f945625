package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPinger struct {
	err         error
	hasDeadline bool
}

func (m *mockPinger) Ping(ctx context.Context) error {
	_, m.hasDeadline = ctx.Deadline()
	return m.err
}

// --- Tests ---

func TestCheck_Healthy(t *testing.T) {
	p := &mockPinger{}
	r := New(p).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["backend"] != CheckOK {
		t.Errorf("expected backend %q, got %q", CheckOK, r.Checks["backend"])
	}
	if !p.hasDeadline {
		t.Error("ping ran without a deadline")
	}
}

func TestCheck_BackendError(t *testing.T) {
	r := New(&mockPinger{err: errors.New("conn refused")}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["backend"] != CheckError {
		t.Errorf("expected backend %q, got %q", CheckError, r.Checks["backend"])
	}
}

func TestCheck_ExtraCheck(t *testing.T) {
	svc := New(&mockPinger{}).With("cache", &mockPinger{err: errors.New("down")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["backend"] != CheckOK || r.Checks["cache"] != CheckError {
		t.Errorf("unexpected checks %v", r.Checks)
	}
}

func TestCheck_TimeoutApplies(t *testing.T) {
	svc := New(pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	svc.timeout = 10 * time.Millisecond

	r := svc.Check(context.Background())
	if r.Checks["backend"] != CheckError {
		t.Errorf("expected slow backend to fail, got %q", r.Checks["backend"])
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
