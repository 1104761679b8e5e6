package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockModel struct {
	err error
}

func (m *mockModel) HealthCheck(_ context.Context) error { return m.err }

type mockJournal struct {
	err error
}

func (m *mockJournal) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	r := New(&mockModel{}, &mockJournal{}).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["model"] != CheckOK {
		t.Errorf("expected model %q, got %q", CheckOK, r.Checks["model"])
	}
	if r.Checks["journal"] != CheckOK {
		t.Errorf("expected journal %q, got %q", CheckOK, r.Checks["journal"])
	}
}

func TestCheck_ModelError(t *testing.T) {
	r := New(&mockModel{err: errors.New("session closed")}, &mockJournal{}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["model"] != CheckError {
		t.Errorf("expected model %q, got %q", CheckError, r.Checks["model"])
	}
	if r.Checks["journal"] != CheckOK {
		t.Errorf("expected journal %q, got %q", CheckOK, r.Checks["journal"])
	}
}

func TestCheck_JournalError(t *testing.T) {
	r := New(&mockModel{}, &mockJournal{err: errors.New("database is locked")}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["journal"] != CheckError {
		t.Error("expected journal error")
	}
}

func TestCheck_NoJournal(t *testing.T) {
	r := New(&mockModel{}, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["journal"]; ok {
		t.Error("journal check should be absent when journal is nil")
	}
}

type blockingJournal struct{}

func (blockingJournal) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck_ProbeTimeout(t *testing.T) {
	svc := New(&mockModel{}, blockingJournal{})
	svc.timeout = 10 * time.Millisecond

	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["journal"] != CheckTimeout {
		t.Errorf("expected journal %q, got %q", CheckTimeout, r.Checks["journal"])
	}
	if r.Checks["model"] != CheckOK {
		t.Errorf("expected model %q, got %q", CheckOK, r.Checks["model"])
	}
}

type stuckModel struct{ hold time.Duration }

func (m stuckModel) HealthCheck(context.Context) error {
	time.Sleep(m.hold)
	return nil
}

func TestCheck_ProbeIgnoringContextTimesOut(t *testing.T) {
	svc := New(stuckModel{hold: 2 * time.Second}, nil)
	svc.timeout = 20 * time.Millisecond

	start := time.Now()
	r := svc.Check(context.Background())
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("check waited %v for a stuck probe", elapsed)
	}
	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["model"] != CheckTimeout {
		t.Errorf("expected model %q, got %q", CheckTimeout, r.Checks["model"])
	}
}
