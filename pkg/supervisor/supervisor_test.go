package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeComponent struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeComponent) Start(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeComponent) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeComponent) wasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeComponent) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeStarter struct {
	fakeComponent
	startErr error
}

func (f *fakeStarter) Start(context.Context) error {
	f.fakeComponent.Start(context.Background())
	return f.startErr
}

func TestRun_StartsEveryComponentAndStopsOnCancel(t *testing.T) {
	s := New(nil)
	a := &fakeComponent{}
	b := &fakeComponent{}
	s.Add(a)
	s.Add(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	if !a.wasStarted() || !b.wasStarted() {
		t.Fatal("expected both components started")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !a.wasStopped() || !b.wasStopped() {
		t.Fatal("expected both components stopped")
	}
}

func TestRun_AbortsOnStarterFailureAndStopsAlreadyStarted(t *testing.T) {
	s := New(nil)
	first := &fakeStarter{}
	failing := &fakeStarter{startErr: errors.New("boom")}
	s.AddStarter(first)
	s.AddStarter(failing)

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing starter")
	}
	if !first.wasStarted() || !first.wasStopped() {
		t.Fatal("expected the first starter to have been started and then stopped on abort")
	}
}
