// Package supervisor starts and stops every background loop the bridge
// runs — event streams, signers, leaders — as one unit, so cmd/bridge
// only has to wire dependencies once and call Run.
package supervisor

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// Component is anything with the bridge's standard start/stop lifecycle
// (SignerB, LeaderA and LeaderB satisfy this shape; EventStream's Start
// returns an error and is registered as a startStopper instead).
type Component interface {
	Start(ctx context.Context)
	Stop()
}

// startStopper is the subset of EventStream's lifecycle, whose Start
// returns an error; a non-nil error from it is surfaced by the
// supervisor at startup.
type startStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// Supervisor owns the set of background components that make up one
// running bridge process and brings them up and down together.
type Supervisor struct {
	components    []Component
	startStoppers []startStopper
	logger        *log.Logger
}

// New returns an empty Supervisor; use Add/AddStarter to register
// components before calling Run.
func New(logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.New(log.Writer(), "[Supervisor] ", log.LstdFlags)
	}
	return &Supervisor{logger: logger}
}

// Add registers a component with the fire-and-forget Start(ctx) shape.
func (s *Supervisor) Add(c Component) {
	s.components = append(s.components, c)
}

// AddStarter registers a component whose Start can fail synchronously.
func (s *Supervisor) AddStarter(c startStopper) {
	s.startStoppers = append(s.startStoppers, c)
}

// Run starts every registered component, then blocks until ctx is
// canceled. Each component's own Stop() already blocks until its poll
// loop drains, so stopping N components one at a time would take the
// sum of their shutdown latencies; stopAll instead stops them
// concurrently via errgroup, bounding total shutdown time by the
// slowest single component. A synchronous Start failure from any
// AddStarter component aborts the whole run and stops everything
// already started.
func (s *Supervisor) Run(ctx context.Context) error {
	started := make([]interface{ Stop() }, 0, len(s.components)+len(s.startStoppers))
	stopAll := func() {
		var group errgroup.Group
		for _, c := range started {
			c := c
			group.Go(func() error {
				c.Stop()
				return nil
			})
		}
		_ = group.Wait()
	}

	for _, c := range s.startStoppers {
		if err := c.Start(ctx); err != nil {
			stopAll()
			return err
		}
		started = append(started, c)
	}
	for _, c := range s.components {
		c.Start(ctx)
		started = append(started, c)
	}

	s.logger.Printf("all components started (%d)", len(started))
	<-ctx.Done()

	stopAll()
	s.logger.Println("all components stopped")
	return nil
}
