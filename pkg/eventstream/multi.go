package eventstream

import (
	"context"

	"github.com/certen-labs/fedbridge/pkg/chaina"
)

// multiHandler fans a decoded event out to every handler in turn,
// stopping at the first error. It exists because a single chain-A
// client watches both the vault and the multisig wallet in one
// FetchLogs call, so one EventStream must be able to dispatch Lock,
// Submission, and Execution events to the several roles that each care
// about only one kind.
type multiHandler struct {
	handlers []Handler
}

// Multi composes several handlers into one, useful when a single
// EventStream must reach more than one role (e.g. a LockObserver that
// registers swaps and a LeaderA that proposes releases).
func Multi(handlers ...Handler) Handler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) HandleLock(ctx context.Context, event chaina.LockEvent) error {
	for _, h := range m.handlers {
		if err := h.HandleLock(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) HandleSubmission(ctx context.Context, event chaina.SubmissionEvent) error {
	for _, h := range m.handlers {
		if err := h.HandleSubmission(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) HandleExecution(ctx context.Context, event chaina.ExecutionEvent) error {
	for _, h := range m.handlers {
		if err := h.HandleExecution(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

var _ Handler = (*multiHandler)(nil)
