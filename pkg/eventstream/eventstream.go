// Package eventstream tails a chain-A log source at a fixed confirmation
// depth, never emitting an event from a block that could still be
// reorganized away, and resumes from a persisted checkpoint so a restart
// skips nothing pending; events in a range whose checkpoint was not yet
// saved are fetched and dispatched again.
package eventstream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/retry"
)

// ErrStuckOnMalformedEvent means a log from a watched contract decoded
// as none of Lock/Submission/Execution. The stream halts, leaving the
// checkpoint at the end of the last fully processed range, and refuses
// to advance it past the event until an operator
// calls AckMalformed for exactly that event: a malformed event is never
// silently skipped.
var ErrStuckOnMalformedEvent = errors.New("eventstream: stuck on malformed event, awaiting operator ack")

// MalformedEvent identifies a log EventStream could not decode.
type MalformedEvent struct {
	Block uint64
	Index uint
}

// LogSource is the chain-A surface EventStream needs: the current head
// and a bounded-range log fetch. Satisfied by *chaina.Client and by
// in-memory fakes in tests.
type LogSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
}

// Checkpoint persists the last block whose events have been fully
// processed, so EventStream can resume without reprocessing or skipping.
type Checkpoint interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, blockNumber uint64) error
}

// Handler receives decoded Lock/Submission/Execution events in block
// order. Which kinds a stream sees depends on which contracts its
// LogSource watches (cmd/bridge runs one stream over both the vault and
// the multisig, fanned out with Multi); Handler implementations that
// don't care about a kind can no-op it.
type Handler interface {
	HandleLock(ctx context.Context, event chaina.LockEvent) error
	HandleSubmission(ctx context.Context, event chaina.SubmissionEvent) error
	HandleExecution(ctx context.Context, event chaina.ExecutionEvent) error
}

// Config configures an EventStream.
type Config struct {
	Confirmations uint64        // k: never emit past head-k
	StartBlock    uint64        // used only when the checkpoint is empty
	PollInterval  time.Duration
	MaxBlockRange uint64 // caps a single FilterLogs call, mirrors provider range limits
	Logger        *log.Logger
	Metrics       *metrics.Registry // optional; Checkpoint gauge set under StreamName at each saved block
	StreamName    string            // metrics label identifying which contract this stream watches
}

// DefaultMaxBlockRange matches the conservative free-tier eth_getLogs
// range limit several providers impose.
const DefaultMaxBlockRange = 2000

// EventStream polls a LogSource and dispatches confirmed events to a
// Handler, persisting a checkpoint after each processed block range (at
// most MaxBlockRange blocks).
type EventStream struct {
	mu sync.RWMutex

	source     LogSource
	checkpoint Checkpoint
	handler    Handler
	cfg        Config
	logger     *log.Logger

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	stuck *MalformedEvent         // non-nil once a log fails to decode, until acked
	acked map[MalformedEvent]bool // malformed events an operator has acked; skipped on re-fetch
}

// New builds an EventStream bound to a chain-A log source.
func New(source LogSource, checkpoint Checkpoint, handler Handler, cfg Config) *EventStream {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = DefaultMaxBlockRange
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[EventStream] ", log.LstdFlags)
	}
	return &EventStream{
		source:     source,
		checkpoint: checkpoint,
		handler:    handler,
		cfg:        cfg,
		logger:     cfg.Logger,
	}
}

// Start begins the polling loop in a background goroutine. Calling Start
// twice without an intervening Stop is a no-op, matching the
// start/stop/running-flag lifecycle used across the bridge's loops.
func (s *EventStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Printf("started (confirmations=%d, poll=%s)", s.cfg.Confirmations, s.cfg.PollInterval)
	return nil
}

// Stop signals the loop to exit and waits for it to finish its current
// iteration.
func (s *EventStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	s.logger.Println("stopped")
}

func (s *EventStream) run(ctx context.Context) {
	defer close(s.doneCh)

	failures := 0
	for {
		delay := s.cfg.PollInterval
		if err := s.poll(ctx); err != nil {
			s.logger.Printf("poll error: %v", err)
			delay = retry.DefaultBackoff.Next(failures)
			failures++
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := retry.Sleep(ctx, delay); err != nil {
			return
		}
	}
}

// poll runs a single iteration: compute the confirmable boundary,
// fetch and dispatch logs in capped ranges, and advance the checkpoint
// after each range completes, so a crash mid-range only re-fetches
// that range rather than the whole backlog.
func (s *EventStream) poll(ctx context.Context) error {
	if stuck, ok := s.Stuck(); ok {
		return fmt.Errorf("%w: block=%d index=%d", ErrStuckOnMalformedEvent, stuck.Block, stuck.Index)
	}

	head, err := s.source.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("eventstream: latest block: %w", err)
	}
	if head < s.cfg.Confirmations {
		return nil
	}
	confirmableHead := head - s.cfg.Confirmations

	fromBlock, err := s.resumeFrom(ctx)
	if err != nil {
		return err
	}
	if fromBlock > confirmableHead {
		return nil
	}

	for fromBlock <= confirmableHead {
		toBlock := fromBlock + s.cfg.MaxBlockRange - 1
		if toBlock > confirmableHead {
			toBlock = confirmableHead
		}

		if err := s.processRange(ctx, fromBlock, toBlock); err != nil {
			return err
		}
		if err := s.checkpoint.Save(ctx, toBlock); err != nil {
			return fmt.Errorf("eventstream: save checkpoint at %d: %w", toBlock, err)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Checkpoint.WithLabelValues(s.cfg.StreamName).Set(float64(toBlock))
		}
		fromBlock = toBlock + 1
	}
	return nil
}

func (s *EventStream) resumeFrom(ctx context.Context) (uint64, error) {
	last, ok, err := s.checkpoint.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventstream: load checkpoint: %w", err)
	}
	if !ok {
		return s.cfg.StartBlock, nil
	}
	return last + 1, nil
}

func (s *EventStream) processRange(ctx context.Context, fromBlock, toBlock uint64) error {
	logs, err := s.source.FetchLogs(ctx, fromBlock, toBlock)
	if err != nil {
		return fmt.Errorf("eventstream: fetch logs [%d,%d]: %w", fromBlock, toBlock, err)
	}

	for _, l := range logs {
		if lock, ok := chaina.DecodeLock(l); ok {
			if err := s.handler.HandleLock(ctx, lock); err != nil {
				return fmt.Errorf("eventstream: handle lock %s: %w", lock.Nonce, err)
			}
			continue
		}
		if submission, ok := chaina.DecodeSubmission(l); ok {
			if err := s.handler.HandleSubmission(ctx, submission); err != nil {
				return fmt.Errorf("eventstream: handle submission %s: %w", submission.SubmissionID, err)
			}
			continue
		}
		if execution, ok := chaina.DecodeExecution(l); ok {
			if err := s.handler.HandleExecution(ctx, execution); err != nil {
				return fmt.Errorf("eventstream: handle execution %s: %w", execution.SubmissionID, err)
			}
			continue
		}

		ev := MalformedEvent{Block: l.BlockNumber, Index: l.Index}
		s.mu.RLock()
		skip := s.acked[ev]
		s.mu.RUnlock()
		if skip {
			continue
		}
		s.mu.Lock()
		s.stuck = &ev
		s.mu.Unlock()
		s.logger.Printf("ERROR: malformed event at block=%d index=%d tx=%s topics=%v: matches no known contract event, halting until acked", ev.Block, ev.Index, l.TxHash, l.Topics)
		return fmt.Errorf("%w: block=%d index=%d", ErrStuckOnMalformedEvent, ev.Block, ev.Index)
	}

	if len(logs) > 0 {
		s.logger.Printf("processed %d events from blocks %d to %d", len(logs), fromBlock, toBlock)
	}
	return nil
}

// Stuck reports the malformed event currently blocking progress, if any.
func (s *EventStream) Stuck() (MalformedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stuck == nil {
		return MalformedEvent{}, false
	}
	return *s.stuck, true
}

// AckMalformed is the operator's acknowledgment that the malformed event
// at (block, index) has been handled out of band (a manual decode, a
// contract fix, or a deliberate decision to skip it). It unblocks
// polling only when it names exactly the event currently stuck; any
// other value is rejected so an ack can never silently clear a
// different, still-unseen malformed event.
func (s *EventStream) AckMalformed(block uint64, index uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stuck == nil {
		return fmt.Errorf("eventstream: no malformed event pending ack")
	}
	if s.stuck.Block != block || s.stuck.Index != index {
		return fmt.Errorf("eventstream: ack for block=%d index=%d does not match pending block=%d index=%d", block, index, s.stuck.Block, s.stuck.Index)
	}
	if s.acked == nil {
		s.acked = make(map[MalformedEvent]bool)
	}
	s.acked[*s.stuck] = true
	s.stuck = nil
	return nil
}

var _ LogSource = (*chaina.Client)(nil)
