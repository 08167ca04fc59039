package signer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/retry"
	"github.com/certen-labs/fedbridge/pkg/store"
)

// swapLister is the narrow swap-store surface a poll-driven worker
// needs: find work by status, and move one swap forward a step.
type swapLister interface {
	ListByStatus(ctx context.Context, direction store.Direction, status store.Status) ([]*store.Swap, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to store.Status, failureReason string) error
}

// signatureRecorder is the narrow signature-store surface SignerB needs.
type signatureRecorder interface {
	HasSigned(ctx context.Context, swapID uuid.UUID, signer string) (bool, error)
	Insert(ctx context.Context, swapID uuid.UUID, signer, signedTx string) error
}

// SignerB polls for newly observed A->B deposits and produces this
// signer's detached signature over the chain-B mint transaction each
// one implies. A deposit needs no further cross-chain validation before
// signing: it was itself an on-chain chain-A event, unforgeable by
// construction, unlike a leader-proposed release.
type SignerB struct {
	swaps      swapLister
	signatures signatureRecorder
	chainB     chainb.Signer
	self       string
	interval   time.Duration
	metrics    *metrics.Registry
	logger     *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSignerB returns a SignerB identified as self, the chain-B keyring
// account name this process signs under.
func NewSignerB(swaps swapLister, signatures signatureRecorder, chainB chainb.Signer, self string, interval time.Duration, reg *metrics.Registry) *SignerB {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &SignerB{
		swaps:      swaps,
		signatures: signatures,
		chainB:     chainB,
		self:       self,
		interval:   interval,
		metrics:    reg,
		logger:     log.New(log.Writer(), "[SignerB] ", log.LstdFlags),
	}
}

// Start begins the poll loop in a background goroutine.
func (s *SignerB) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Printf("started (interval=%s)", s.interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *SignerB) Stop() {
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

func (s *SignerB) run(ctx context.Context) {
	defer close(s.doneCh)
	for {
		if err := s.pollOnce(ctx); err != nil {
			s.logger.Printf("poll error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := retry.Sleep(ctx, s.interval); err != nil {
			return
		}
	}
}

// pollOnce signs every EthToScrt swap still in StatusObserved that this
// signer has not already signed.
func (s *SignerB) pollOnce(ctx context.Context) error {
	swaps, err := s.swaps.ListByStatus(ctx, store.EthToScrt, store.StatusObserved)
	if err != nil {
		return fmt.Errorf("list observed swaps: %w", err)
	}
	for _, swap := range swaps {
		if err := s.signOne(ctx, swap); err != nil {
			s.logger.Printf("swap %s: %v", swap.ID, err)
		}
	}
	return nil
}

func (s *SignerB) signOne(ctx context.Context, swap *store.Swap) error {
	signed, err := s.signatures.HasSigned(ctx, swap.ID, s.self)
	if err != nil {
		return fmt.Errorf("check existing signature: %w", err)
	}
	if signed {
		return nil
	}

	unsignedTx, err := BuildUnsignedMintTx(swap)
	if err != nil {
		return err
	}
	signedTx, err := s.chainB.SignSubmission(ctx, unsignedTx)
	if err != nil {
		return fmt.Errorf("sign submission: %w", err)
	}
	if err := s.signatures.Insert(ctx, swap.ID, s.self, signedTx); err != nil && !errors.Is(err, store.ErrDuplicateSignature) {
		return fmt.Errorf("record signature: %w", err)
	}

	if err := s.swaps.UpdateStatus(ctx, swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("transition to signed: %w", err)
		}
		// another signer already moved this swap past observed; our own
		// signature is recorded above, which is all this signer owes.
	}

	s.metrics.SignaturesGiven.WithLabelValues(string(store.EthToScrt)).Inc()
	s.logger.Printf("signed swap %s (nonce=%d)", swap.ID, swap.Nonce)
	return nil
}
