package leader

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
	"github.com/certen-labs/fedbridge/pkg/signer"
	"github.com/certen-labs/fedbridge/pkg/store"
)

// swapWorkQueue is the narrow swap-store surface LeaderB needs.
type swapWorkQueue interface {
	ListByStatus(ctx context.Context, direction store.Direction, status store.Status) ([]*store.Swap, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to store.Status, failureReason string) error
}

// signatureLister is the narrow signature-store surface LeaderB needs to
// check and assemble quorum.
type signatureLister interface {
	Count(ctx context.Context, swapID uuid.UUID) (int, error)
	List(ctx context.Context, swapID uuid.UUID) ([]store.Signature, error)
}

// ErrQuorumUnreachable is logged, never returned, when a swap has sat
// below the signature threshold for longer than quorumTimeout. It is a
// warning, not a failure: the swap stays Signed and keeps collecting
// confirmations, it is only surfaced so an operator notices a stalled
// federation before a user does.
var ErrQuorumUnreachable = errors.New("leader b: quorum not reached within timeout")

// LeaderB watches A->B swaps that have collected signatures and, once a
// swap reaches the federation's signature threshold, assembles a signed
// chain-B transaction and broadcasts it. It then verifies the mint
// actually landed before calling the swap confirmed, since chain B
// offers no equivalent to waiting for a confirmed block height.
type LeaderB struct {
	swaps         swapWorkQueue
	signatures    signatureLister
	chainB        chainb.Broadcaster
	reader        chainb.Reader
	threshold     int
	interval      time.Duration
	quorumTimeout time.Duration
	metrics       *metrics.Registry
	logger        *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	quorumMu      sync.Mutex
	firstBelow    map[uuid.UUID]time.Time // swap -> when it was first seen below threshold
	warnedUnreach map[uuid.UUID]bool      // swap -> QuorumUnreachable already emitted once
}

// NewLeaderB returns a LeaderB that broadcasts once threshold distinct
// signers have signed a swap. quorumTimeout bounds how long a swap may
// sit below threshold before a QuorumUnreachable warning fires; zero
// disables the warning.
func NewLeaderB(swaps swapWorkQueue, signatures signatureLister, chainB chainb.Broadcaster, reader chainb.Reader, threshold int, interval, quorumTimeout time.Duration, reg *metrics.Registry) *LeaderB {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &LeaderB{
		swaps:         swaps,
		signatures:    signatures,
		chainB:        chainB,
		reader:        reader,
		threshold:     threshold,
		interval:      interval,
		quorumTimeout: quorumTimeout,
		metrics:       reg,
		logger:        log.New(log.Writer(), "[LeaderB] ", log.LstdFlags),
		firstBelow:    make(map[uuid.UUID]time.Time),
		warnedUnreach: make(map[uuid.UUID]bool),
	}
}

// Start begins the poll loop in a background goroutine.
func (l *LeaderB) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.running = true
	l.mu.Unlock()

	go l.run(ctx)
	l.logger.Printf("started (threshold=%d, interval=%s)", l.threshold, l.interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (l *LeaderB) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	close(l.stopCh)
	l.running = false
	l.mu.Unlock()

	<-l.doneCh
	l.logger.Println("stopped")
}

func (l *LeaderB) run(ctx context.Context) {
	defer close(l.doneCh)
	for {
		if err := l.pollOnce(ctx); err != nil {
			l.logger.Printf("poll error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}
		if err := retry.Sleep(ctx, l.interval); err != nil {
			return
		}
	}
}

func (l *LeaderB) pollOnce(ctx context.Context) error {
	if err := l.broadcastReady(ctx); err != nil {
		return err
	}
	return l.confirmBroadcasted(ctx)
}

// broadcastReady assembles and broadcasts a signed mint transaction for
// every Signed swap that has reached quorum.
func (l *LeaderB) broadcastReady(ctx context.Context) error {
	swaps, err := l.swaps.ListByStatus(ctx, store.EthToScrt, store.StatusSigned)
	if err != nil {
		return fmt.Errorf("list signed swaps: %w", err)
	}
	for _, swap := range swaps {
		if err := l.broadcastOne(ctx, swap); err != nil {
			l.logger.Printf("swap %s: %v", swap.ID, err)
		}
	}
	return nil
}

func (l *LeaderB) broadcastOne(ctx context.Context, swap *store.Swap) error {
	count, err := l.signatures.Count(ctx, swap.ID)
	if err != nil {
		return fmt.Errorf("count signatures: %w", err)
	}
	if count < l.threshold {
		l.trackBelowQuorum(swap)
		return nil
	}
	l.clearQuorumTracking(swap.ID)

	sigs, err := l.signatures.List(ctx, swap.ID)
	if err != nil {
		return fmt.Errorf("list signatures: %w", err)
	}
	signedTxs := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		signedTxs = append(signedTxs, sig.SignedTx)
	}

	unsignedTx, err := signer.BuildUnsignedMintTx(swap)
	if err != nil {
		return err
	}
	signedTx, err := l.chainB.MultisignTx(ctx, unsignedTx, signedTxs)
	if err != nil {
		return fmt.Errorf("multisign: %w", err)
	}
	txHash, err := l.chainB.Broadcast(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusSigned, store.StatusSubmitted, ""); err != nil {
		return fmt.Errorf("transition to submitted: %w", err)
	}
	l.logger.Printf("broadcast mint for swap %s (nonce=%d) in tx %s", swap.ID, swap.Nonce, txHash)
	return nil
}

// confirmBroadcasted checks every Submitted swap against chain B and
// promotes it to Confirmed once the mint is actually visible there.
func (l *LeaderB) confirmBroadcasted(ctx context.Context) error {
	swaps, err := l.swaps.ListByStatus(ctx, store.EthToScrt, store.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("list submitted swaps: %w", err)
	}
	for _, swap := range swaps {
		if _, err := l.reader.QuerySwap(ctx, uint64(swap.Nonce), swap.TokenKey); err != nil {
			if errors.Is(err, chainb.ErrNotFound) {
				continue
			}
			l.logger.Printf("swap %s: query chain b: %v", swap.ID, err)
			continue
		}
		if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusSubmitted, store.StatusConfirmed, ""); err != nil {
			l.logger.Printf("swap %s: transition to confirmed: %v", swap.ID, err)
			continue
		}
		l.metrics.SwapsConfirmed.WithLabelValues(string(store.EthToScrt)).Inc()
	}
	return nil
}

// trackBelowQuorum records the first time a swap is observed below
// threshold and, once quorumTimeout has elapsed since then, emits a
// QuorumUnreachable warning exactly once per swap (spec §7, scenario 6).
func (l *LeaderB) trackBelowQuorum(swap *store.Swap) {
	if l.quorumTimeout <= 0 {
		return
	}
	l.quorumMu.Lock()
	defer l.quorumMu.Unlock()

	first, seen := l.firstBelow[swap.ID]
	if !seen {
		l.firstBelow[swap.ID] = time.Now()
		return
	}
	if l.warnedUnreach[swap.ID] {
		return
	}
	if time.Since(first) >= l.quorumTimeout {
		l.warnedUnreach[swap.ID] = true
		l.logger.Printf("%v: swap %s (nonce=%d) stuck below threshold for %s", ErrQuorumUnreachable, swap.ID, swap.Nonce, time.Since(first).Round(time.Second))
	}
}

// clearQuorumTracking drops a swap's below-threshold bookkeeping once it
// reaches quorum and broadcasts, so a UUID is never retained past the
// life of the swap it tracked.
func (l *LeaderB) clearQuorumTracking(id uuid.UUID) {
	l.quorumMu.Lock()
	defer l.quorumMu.Unlock()
	delete(l.firstBelow, id)
	delete(l.warnedUnreach, id)
}

var (
	_ swapWorkQueue   = (*store.SwapStore)(nil)
	_ swapWorkQueue   = (*store.MemorySwapStore)(nil)
	_ signatureLister = (*store.SignatureStore)(nil)
	_ signatureLister = (*store.MemorySignatureStore)(nil)
)
