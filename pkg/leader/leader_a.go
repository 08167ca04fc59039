// Package leader implements the two roles that turn collected signatures
// and observed events into finalized cross-chain transfers. LeaderA
// proposes B->A releases from chain-B burns; LeaderB broadcasts A->B
// mints once enough signers have signed.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/eventstream"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/retry"
	"github.com/certen-labs/fedbridge/pkg/signer"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

// chainAWriter is the narrow chain-A surface LeaderA needs.
type chainAWriter interface {
	SubmitTransaction(ctx context.Context, privateKeyHex string, dest common.Address, value *big.Int, data []byte, nonce uint64, token common.Address) (common.Hash, error)
}

// chainADataReader lets LeaderA recover which nonce a freshly observed
// Submission belongs to: the contract never returns its own
// transactionId to the caller of submitTransaction, only to on-chain
// log subscribers, so the leader has to read its own proposal back.
type chainADataReader interface {
	Transactions(ctx context.Context, submissionID *big.Int) (chaina.TransactionData, error)
}

// cursor tracks the last chain-B nonce LeaderA has scanned, the same
// shape as eventstream.Checkpoint so CheckpointStore/FileCheckpoint/
// MemoryCheckpoint all work unmodified, just repurposed to count burns
// instead of blocks.
type cursor interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, n uint64) error
}

// swapRegistrar is the narrow swap-store surface LeaderA needs to record
// a burn and carry it through to a release proposal. Satisfied by both
// *store.SwapStore and *store.MemorySwapStore.
type swapRegistrar interface {
	Create(ctx context.Context, in store.NewSwap) (*store.Swap, error)
	GetByNonce(ctx context.Context, direction store.Direction, nonce int64) (*store.Swap, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*store.Swap, error)
	SetSubmissionID(ctx context.Context, id uuid.UUID, submissionID string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to store.Status, failureReason string) error
}

// LeaderA scans chain-B burns in strict nonce order, registers each as a
// swap, and proposes the corresponding chain-A release. It later marks a
// swap Confirmed once the proposal's Execution event is observed —
// EventStream only surfaces Execution after the configured confirmation
// depth, so no separate confirmation wait is needed here.
type LeaderA struct {
	chainB        chainb.Reader
	chainA        chainAWriter
	chainAReader  chainADataReader
	swaps         swapRegistrar
	cursor        cursor
	tokens        *tokenmap.Map // scrt->eth: resolves a burn's token to the release's A-side token
	privateKeyHex string
	startNonce    uint64
	interval      time.Duration
	metrics       *metrics.Registry
	logger        *log.Logger

	done chan struct{}
	stop chan struct{}
}

// NewLeaderA returns a LeaderA that submits releases signed by
// privateKeyHex, starting its burn scan at startNonce if no cursor has
// been saved yet. tokens resolves a burn's chain-B token to the
// chain-A token a release must reference.
func NewLeaderA(chainB chainb.Reader, chainA chainAWriter, chainAReader chainADataReader, swaps swapRegistrar, cur cursor, tokens *tokenmap.Map, privateKeyHex string, startNonce uint64, interval time.Duration, reg *metrics.Registry) *LeaderA {
	if interval == 0 {
		interval = 10 * time.Second
	}
	return &LeaderA{
		chainB:        chainB,
		chainA:        chainA,
		chainAReader:  chainAReader,
		swaps:         swaps,
		cursor:        cur,
		tokens:        tokens,
		privateKeyHex: privateKeyHex,
		startNonce:    startNonce,
		interval:      interval,
		metrics:       reg,
		logger:        log.New(log.Writer(), "[LeaderA] ", log.LstdFlags),
	}
}

// Start begins the burn-scan loop in a background goroutine.
func (l *LeaderA) Start(ctx context.Context) {
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx)
	l.logger.Printf("started (interval=%s, start nonce=%d)", l.interval, l.startNonce)
}

// Stop signals the loop to exit and waits for it to finish.
func (l *LeaderA) Stop() {
	if l.stop == nil {
		return
	}
	close(l.stop)
	<-l.done
	l.logger.Println("stopped")
}

func (l *LeaderA) run(ctx context.Context) {
	defer close(l.done)
	for {
		if err := l.scanOnce(ctx); err != nil {
			l.logger.Printf("scan error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		default:
		}
		if err := retry.Sleep(ctx, l.interval); err != nil {
			return
		}
	}
}

// scanOnce advances the burn cursor strictly one nonce at a time,
// stopping at the first nonce chain B has not recorded yet. Processing
// one nonce at a time, with the cursor saved only after that nonce's
// swap/proposal work succeeds, is what keeps a crash mid-scan from
// skipping a burn: resuming always re-queries the same nonce the
// previous run last committed past.
func (l *LeaderA) scanOnce(ctx context.Context) error {
	next, err := l.resumeFrom(ctx)
	if err != nil {
		return err
	}

	for {
		burn, err := l.chainB.QueryBurnByNonce(ctx, next)
		if errors.Is(err, chainb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("leader a: query burn nonce=%d: %w", next, err)
		}

		if err := l.handleBurn(ctx, next, burn); err != nil {
			return fmt.Errorf("leader a: handle burn nonce=%d: %w", next, err)
		}
		if err := l.cursor.Save(ctx, next); err != nil {
			return fmt.Errorf("leader a: save cursor at %d: %w", next, err)
		}
		l.metrics.Checkpoint.WithLabelValues("leader_a_scrt_nonce").Set(float64(next))
		next++
	}
}

func (l *LeaderA) resumeFrom(ctx context.Context) (uint64, error) {
	last, ok, err := l.cursor.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("leader a: load cursor: %w", err)
	}
	if !ok {
		return l.startNonce, nil
	}
	return last + 1, nil
}

// pendingMarker prefixes the submission_id column while a release has
// been sent but its on-chain transactionId is not yet known — the chain
// only hands that id to log subscribers, never back to the caller of
// submitTransaction, so SetSubmissionID records the raw tx hash as a
// placeholder until HandleSubmission reads the real id back.
const pendingMarker = "pending:"

// handleBurn registers the burn as a swap (idempotently) and, if no
// release has been proposed for it yet, proposes one. The swap stays in
// StatusObserved until HandleSubmission confirms which on-chain
// transactionId the proposal received. A burn whose token has no entry
// in the token map is registered and immediately failed: the firewall
// firing earlier here, before a release is ever proposed, is cheaper
// than letting SignerA reject every confirmation downstream.
func (l *LeaderA) handleBurn(ctx context.Context, nonce uint64, burn chainb.BurnRecord) error {
	swap, err := l.swaps.GetByNonce(ctx, store.ScrtToEth, int64(nonce))
	if errors.Is(err, store.ErrSwapNotFound) {
		swap, err = l.swaps.Create(ctx, store.NewSwap{
			Direction:   store.ScrtToEth,
			Nonce:       int64(nonce),
			TokenKey:    burn.TokenAddr,
			Amount:      burn.Amount,
			Destination: burn.Dest,
		})
	}
	if err != nil && !errors.Is(err, store.ErrDuplicateSwap) {
		return fmt.Errorf("register swap: %w", err)
	}
	if swap == nil {
		swap, err = l.swaps.GetByNonce(ctx, store.ScrtToEth, int64(nonce))
		if err != nil {
			return fmt.Errorf("reload swap after duplicate: %w", err)
		}
	}

	if swap.Status != store.StatusObserved || swap.SubmissionID != "" {
		return nil
	}

	entry, ok := l.tokens.Resolve(burn.TokenAddr)
	if !ok {
		l.logger.Printf("burn nonce=%d: token %s not in token map, refusing to propose release", nonce, burn.TokenAddr)
		if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusObserved, store.StatusFailed, "unmapped token "+burn.TokenAddr); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("mark swap failed on unmapped token: %w", err)
		}
		l.metrics.SwapsFailed.WithLabelValues(string(store.ScrtToEth), "unmapped_token").Inc()
		return nil
	}

	amount, ok := new(big.Int).SetString(burn.Amount, 10)
	if !ok {
		return fmt.Errorf("unparseable burn amount %q", burn.Amount)
	}

	token := common.HexToAddress(entry.EthAddr)
	var dest common.Address
	var value *big.Int
	var data []byte
	switch entry.Kind {
	case tokenmap.KindNative:
		dest = common.HexToAddress(burn.Dest)
		value = amount
	case tokenmap.KindToken:
		dest = token // the multisig calls into the token contract itself
		value = big.NewInt(0)
		data, err = signer.EncodeERC20Transfer(common.HexToAddress(burn.Dest), amount)
		if err != nil {
			return fmt.Errorf("encode erc20 transfer: %w", err)
		}
	default:
		return fmt.Errorf("burn nonce=%d: token entry has unknown kind %q", nonce, entry.Kind)
	}

	txHash, err := l.chainA.SubmitTransaction(ctx, l.privateKeyHex, dest, value, data, nonce, token)
	if err != nil {
		return fmt.Errorf("submit release: %w", err)
	}
	l.logger.Printf("proposed release for burn nonce=%d in tx %s, awaiting submission id", nonce, txHash)

	if err := l.swaps.SetSubmissionID(ctx, swap.ID, pendingMarker+txHash.Hex()); err != nil {
		return fmt.Errorf("record pending submission marker: %w", err)
	}
	return nil
}

// HandleLock is a no-op: LeaderA only cares about the release side.
func (l *LeaderA) HandleLock(context.Context, chaina.LockEvent) error { return nil }

// HandleSubmission recovers which nonce a freshly observed release
// proposal belongs to by reading the submission's nonce field back, then
// records the real on-chain transactionId and moves the swap to Signed
// — it is now the confirmable, on-chain object signers vote on.
func (l *LeaderA) HandleSubmission(ctx context.Context, event chaina.SubmissionEvent) error {
	tx, err := l.chainAReader.Transactions(ctx, event.SubmissionID)
	if err != nil {
		return fmt.Errorf("leader a: read submission %s: %w", event.SubmissionID, err)
	}
	if tx.Nonce == nil {
		return nil
	}
	nonce := tx.Nonce.Uint64()

	swap, err := l.swaps.GetByNonce(ctx, store.ScrtToEth, int64(nonce))
	if errors.Is(err, store.ErrSwapNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("leader a: find swap for nonce %d: %w", nonce, err)
	}
	if swap.Status != store.StatusObserved {
		return nil
	}

	if err := l.swaps.SetSubmissionID(ctx, swap.ID, event.SubmissionID.String()); err != nil {
		return fmt.Errorf("leader a: record submission id: %w", err)
	}
	if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		return fmt.Errorf("leader a: transition to signed: %w", err)
	}
	l.logger.Printf("swap %s now tracked as submission %s", swap.ID, event.SubmissionID)
	return nil
}

// HandleExecution finalizes the swap whose release proposal just
// executed. Submitted and Confirmed collapse into one transition here:
// EventStream only emits Execution once it has passed the configured
// confirmation depth, so by the time this fires the release is already
// final.
func (l *LeaderA) HandleExecution(ctx context.Context, event chaina.ExecutionEvent) error {
	swap, err := l.swaps.GetBySubmissionID(ctx, event.SubmissionID.String())
	if errors.Is(err, store.ErrSwapNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("leader a: find swap for submission %s: %w", event.SubmissionID, err)
	}

	if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusSigned, store.StatusSubmitted, ""); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return fmt.Errorf("leader a: transition to submitted: %w", err)
	}
	if err := l.swaps.UpdateStatus(ctx, swap.ID, store.StatusSubmitted, store.StatusConfirmed, ""); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return fmt.Errorf("leader a: transition to confirmed: %w", err)
	}
	l.metrics.SwapsConfirmed.WithLabelValues(string(store.ScrtToEth)).Inc()
	l.logger.Printf("swap %s confirmed (submission %s executed)", swap.ID, event.SubmissionID)
	return nil
}

var (
	_ swapRegistrar       = (*store.SwapStore)(nil)
	_ swapRegistrar       = (*store.MemorySwapStore)(nil)
	_ chainAWriter        = (*chaina.Client)(nil)
	_ chainADataReader    = (*chaina.Client)(nil)
	_ cursor              = (*store.CheckpointStore)(nil)
	_ cursor              = (*store.MemoryCheckpoint)(nil)
	_ cursor              = (*store.FileCheckpoint)(nil)
	_ eventstream.Handler = (*LeaderA)(nil)
)
