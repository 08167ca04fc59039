package leader

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/eventstream"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

// LockObserver turns confirmed chain-A Lock events into Observed
// eth_to_scrt swap rows. It is the entry point for the lock-then-mint
// pipeline: until a swap exists here, SignerB has nothing to sign and
// LeaderB has nothing to broadcast.
type LockObserver struct {
	swaps   swapRegistrar
	tokens  *tokenmap.Map // eth->scrt: resolves the locked token to what SignerB must mint
	metrics *metrics.Registry
	logger  *log.Logger
}

// NewLockObserver returns a LockObserver that registers swaps in swaps,
// resolving locked tokens through the eth->scrt tokens map.
func NewLockObserver(swaps swapRegistrar, tokens *tokenmap.Map, reg *metrics.Registry) *LockObserver {
	return &LockObserver{swaps: swaps, tokens: tokens, metrics: reg, logger: log.New(log.Writer(), "[LockObserver] ", log.LstdFlags)}
}

// HandleLock registers the lock as a new swap, with TokenKey set to the
// chain-B token the lock maps to, not the raw chain-A address: every
// downstream mint is constructed in chain-B terms. ErrDuplicateSwap is
// expected and ignored whenever more than one federation member
// observes the same Lock independently. A token absent from the map
// fails validation outright: the lock is logged and dropped rather than
// registered with a guessed or empty destination token.
func (o *LockObserver) HandleLock(ctx context.Context, event chaina.LockEvent) error {
	key := tokenKey(event.Token)
	entry, ok := o.tokens.Resolve(key)
	if !ok {
		o.logger.Printf("lock nonce=%d: token %s not in token map, refusing to register", event.Nonce, key)
		return nil
	}

	_, err := o.swaps.Create(ctx, store.NewSwap{
		Direction:    store.EthToScrt,
		Nonce:        event.Nonce.Int64(),
		SourceTxHash: event.TxHash.Hex(),
		TokenKey:     entry.ScrtAddr,
		Amount:       event.Amount.String(),
		Destination:  event.Destination,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateSwap) {
		return fmt.Errorf("lock observer: register swap nonce=%d: %w", event.Nonce, err)
	}
	if err == nil {
		o.metrics.SwapsObserved.WithLabelValues(string(store.EthToScrt)).Inc()
	}
	return nil
}

// HandleSubmission is a no-op: LockObserver only cares about locks.
func (o *LockObserver) HandleSubmission(context.Context, chaina.SubmissionEvent) error { return nil }

// HandleExecution is a no-op: LockObserver only cares about locks.
func (o *LockObserver) HandleExecution(context.Context, chaina.ExecutionEvent) error { return nil }

// tokenKey maps a vault-reported token address to the token map's
// lookup key, where the zero address stands for the chain's native
// coin rather than an ERC-20 contract.
func tokenKey(token common.Address) string {
	if token == (common.Address{}) {
		return "native"
	}
	return token.Hex()
}

var _ eventstream.Handler = (*LockObserver)(nil)
