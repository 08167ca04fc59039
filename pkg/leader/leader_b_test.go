package leader

import (
	"context"
	"testing"
	"time"

	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/chainb/fake"
	"github.com/certen-labs/fedbridge/pkg/store"
)

func TestLeaderB_BroadcastsOnceThresholdReached(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	broadcaster := &fake.Broadcaster{}
	reader := fake.NewReader()

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 1, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}
	for _, signerName := range []string{"s1", "s2"} {
		if err := sigs.Insert(context.Background(), swap.ID, signerName, "sig-"+signerName); err != nil {
			t.Fatalf("insert signature: %v", err)
		}
	}

	l := NewLeaderB(swaps, sigs, broadcaster, reader, 2, 0, 0, testMetrics)
	if err := l.broadcastReady(context.Background()); err != nil {
		t.Fatalf("broadcast ready: %v", err)
	}

	if len(broadcaster.Multisigned) != 1 || len(broadcaster.Broadcasted) != 1 {
		t.Fatalf("expected exactly one multisign+broadcast, got %d/%d", len(broadcaster.Multisigned), len(broadcaster.Broadcasted))
	}
	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", got.Status)
	}
}

func TestLeaderB_WaitsForThreshold(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	broadcaster := &fake.Broadcaster{}
	reader := fake.NewReader()

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 2, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}
	if err := sigs.Insert(context.Background(), swap.ID, "s1", "sig-s1"); err != nil {
		t.Fatalf("insert signature: %v", err)
	}

	l := NewLeaderB(swaps, sigs, broadcaster, reader, 2, 0, 0, testMetrics)
	if err := l.broadcastReady(context.Background()); err != nil {
		t.Fatalf("broadcast ready: %v", err)
	}

	if len(broadcaster.Broadcasted) != 0 {
		t.Fatal("must not broadcast before quorum is reached")
	}
}

func TestLeaderB_ConfirmsOnceVisibleOnChainB(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	broadcaster := &fake.Broadcaster{}
	reader := fake.NewReader()

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 3, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusSigned, store.StatusSubmitted, ""); err != nil {
		t.Fatalf("transition to submitted: %v", err)
	}
	reader.PutSwap(3, "native", chainb.SwapRecord{Amount: "100", Destination: "secret1abc"})

	l := NewLeaderB(swaps, sigs, broadcaster, reader, 2, 0, 0, testMetrics)
	if err := l.confirmBroadcasted(context.Background()); err != nil {
		t.Fatalf("confirm broadcasted: %v", err)
	}

	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
}

func TestLeaderB_LeavesSubmittedWhenNotYetVisible(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	broadcaster := &fake.Broadcaster{}
	reader := fake.NewReader() // nothing registered

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 4, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusSigned, store.StatusSubmitted, ""); err != nil {
		t.Fatalf("transition to submitted: %v", err)
	}

	l := NewLeaderB(swaps, sigs, broadcaster, reader, 2, 0, 0, testMetrics)
	if err := l.confirmBroadcasted(context.Background()); err != nil {
		t.Fatalf("confirm broadcasted: %v", err)
	}

	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusSubmitted {
		t.Fatalf("expected still submitted, got %s", got.Status)
	}
}

func TestLeaderB_EmitsQuorumUnreachableOnceAfterTimeout(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	broadcaster := &fake.Broadcaster{}
	reader := fake.NewReader()

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 9, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}
	if err := sigs.Insert(context.Background(), swap.ID, "s1", "sig-s1"); err != nil {
		t.Fatalf("insert signature: %v", err)
	}

	l := NewLeaderB(swaps, sigs, broadcaster, reader, 2, 0, 10*time.Millisecond, testMetrics)

	if err := l.broadcastReady(context.Background()); err != nil {
		t.Fatalf("broadcast ready: %v", err)
	}
	if l.warnedUnreach[swap.ID] {
		t.Fatal("must not warn on the first observation below threshold")
	}

	time.Sleep(15 * time.Millisecond)
	if err := l.broadcastReady(context.Background()); err != nil {
		t.Fatalf("broadcast ready: %v", err)
	}
	if !l.warnedUnreach[swap.ID] {
		t.Fatal("expected a QuorumUnreachable warning once quorum_timeout elapsed")
	}

	if err := sigs.Insert(context.Background(), swap.ID, "s2", "sig-s2"); err != nil {
		t.Fatalf("insert second signature: %v", err)
	}
	if err := l.broadcastReady(context.Background()); err != nil {
		t.Fatalf("broadcast ready after quorum: %v", err)
	}
	if _, tracked := l.firstBelow[swap.ID]; tracked {
		t.Fatal("expected below-quorum tracking cleared once the swap reaches threshold")
	}
	if l.warnedUnreach[swap.ID] {
		t.Fatal("expected the warning flag cleared once the swap reaches threshold")
	}
}
