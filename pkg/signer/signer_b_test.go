package signer

import (
	"context"
	"testing"

	"github.com/certen-labs/fedbridge/pkg/chainb/fake"
	"github.com/certen-labs/fedbridge/pkg/store"
)

func TestSignerB_SignsObservedSwapAndMarksSigned(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	chainB := &fake.Signer{}

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 1, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}

	s := NewSignerB(swaps, sigs, chainB, "signer-a", 0, testMetrics)
	if err := s.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll once: %v", err)
	}

	signed, err := sigs.HasSigned(context.Background(), swap.ID, "signer-a")
	if err != nil || !signed {
		t.Fatalf("expected signer-a to have signed, err=%v signed=%v", err, signed)
	}

	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusSigned {
		t.Fatalf("expected status signed, got %s", got.Status)
	}
	if len(chainB.Signed) != 1 {
		t.Fatalf("expected exactly one SignSubmission call, got %d", len(chainB.Signed))
	}
}

func TestSignerB_SkipsSwapAlreadySignedBySelf(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	chainB := &fake.Signer{}

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 2, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	if err := sigs.Insert(context.Background(), swap.ID, "signer-a", "sig(existing)"); err != nil {
		t.Fatalf("seed signature: %v", err)
	}

	s := NewSignerB(swaps, sigs, chainB, "signer-a", 0, testMetrics)
	if err := s.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll once: %v", err)
	}

	if len(chainB.Signed) != 0 {
		t.Fatal("must not re-sign a swap this signer already signed")
	}
}

func TestSignerB_ToleratesRaceOnStatusTransition(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	sigs := store.NewMemorySignatureStore()
	chainB := &fake.Signer{}

	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.EthToScrt, Nonce: 3, TokenKey: "native", Amount: "100", Destination: "secret1abc",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	// simulate another signer having already advanced the swap to signed
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("seed transition: %v", err)
	}

	s := NewSignerB(swaps, sigs, chainB, "signer-b", 0, testMetrics)
	// pollOnce only lists StatusObserved, so a swap already Signed by
	// another signer won't be revisited via this path; directly exercise
	// signOne to confirm the race-tolerant transition handling.
	if err := s.signOne(context.Background(), swap); err != nil {
		t.Fatalf("sign one: %v", err)
	}

	signed, err := sigs.HasSigned(context.Background(), swap.ID, "signer-b")
	if err != nil || !signed {
		t.Fatalf("expected signer-b's signature to be recorded despite the race, err=%v signed=%v", err, signed)
	}
}
