package leader

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

// testMetrics is shared by every test in this package: metrics.New
// registers against Prometheus's global default registry, so a second
// call within the same test binary would panic on duplicate collectors.
var testMetrics = metrics.New()

var testTokensEthToScrt = tokenmap.New(map[string]tokenmap.Entry{
	"native": {Kind: tokenmap.KindNative, ScrtAddr: "uscrt"},
	"0x3333333333333333333333333333333333333333": {Kind: tokenmap.KindToken, ScrtAddr: "secret1wrappedx"},
})

func TestLockObserver_RegistersNewSwap(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	o := NewLockObserver(swaps, testTokensEthToScrt, testMetrics)

	event := chaina.LockEvent{
		Nonce:       big.NewInt(7),
		Token:       common.Address{},
		Amount:      big.NewInt(250),
		Destination: "secret1abc",
		TxHash:      common.HexToHash("0xdead"),
	}
	if err := o.HandleLock(context.Background(), event); err != nil {
		t.Fatalf("handle lock: %v", err)
	}

	swap, err := swaps.GetByNonce(context.Background(), store.EthToScrt, 7)
	if err != nil {
		t.Fatalf("get by nonce: %v", err)
	}
	if swap.TokenKey != "uscrt" {
		t.Fatalf("expected native token key uscrt, got %s", swap.TokenKey)
	}
	if swap.Amount != "250" || swap.Destination != "secret1abc" {
		t.Fatalf("unexpected swap fields: %+v", swap)
	}
	if swap.Status != store.StatusObserved {
		t.Fatalf("expected observed, got %s", swap.Status)
	}
}

func TestLockObserver_TokenAddressUsedForERC20Lock(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	o := NewLockObserver(swaps, testTokensEthToScrt, testMetrics)

	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	event := chaina.LockEvent{
		Nonce:       big.NewInt(8),
		Token:       token,
		Amount:      big.NewInt(1),
		Destination: "secret1xyz",
		TxHash:      common.HexToHash("0xbeef"),
	}
	if err := o.HandleLock(context.Background(), event); err != nil {
		t.Fatalf("handle lock: %v", err)
	}

	swap, err := swaps.GetByNonce(context.Background(), store.EthToScrt, 8)
	if err != nil {
		t.Fatalf("get by nonce: %v", err)
	}
	if swap.TokenKey != "secret1wrappedx" {
		t.Fatalf("expected mapped token key secret1wrappedx, got %s", swap.TokenKey)
	}
}

func TestLockObserver_RefusesUnmappedToken(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	o := NewLockObserver(swaps, testTokensEthToScrt, testMetrics)

	unmapped := common.HexToAddress("0x9999999999999999999999999999999999999999")
	event := chaina.LockEvent{
		Nonce:       big.NewInt(20),
		Token:       unmapped,
		Amount:      big.NewInt(1),
		Destination: "secret1nope",
		TxHash:      common.HexToHash("0xfade"),
	}
	if err := o.HandleLock(context.Background(), event); err != nil {
		t.Fatalf("handle lock: %v", err)
	}

	if _, err := swaps.GetByNonce(context.Background(), store.EthToScrt, 20); err == nil {
		t.Fatal("expected no swap registered for an unmapped token")
	}
}

func TestLockObserver_ToleratesDuplicateLockObservation(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	o := NewLockObserver(swaps, testTokensEthToScrt, testMetrics)

	event := chaina.LockEvent{
		Nonce:       big.NewInt(9),
		Token:       common.Address{},
		Amount:      big.NewInt(1),
		Destination: "secret1dup",
		TxHash:      common.HexToHash("0xf00d"),
	}
	if err := o.HandleLock(context.Background(), event); err != nil {
		t.Fatalf("first observation: %v", err)
	}
	if err := o.HandleLock(context.Background(), event); err != nil {
		t.Fatalf("duplicate observation must be tolerated, got: %v", err)
	}
}
