package leader

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/chainb/fake"
	"github.com/certen-labs/fedbridge/pkg/signer"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

type fakeChainAWriter struct {
	submitted []struct {
		dest  common.Address
		value *big.Int
		data  []byte
		nonce uint64
		token common.Address
	}
	nextHash int64
}

func (f *fakeChainAWriter) SubmitTransaction(_ context.Context, _ string, dest common.Address, value *big.Int, data []byte, nonce uint64, token common.Address) (common.Hash, error) {
	f.submitted = append(f.submitted, struct {
		dest  common.Address
		value *big.Int
		data  []byte
		nonce uint64
		token common.Address
	}{dest, value, data, nonce, token})
	f.nextHash++
	return common.BigToHash(big.NewInt(f.nextHash)), nil
}

// fakeChainAReader plays back the transaction data LeaderA itself
// submitted, as chaina.Client.Transactions would once the proposal is
// mined, keyed by a synthetic transactionId assigned in submission order.
type fakeChainAReader struct {
	byID map[string]chaina.TransactionData
}

func newFakeChainAReader() *fakeChainAReader {
	return &fakeChainAReader{byID: make(map[string]chaina.TransactionData)}
}

func (f *fakeChainAReader) put(id *big.Int, tx chaina.TransactionData) {
	f.byID[id.String()] = tx
}

func (f *fakeChainAReader) Transactions(_ context.Context, submissionID *big.Int) (chaina.TransactionData, error) {
	return f.byID[submissionID.String()], nil
}

const (
	releaseDestHex  = "0x1111111111111111111111111111111111111111"
	releaseTokenHex = "0x2222222222222222222222222222222222222222"
)

// testTokensScrtToEth maps the scrt-side burn token used throughout this
// file to the same hex value on the A side, plus a native-coin entry
// keyed "native" for the dispatch tests below.
var testTokensScrtToEth = tokenmap.New(map[string]tokenmap.Entry{
	releaseTokenHex: {Kind: tokenmap.KindToken, EthAddr: releaseTokenHex},
	"native":        {Kind: tokenmap.KindNative},
})

func TestLeaderA_ScanOnce_RegistersAndProposesRelease(t *testing.T) {
	reader := fake.NewReader()
	reader.PutBurn(0, chainb.BurnRecord{Nonce: 0, Dest: releaseDestHex, Amount: "500", TokenAddr: releaseTokenHex})

	chainA := &fakeChainAWriter{}
	swaps := store.NewMemorySwapStore()
	cur := &store.MemoryCheckpoint{}

	l := NewLeaderA(reader, chainA, newFakeChainAReader(), swaps, cur, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.scanOnce(context.Background()); err != nil {
		t.Fatalf("scan once: %v", err)
	}

	if len(chainA.submitted) != 1 {
		t.Fatalf("expected exactly one release proposed, got %d", len(chainA.submitted))
	}

	swap, err := swaps.GetByNonce(context.Background(), store.ScrtToEth, 0)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if swap.Status != store.StatusObserved {
		t.Fatalf("expected swap to stay observed pending a known submission id, got %s", swap.Status)
	}
	if swap.SubmissionID == "" {
		t.Fatal("expected a pending submission marker to be recorded")
	}

	last, ok, err := cur.Load(context.Background())
	if err != nil || !ok || last != 0 {
		t.Fatalf("expected cursor at nonce 0, got %d ok=%v err=%v", last, ok, err)
	}

	got := chainA.submitted[0]
	if got.dest != common.HexToAddress(releaseTokenHex) {
		t.Fatalf("expected token release dest to be the token contract %s, got %s", releaseTokenHex, got.dest.Hex())
	}
	if got.value.Sign() != 0 {
		t.Fatalf("expected token release to move zero native value, got %s", got.value)
	}
	recipient, amount, err := signer.DecodeERC20Transfer(got.data)
	if err != nil {
		t.Fatalf("decode erc20 transfer: %v", err)
	}
	if recipient != common.HexToAddress(releaseDestHex) || amount.String() != "500" {
		t.Fatalf("expected transfer(%s, 500), got transfer(%s, %s)", releaseDestHex, recipient.Hex(), amount)
	}
}

func TestLeaderA_ScanOnce_ProposesNativeReleaseWithValueAndNoCalldata(t *testing.T) {
	reader := fake.NewReader()
	reader.PutBurn(0, chainb.BurnRecord{Nonce: 0, Dest: releaseDestHex, Amount: "500", TokenAddr: "native"})

	chainA := &fakeChainAWriter{}
	swaps := store.NewMemorySwapStore()
	cur := &store.MemoryCheckpoint{}

	l := NewLeaderA(reader, chainA, newFakeChainAReader(), swaps, cur, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.scanOnce(context.Background()); err != nil {
		t.Fatalf("scan once: %v", err)
	}

	if len(chainA.submitted) != 1 {
		t.Fatalf("expected exactly one release proposed, got %d", len(chainA.submitted))
	}
	got := chainA.submitted[0]
	if got.dest != common.HexToAddress(releaseDestHex) {
		t.Fatalf("expected native release dest to be the burn destination, got %s", got.dest.Hex())
	}
	if got.value.String() != "500" {
		t.Fatalf("expected native release to move the full burn amount, got %s", got.value)
	}
	if len(got.data) != 0 {
		t.Fatalf("expected native release to carry no calldata, got %d bytes", len(got.data))
	}
}

func TestLeaderA_ScanOnce_StopsAtFirstMissingNonce(t *testing.T) {
	reader := fake.NewReader()
	reader.PutBurn(0, chainb.BurnRecord{Nonce: 0, Dest: releaseDestHex, Amount: "500", TokenAddr: releaseTokenHex})
	// nonce 1 deliberately absent

	chainA := &fakeChainAWriter{}
	swaps := store.NewMemorySwapStore()
	cur := &store.MemoryCheckpoint{}

	l := NewLeaderA(reader, chainA, newFakeChainAReader(), swaps, cur, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.scanOnce(context.Background()); err != nil {
		t.Fatalf("scan once: %v", err)
	}

	last, ok, _ := cur.Load(context.Background())
	if !ok || last != 0 {
		t.Fatalf("expected cursor stalled at 0, got %d ok=%v", last, ok)
	}

	// a second scan with nonce 1 still missing must not re-propose nonce 0
	if err := l.scanOnce(context.Background()); err != nil {
		t.Fatalf("second scan once: %v", err)
	}
	if len(chainA.submitted) != 1 {
		t.Fatalf("expected no re-proposal on re-scan, still got %d submissions", len(chainA.submitted))
	}
}

func TestLeaderA_ScanOnce_FailsSwapForUnmappedToken(t *testing.T) {
	reader := fake.NewReader()
	reader.PutBurn(0, chainb.BurnRecord{Nonce: 0, Dest: releaseDestHex, Amount: "500", TokenAddr: "scrtunknown"})

	chainA := &fakeChainAWriter{}
	swaps := store.NewMemorySwapStore()
	cur := &store.MemoryCheckpoint{}

	l := NewLeaderA(reader, chainA, newFakeChainAReader(), swaps, cur, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.scanOnce(context.Background()); err != nil {
		t.Fatalf("scan once: %v", err)
	}

	if len(chainA.submitted) != 0 {
		t.Fatalf("expected no release proposed for an unmapped token, got %d", len(chainA.submitted))
	}
	swap, err := swaps.GetByNonce(context.Background(), store.ScrtToEth, 0)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if swap.Status != store.StatusFailed {
		t.Fatalf("expected swap failed, got %s", swap.Status)
	}
}

func TestLeaderA_HandleSubmission_RecoversNonceAndSigns(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.ScrtToEth, Nonce: 9, TokenKey: releaseTokenHex, Amount: "100", Destination: releaseDestHex,
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}

	chainAReader := newFakeChainAReader()
	submissionID := big.NewInt(77)
	chainAReader.put(submissionID, chaina.TransactionData{
		Dest: common.HexToAddress(releaseDestHex), Value: big.NewInt(100),
		Nonce: big.NewInt(9), Token: common.HexToAddress(releaseTokenHex),
	})

	l := NewLeaderA(fake.NewReader(), &fakeChainAWriter{}, chainAReader, swaps, &store.MemoryCheckpoint{}, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.HandleSubmission(context.Background(), chaina.SubmissionEvent{SubmissionID: submissionID}); err != nil {
		t.Fatalf("handle submission: %v", err)
	}

	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusSigned {
		t.Fatalf("expected signed, got %s", got.Status)
	}
	if got.SubmissionID != submissionID.String() {
		t.Fatalf("expected submission id %s, got %s", submissionID, got.SubmissionID)
	}
}

func TestLeaderA_HandleExecution_ConfirmsMatchingSwap(t *testing.T) {
	swaps := store.NewMemorySwapStore()
	swap, err := swaps.Create(context.Background(), store.NewSwap{
		Direction: store.ScrtToEth, Nonce: 5, TokenKey: releaseTokenHex, Amount: "10", Destination: releaseDestHex,
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	submissionID := big.NewInt(123)
	if err := swaps.SetSubmissionID(context.Background(), swap.ID, submissionID.String()); err != nil {
		t.Fatalf("set submission id: %v", err)
	}
	if err := swaps.UpdateStatus(context.Background(), swap.ID, store.StatusObserved, store.StatusSigned, ""); err != nil {
		t.Fatalf("transition to signed: %v", err)
	}

	l := NewLeaderA(fake.NewReader(), &fakeChainAWriter{}, newFakeChainAReader(), swaps, &store.MemoryCheckpoint{}, testTokensScrtToEth, "0xkey", 0, 0, testMetrics)
	if err := l.HandleExecution(context.Background(), chaina.ExecutionEvent{SubmissionID: submissionID}); err != nil {
		t.Fatalf("handle execution: %v", err)
	}

	got, err := swaps.Get(context.Background(), swap.ID)
	if err != nil {
		t.Fatalf("get swap: %v", err)
	}
	if got.Status != store.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
}
