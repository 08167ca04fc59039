package signer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/eventstream"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

// erc20TransferABI is the minimal ERC-20 surface a token release's data
// field must decode as: the original bridge's signer does the same
// decode_function_input call against a standard ERC-20 ABI before
// trusting a submission's amount and destination.
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var parsedERC20ABI = mustParseERC20ABI()

func mustParseERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("signer: parse erc20 transfer abi: %v", err))
	}
	return parsed
}

// EncodeERC20Transfer packs a standard ERC-20 transfer(recipient, amount)
// call, the data field LeaderA puts on a token release: the multisig
// calls into the token contract itself rather than moving native value.
func EncodeERC20Transfer(recipient common.Address, amount *big.Int) ([]byte, error) {
	return parsedERC20ABI.Pack("transfer", recipient, amount)
}

// DecodeERC20Transfer reverses EncodeERC20Transfer, recovering the
// recipient and amount a token release's data field was built from.
func DecodeERC20Transfer(data []byte) (common.Address, *big.Int, error) {
	if len(data) < 4 {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: calldata too short")
	}
	method, err := parsedERC20ABI.MethodById(data[:4])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: %w", err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: unpack: %w", err)
	}
	if len(values) != 2 {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: expected 2 values, got %d", len(values))
	}
	recipient, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: unexpected recipient type")
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("decode erc20 transfer: unexpected amount type")
	}
	return recipient, amount, nil
}

// ErrValidationMismatch means a proposed release does not match the
// chain-B burn it claims to correspond to. It is never retried: the
// signer refuses to confirm and waits for the next event, rather than
// treating a mismatch as a transient failure worth backing off on.
var ErrValidationMismatch = errors.New("signer: release does not match burn record")

// chainAReader is the narrow chain-A surface SignerA needs, satisfied by
// *chaina.Client and by fakes in tests.
type chainAReader interface {
	Transactions(ctx context.Context, submissionID *big.Int) (chaina.TransactionData, error)
	Confirmations(ctx context.Context, submissionID *big.Int, signer common.Address) (bool, error)
	ConfirmTransaction(ctx context.Context, privateKeyHex string, submissionID *big.Int) (common.Hash, error)
}

// SignerA watches chain-A Submission events — the B->A release
// proposals LeaderA makes — and confirms only those that match an
// actual chain-B burn, by token, amount and destination. This is the
// validation firewall: a malicious or compromised leader can propose
// any release it likes, but can never collect a confirming signature it
// has not independently earned from this signer.
type SignerA struct {
	chainA        chainAReader
	chainB        chainb.Reader
	tokens        *tokenmap.Map // eth->scrt: resolves a release's token to what the burn must have recorded
	privateKeyHex string
	self          common.Address
	metrics       *metrics.Registry
	logger        *log.Logger
}

// NewSignerA returns a SignerA that signs chain-A confirmations as self
// using privateKeyHex. tokens resolves a proposed release's chain-A
// token to the chain-B token the corresponding burn must carry.
func NewSignerA(chainA chainAReader, chainB chainb.Reader, tokens *tokenmap.Map, privateKeyHex string, self common.Address, reg *metrics.Registry) *SignerA {
	return &SignerA{
		chainA:        chainA,
		chainB:        chainB,
		tokens:        tokens,
		privateKeyHex: privateKeyHex,
		self:          self,
		metrics:       reg,
		logger:        log.New(log.Writer(), "[SignerA] ", log.LstdFlags),
	}
}

// HandleLock is a no-op: SignerA only watches the release side of the
// bridge, not chain-A deposits.
func (s *SignerA) HandleLock(context.Context, chaina.LockEvent) error { return nil }

// HandleExecution is a no-op: once a release executes there is nothing
// left for a signer to validate or confirm.
func (s *SignerA) HandleExecution(context.Context, chaina.ExecutionEvent) error { return nil }

// HandleSubmission validates a proposed release against chain B and
// confirms it on-chain if, and only if, it matches. A mismatch is
// logged and swallowed, not returned as an error: EventStream would
// otherwise keep retrying an submission that will never validate.
func (s *SignerA) HandleSubmission(ctx context.Context, event chaina.SubmissionEvent) error {
	tx, err := s.chainA.Transactions(ctx, event.SubmissionID)
	if err != nil {
		return fmt.Errorf("signer a: read submission %s: %w", event.SubmissionID, err)
	}
	if tx.Executed {
		s.logger.Printf("submission %s already executed, nothing to confirm", event.SubmissionID)
		return nil
	}

	already, err := s.chainA.Confirmations(ctx, event.SubmissionID, s.self)
	if err != nil {
		return fmt.Errorf("signer a: read confirmation state %s: %w", event.SubmissionID, err)
	}
	if already {
		return nil
	}

	if tx.Nonce == nil {
		s.logger.Printf("submission %s: no nonce recorded, refusing", event.SubmissionID)
		return nil
	}
	nonce := tx.Nonce.Uint64()

	burn, err := s.chainB.QueryBurnByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, chainb.ErrNotFound) {
			s.logger.Printf("submission %s: no chain-B burn at nonce %d yet, refusing to confirm", event.SubmissionID, nonce)
			return nil
		}
		return fmt.Errorf("signer a: query burn nonce=%d: %w", nonce, err)
	}

	if err := validateRelease(tx, burn, s.tokens); err != nil {
		s.logger.Printf("submission %s: %v, refusing to confirm", event.SubmissionID, err)
		return nil
	}

	txHash, err := s.chainA.ConfirmTransaction(ctx, s.privateKeyHex, event.SubmissionID)
	if err != nil {
		return fmt.Errorf("signer a: confirm submission %s: %w", event.SubmissionID, err)
	}
	s.metrics.SignaturesGiven.WithLabelValues(string(store.ScrtToEth)).Inc()
	s.logger.Printf("confirmed submission %s in tx %s", event.SubmissionID, txHash)
	return nil
}

// validateRelease is the firewall itself: every field the leader
// proposed must match what chain B actually recorded for this nonce.
// token is resolved through the token map rather than compared as a
// raw address, since the burn record names its token in chain-B terms.
// Native-coin and token releases are shaped differently on-chain — a
// native release moves value directly with no calldata, a token release
// moves zero value and calls the token contract's transfer(recipient,
// amount) instead — so validation dispatches on the resolved entry's
// Kind rather than trusting whichever shape the leader happened to send.
func validateRelease(tx chaina.TransactionData, burn chainb.BurnRecord, tokens *tokenmap.Map) error {
	entry, ok := tokens.Resolve(tokenKey(tx.Token))
	if !ok {
		return fmt.Errorf("%w: token %s not in token map", ErrValidationMismatch, tx.Token)
	}
	if entry.ScrtAddr != burn.TokenAddr {
		return fmt.Errorf("%w: mapped token %s != burn token %s", ErrValidationMismatch, entry.ScrtAddr, burn.TokenAddr)
	}

	wantAmount, ok := new(big.Int).SetString(burn.Amount, 10)
	if !ok {
		return fmt.Errorf("%w: unparseable burn amount %q", ErrValidationMismatch, burn.Amount)
	}

	switch entry.Kind {
	case tokenmap.KindNative:
		if len(tx.Data) != 0 {
			return fmt.Errorf("%w: native release must carry no calldata", ErrValidationMismatch)
		}
		if tx.Value.Cmp(wantAmount) != 0 {
			return fmt.Errorf("%w: value %s != burn amount %s", ErrValidationMismatch, tx.Value, wantAmount)
		}
		if !strings.EqualFold(tx.Dest.Hex(), burn.Dest) {
			return fmt.Errorf("%w: dest %s != burn dest %s", ErrValidationMismatch, tx.Dest.Hex(), burn.Dest)
		}
	case tokenmap.KindToken:
		if tx.Value.Sign() != 0 {
			return fmt.Errorf("%w: token release must move no native value, got %s", ErrValidationMismatch, tx.Value)
		}
		if !strings.EqualFold(tx.Dest.Hex(), entry.EthAddr) {
			return fmt.Errorf("%w: dest %s != token contract %s", ErrValidationMismatch, tx.Dest.Hex(), entry.EthAddr)
		}
		recipient, amount, err := DecodeERC20Transfer(tx.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidationMismatch, err)
		}
		if amount.Cmp(wantAmount) != 0 {
			return fmt.Errorf("%w: transfer amount %s != burn amount %s", ErrValidationMismatch, amount, wantAmount)
		}
		if !strings.EqualFold(recipient.Hex(), burn.Dest) {
			return fmt.Errorf("%w: transfer recipient %s != burn dest %s", ErrValidationMismatch, recipient.Hex(), burn.Dest)
		}
	default:
		return fmt.Errorf("%w: token %s has unknown kind %q", ErrValidationMismatch, tx.Token, entry.Kind)
	}
	return nil
}

// tokenKey maps a chain-A token address to the token map's lookup key,
// where the zero address stands for the chain's native coin.
func tokenKey(token common.Address) string {
	if token == (common.Address{}) {
		return "native"
	}
	return token.Hex()
}

var (
	_ chainAReader        = (*chaina.Client)(nil)
	_ eventstream.Handler = (*SignerA)(nil)
)
