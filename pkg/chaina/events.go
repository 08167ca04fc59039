package chaina

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SubmissionEvent mirrors the multisig wallet's Submission(transactionId)
// log: the leader proposed a chain-A release, and signers must now
// validate it against the chain-B burn record before confirming.
type SubmissionEvent struct {
	SubmissionID *big.Int
	BlockNumber  uint64
	TxHash       common.Hash
	LogIndex     uint
}

// ExecutionEvent mirrors Execution(transactionId), emitted once a
// submission reaches quorum and the confirming signers' transactions
// have landed on-chain.
type ExecutionEvent struct {
	SubmissionID *big.Int
	BlockNumber  uint64
	TxHash       common.Hash
	LogIndex     uint
}

var (
	topicSubmission common.Hash
	topicExecution  common.Hash
)

func init() {
	parsedABI := mustParseABI(multisigWalletABI)
	topicSubmission = parsedABI.Events["Submission"].ID
	topicExecution = parsedABI.Events["Execution"].ID
}

// mustParseABI parses one of this package's embedded ABI constants.
// Called only from package init with compile-time-fixed literals, so a
// parse failure is a programming error worth panicking over.
func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chaina: parse embedded ABI: %v", err))
	}
	return parsed
}

// FetchLogs pulls raw logs for [fromBlock, toBlock] (inclusive) from
// both watched contracts — the multisig wallet's Submission/Execution
// and the vault's Lock — the same bounded-range FilterLogs idiom used
// for chain-A anchoring: callers cap the range themselves so a single
// query never exceeds a provider's block-range limit. A zero vault
// address (signer-only-on-release processes) is simply never matched.
func (c *Client) FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	addresses := []common.Address{c.multisigAddr}
	if (c.vaultAddr != common.Address{}) {
		addresses = append(addresses, c.vaultAddr)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    [][]common.Hash{{topicSubmission, topicExecution, topicLock}},
	}
	logs, err := c.rpc.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chaina: filter logs [%d,%d]: %w", fromBlock, toBlock, err)
	}
	return logs, nil
}

// DecodeSubmission parses a raw log known to carry the Submission topic.
func DecodeSubmission(log types.Log) (SubmissionEvent, bool) {
	if len(log.Topics) == 0 || log.Topics[0] != topicSubmission {
		return SubmissionEvent{}, false
	}
	return SubmissionEvent{
		SubmissionID: submissionIDFromLog(log),
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash,
		LogIndex:     log.Index,
	}, true
}

// DecodeExecution parses a raw log known to carry the Execution topic.
func DecodeExecution(log types.Log) (ExecutionEvent, bool) {
	if len(log.Topics) == 0 || log.Topics[0] != topicExecution {
		return ExecutionEvent{}, false
	}
	return ExecutionEvent{
		SubmissionID: submissionIDFromLog(log),
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash,
		LogIndex:     log.Index,
	}, true
}

// submissionIDFromLog extracts the indexed transactionId, which geth
// places in Topics[1] (Topics[0] is always the event signature hash).
func submissionIDFromLog(log types.Log) *big.Int {
	if len(log.Topics) < 2 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(log.Topics[1].Bytes())
}

