package chaina

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LockEvent mirrors the vault's Lock(nonce, token, amount, destination)
// log, the chain-A trigger for the A->B lock-then-mint pipeline. Unlike
// a release, a lock requires no signature to occur on chain A: any
// depositor may lock funds, so this event is purely informational input
// to the B-side signing pipeline.
type LockEvent struct {
	Nonce       *big.Int
	Token       common.Address
	Amount      *big.Int
	Destination string // chain-B bech32-style address, passed as a UTF-8 string argument
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

var (
	topicLock   common.Hash
	vaultParsed abi.ABI
)

func init() {
	vaultParsed = mustParseABI(vaultContractABI)
	topicLock = vaultParsed.Events["Lock"].ID
}

// DecodeLock parses a raw log known to carry the vault's Lock topic.
// Non-indexed fields (token, amount, destination) are ABI-decoded from
// log.Data; the indexed nonce comes from Topics[1].
func DecodeLock(log types.Log) (LockEvent, bool) {
	if len(log.Topics) == 0 || log.Topics[0] != topicLock {
		return LockEvent{}, false
	}

	values, err := vaultParsed.Events["Lock"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil || len(values) < 3 {
		return LockEvent{}, false
	}

	return LockEvent{
		Nonce:       submissionIDFromLog(log),
		Token:       values[0].(common.Address),
		Amount:      values[1].(*big.Int),
		Destination: values[2].(string),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, true
}

// vaultContractABI is the minimal deposit-side surface: depositors call
// lock (native) or lockToken (ERC-20, after approving the vault), and
// the contract emits Lock for the bridge to observe.
const vaultContractABI = `[
  {"constant":false,"inputs":[{"name":"destination","type":"string"}],"name":"lock","outputs":[],"payable":true,"type":"function"},
  {"constant":false,"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"destination","type":"string"}],"name":"lockToken","outputs":[],"type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"nonce","type":"uint256"},{"indexed":false,"name":"token","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"destination","type":"string"}],"name":"Lock","type":"event"}
]`
