package chaina

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeSubmission_ExtractsTransactionID(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{topicSubmission, common.BigToHash(big.NewInt(42))},
		TxHash: common.HexToHash("0xabc"),
	}

	event, ok := DecodeSubmission(log)
	if !ok {
		t.Fatal("expected DecodeSubmission to match")
	}
	if event.SubmissionID.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected submission id 42, got %s", event.SubmissionID)
	}
}

func TestDecodeSubmission_RejectsWrongTopic(t *testing.T) {
	log := types.Log{Topics: []common.Hash{topicExecution, common.BigToHash(big.NewInt(1))}}
	if _, ok := DecodeSubmission(log); ok {
		t.Fatal("expected DecodeSubmission to reject an Execution log")
	}
}

func TestDecodeExecution_ExtractsTransactionID(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{topicExecution, common.BigToHash(big.NewInt(7))},
	}
	event, ok := DecodeExecution(log)
	if !ok {
		t.Fatal("expected DecodeExecution to match")
	}
	if event.SubmissionID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected submission id 7, got %s", event.SubmissionID)
	}
}
