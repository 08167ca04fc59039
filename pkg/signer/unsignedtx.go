// Package signer implements the two validation/signing roles every
// federation member runs: SignerA watches chain-A release proposals and
// confirms them only after cross-checking chain B; SignerB watches
// chain-A deposits and produces its own signature over the chain-B mint
// transaction they imply.
package signer

import (
	"encoding/json"
	"fmt"

	"github.com/certen-labs/fedbridge/pkg/store"
)

// unsignedMintTx is the canonical, deterministic encoding of "what
// chain-B transaction should mint for this swap" — every signer must
// derive byte-identical output from the same swap record, or their
// signatures can never be aggregated into one valid multisig.
type unsignedMintTx struct {
	Nonce       int64  `json:"nonce"`
	TokenKey    string `json:"token_key"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

// BuildUnsignedMintTx renders the canonical unsigned chain-B transaction
// for an EthToScrt swap. JSON field order is fixed by the struct
// definition above, so re-marshaling always reproduces the same bytes.
func BuildUnsignedMintTx(swap *store.Swap) (string, error) {
	tx := unsignedMintTx{
		Nonce:       swap.Nonce,
		TokenKey:    swap.TokenKey,
		Amount:      swap.Amount,
		Destination: swap.Destination,
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("signer: build unsigned mint tx: %w", err)
	}
	return string(raw), nil
}
