package chaina

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func TestPublicAddress_DerivesFromPrivateKey(t *testing.T) {
	addr, err := PublicAddress("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("PublicAddress: %v", err)
	}
	if addr.Hex() == "" || strings.HasPrefix(addr.Hex(), "0x00000000") {
		t.Fatalf("unexpected zero-ish address: %s", addr.Hex())
	}
}

func TestPublicAddress_RejectsMalformedKey(t *testing.T) {
	if _, err := PublicAddress("not-a-hex-key"); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestMultisigWalletABI_ParsesAndPacksSubmit(t *testing.T) {
	parsedABI, err := abi.JSON(strings.NewReader(multisigWalletABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}

	_, err = parsedABI.Pack("submitTransaction", common.Address{}, big.NewInt(0), []byte{}, big.NewInt(0), common.Address{})
	if err != nil {
		t.Fatalf("pack submitTransaction: %v", err)
	}

	_, err = parsedABI.Pack("confirmTransaction", big.NewInt(1))
	if err != nil {
		t.Fatalf("pack confirmTransaction: %v", err)
	}
}
