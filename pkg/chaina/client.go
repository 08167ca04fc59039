// Package chaina adapts chain A (the EVM chain hosting the multisig
// wallet contract) to the bridge's needs: reading the Submission /
// Execution event log, calling confirmTransaction, and broadcasting the
// leader's submitTransaction release proposals.
package chaina

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a thin adapter over ethclient plus the multisig wallet ABI.
// It holds no signer-specific state beyond the chain ID; callers pass
// private keys explicitly to Confirm/Submit so one Client can be shared
// across signer identities in tests.
type Client struct {
	rpc          *ethclient.Client
	chainID      *big.Int
	multisigAddr common.Address
	multisigABI  abi.ABI
	vaultAddr    common.Address
	vaultABI     abi.ABI
}

// New dials the chain-A RPC endpoint and binds both contracts this
// bridge reads and writes: the multisig wallet that gates B->A releases,
// and the vault that accepts unilateral A->B deposits. vaultAddr may be
// the zero address for a signer process that only runs the B->A side.
func New(rpcURL string, chainID int64, multisigAddr, vaultAddr string) (*Client, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chaina: dial %s: %w", rpcURL, err)
	}

	parsedMultisigABI, err := abi.JSON(strings.NewReader(multisigWalletABI))
	if err != nil {
		return nil, fmt.Errorf("chaina: parse multisig ABI: %w", err)
	}
	parsedVaultABI, err := abi.JSON(strings.NewReader(vaultContractABI))
	if err != nil {
		return nil, fmt.Errorf("chaina: parse vault ABI: %w", err)
	}

	return &Client{
		rpc:          rpc,
		chainID:      big.NewInt(chainID),
		multisigAddr: common.HexToAddress(multisigAddr),
		multisigABI:  parsedMultisigABI,
		vaultAddr:    common.HexToAddress(vaultAddr),
		vaultABI:     parsedVaultABI,
	}, nil
}

// LatestBlock returns the current chain-A head, used by EventStream to
// compute the confirmable boundary (head - k).
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	return c.rpc.BlockNumber(ctx)
}

// Health reports whether the RPC endpoint is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("chaina: health check: %w", err)
	}
	return nil
}

// TransactionData mirrors the multisig wallet's transactions(id) return
// value (spec §6). Nonce and Token are bridge-specific fields the
// contract stores alongside the generic dest/value/data/executed a
// plain multisig would have, so a signer can recover which chain-B burn
// a release corresponds to without having to parse it back out of data
// — data itself carries only the payload a signer must validate: empty
// for a native-coin release, an ERC-20 transfer(recipient, amount) call
// for a token release.
type TransactionData struct {
	Dest     common.Address
	Value    *big.Int
	Data     []byte
	Executed bool
	Nonce    *big.Int
	Token    common.Address
}

// Transactions reads the pending/executed submission by id.
func (c *Client) Transactions(ctx context.Context, submissionID *big.Int) (TransactionData, error) {
	out, err := c.call(ctx, "transactions", submissionID)
	if err != nil {
		return TransactionData{}, fmt.Errorf("chaina: transactions(%s): %w", submissionID, err)
	}
	return TransactionData{
		Dest:     *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Value:    *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Data:     *abi.ConvertType(out[2], new([]byte)).(*[]byte),
		Executed: *abi.ConvertType(out[3], new(bool)).(*bool),
		Nonce:    *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		Token:    *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
	}, nil
}

// Confirmations reports whether signer has already confirmed submissionID.
func (c *Client) Confirmations(ctx context.Context, submissionID *big.Int, signer common.Address) (bool, error) {
	out, err := c.call(ctx, "confirmations", submissionID, signer)
	if err != nil {
		return false, fmt.Errorf("chaina: confirmations(%s,%s): %w", submissionID, signer, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	data, err := c.multisigABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.multisigAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return c.multisigABI.Unpack(method, result)
}

// ConfirmTransaction signs and broadcasts confirmTransaction(submissionID)
// with the signer's private key, returning once the transaction has been
// accepted by the mempool (not mined — callers that need finality poll
// Transactions().Executed separately, matching spec §4.4's rule that the
// checkpoint advances on call-return, not on-chain confirmation).
func (c *Client) ConfirmTransaction(ctx context.Context, privateKeyHex string, submissionID *big.Int) (common.Hash, error) {
	return c.sendSigned(ctx, privateKeyHex, "confirmTransaction", submissionID)
}

// SubmitTransaction signs and broadcasts submitTransaction(dest, value,
// data, nonce, token), used by LeaderA to propose a B->A release. nonce
// and token are the chain-B burn's nonce and resolved chain-A token
// address, stored by the contract so a signer can recover them from
// Transactions() without decoding them back out of data.
func (c *Client) SubmitTransaction(ctx context.Context, privateKeyHex string, dest common.Address, value *big.Int, data []byte, nonce uint64, token common.Address) (common.Hash, error) {
	return c.sendSigned(ctx, privateKeyHex, "submitTransaction", dest, value, data, new(big.Int).SetUint64(nonce), token)
}

func (c *Client) sendSigned(ctx context.Context, privateKeyHex, method string, params ...interface{}) (common.Hash, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: parse private key: %w", err)
	}
	from := crypto.PubkeyToAddress(privateKey.Public().(*ecdsa.PublicKey))

	callData, err := c.multisigABI.Pack(method, params...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: pack %s: %w", method, err)
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: nonce for %s: %w", from, err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: gas price: %w", err)
	}
	gasLimit, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.multisigAddr, Data: callData})
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: estimate gas for %s: %w", method, err)
	}

	tx := types.NewTransaction(nonce, c.multisigAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chaina: sign %s: %w", method, err)
	}
	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("chaina: send %s: %w", method, err)
	}
	return signedTx.Hash(), nil
}

// PublicAddress derives the chain-A address for a private key; cmd/bridge
// uses it as SignerA's own address when checking for prior confirmations.
func PublicAddress(privateKeyHex string) (common.Address, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("chaina: parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(privateKey.Public().(*ecdsa.PublicKey)), nil
}

// multisigWalletABI is the minimal surface spec §6 requires: submission,
// confirmation, read-back of pending transactions, and the Submission /
// Execution events consumed by EventStream.
const multisigWalletABI = `[
  {"constant":false,"inputs":[{"name":"destination","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"nonce","type":"uint256"},{"name":"token","type":"address"}],"name":"submitTransaction","outputs":[{"name":"transactionId","type":"uint256"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"transactionId","type":"uint256"}],"name":"confirmTransaction","outputs":[],"type":"function"},
  {"constant":true,"inputs":[{"name":"transactionId","type":"uint256"},{"name":"signer","type":"address"}],"name":"confirmations","outputs":[{"name":"","type":"bool"}],"type":"function"},
  {"constant":true,"inputs":[{"name":"transactionId","type":"uint256"}],"name":"transactions","outputs":[{"name":"destination","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"executed","type":"bool"},{"name":"nonce","type":"uint256"},{"name":"token","type":"address"}],"type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"transactionId","type":"uint256"}],"name":"Submission","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"transactionId","type":"uint256"}],"name":"Execution","type":"event"}
]`
