// Package chainb adapts chain B, the privacy-oriented swap chain, to the
// bridge's needs. Chain B exposes no RPC client library the way chain A
// does: reads go through viewing-key-gated contract queries and writes
// go through a keyring-holding CLI binary, so every operation here is an
// os/exec subprocess call rather than a network client method.
package chainb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CLI wraps the external keyring/query tool (e.g. secretcli) used to
// read swap records and to sign and broadcast chain-B transactions. The
// bridge never holds the chain-B signing key in process memory; it only
// knows the name under which the CLI's local keyring stores it.
type CLI struct {
	binaryPath      string
	contractAddress string
	viewingKey      string
	signerAccName   string
	timeout         time.Duration
	workDir         string
	logger          *log.Logger
}

// Option configures a CLI.
type Option func(*CLI)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *CLI) { c.logger = logger }
}

// WithTimeout overrides the default per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *CLI) { c.timeout = d }
}

// WithWorkDir overrides the directory used for temporary unsigned/signed
// transaction files.
func WithWorkDir(dir string) Option {
	return func(c *CLI) { c.workDir = dir }
}

// New returns a CLI bound to one chain-B contract and viewing key.
// signerAccName names a key already present in the CLI's local keyring;
// the bridge process never sees the chain-B private key material.
func New(binaryPath, contractAddress, viewingKey, signerAccName string, opts ...Option) *CLI {
	c := &CLI{
		binaryPath:      binaryPath,
		contractAddress: contractAddress,
		viewingKey:      viewingKey,
		signerAccName:   signerAccName,
		timeout:         30 * time.Second,
		workDir:         os.TempDir(),
		logger:          log.New(log.Writer(), "[ChainB] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run executes the CLI with args and returns stdout, mapping a
// non-zero exit to an error carrying stderr (the governance-proof
// adapter's exec.CommandContext + ExitError pattern).
func (c *CLI) run(ctx context.Context, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Printf("exec: %s %s", c.binaryPath, strings.Join(redactArgs(args), " "))

	cmd := exec.CommandContext(cmdCtx, c.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("chainb: %s exited %d: %s", filepath.Base(c.binaryPath), exitErr.ExitCode(), stderr.String())
		}
		return nil, fmt.Errorf("chainb: run %s: %w", filepath.Base(c.binaryPath), err)
	}
	return stdout.Bytes(), nil
}

// redactArgs hides the viewing key from logs; it is the one secret that
// ever crosses this boundary as a CLI argument.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := range out {
		if i > 0 && out[i-1] == "--viewing-key" {
			out[i] = "<redacted>"
		}
	}
	return out
}

// tempFile writes contents to a new file under the CLI's work dir and
// returns its path; callers are responsible for removing it.
func (c *CLI) tempFile(prefix, contents string) (string, error) {
	f, err := os.CreateTemp(c.workDir, prefix+"-*")
	if err != nil {
		return "", fmt.Errorf("chainb: create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("chainb: write temp file: %w", err)
	}
	return f.Name(), nil
}

// SwapRecord is the parsed result of a chain-B swap query: the amount
// and destination chain B recorded for a mint.
type SwapRecord struct {
	Amount      string `json:"amount"`
	Destination string `json:"destination_b64"`
}

// QuerySwap looks up the chain-B swap record for (nonce, token address),
// decrypted via the configured viewing key. LeaderB uses it to confirm
// that a broadcast mint landed on chain B.
func (c *CLI) QuerySwap(ctx context.Context, nonce uint64, tokenAddr string) (SwapRecord, error) {
	out, err := c.run(ctx, "query", "compute", "query",
		c.contractAddress,
		fmt.Sprintf(`{"swap":{"nonce":%d,"token":%q}}`, nonce, tokenAddr),
		"--viewing-key", c.viewingKey,
	)
	if err != nil {
		return SwapRecord{}, fmt.Errorf("chainb: query swap nonce=%d token=%s: %w", nonce, tokenAddr, err)
	}
	var rec SwapRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		return SwapRecord{}, fmt.Errorf("chainb: parse swap record: %w", err)
	}
	return rec, nil
}

// BurnRecord is a pending burn observed on chain B, the trigger for the
// B->A release pipeline.
type BurnRecord struct {
	Nonce     uint64 `json:"nonce"`
	Dest      string `json:"dest"`
	Amount    string `json:"amount"`
	TokenAddr string `json:"token_addr"`
}

// ErrNotFound is returned by QueryBurnByNonce when there is no burn at
// exactly that nonce. It signals "not observed yet", distinct from a
// hard query failure, so a poller
// can distinguish "wait and retry" from "give up and alert".
var ErrNotFound = fmt.Errorf("chainb: burn not found")

// QueryBurnByNonce fetches the burn record at nonce, or ErrNotFound if
// chain B has not recorded a burn at that nonce yet.
func (c *CLI) QueryBurnByNonce(ctx context.Context, nonce uint64) (BurnRecord, error) {
	out, err := c.run(ctx, "query", "compute", "query",
		c.contractAddress,
		fmt.Sprintf(`{"burn":{"nonce":%d}}`, nonce),
		"--viewing-key", c.viewingKey,
	)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return BurnRecord{}, ErrNotFound
		}
		return BurnRecord{}, fmt.Errorf("chainb: query burn nonce=%d: %w", nonce, err)
	}
	var rec BurnRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		return BurnRecord{}, fmt.Errorf("chainb: parse burn record: %w", err)
	}
	return rec, nil
}

// MultisignTx combines an unsigned chain-B transaction with M detached
// signature documents into one signed transaction, by shelling out to
// the keyring CLI's multisign subcommand. Mirrors the temp-file-per-
// signature handoff used to avoid passing key material on argv.
func (c *CLI) MultisignTx(ctx context.Context, unsignedTx string, signatures []string) (string, error) {
	unsignedPath, err := c.tempFile("unsigned-tx", unsignedTx)
	if err != nil {
		return "", err
	}
	defer os.Remove(unsignedPath)

	sigPaths := make([]string, 0, len(signatures))
	defer func() {
		for _, p := range sigPaths {
			os.Remove(p)
		}
	}()
	for i, sig := range signatures {
		p, err := c.tempFile(fmt.Sprintf("sig-%d", i), sig)
		if err != nil {
			return "", err
		}
		sigPaths = append(sigPaths, p)
	}

	args := append([]string{"tx", "multisign", unsignedPath, c.signerAccName}, sigPaths...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("chainb: multisign: %w", err)
	}
	return string(out), nil
}

// Broadcast submits a signed transaction to chain B. Costs chain-B gas;
// callers must only invoke this once quorum has been reached.
func (c *CLI) Broadcast(ctx context.Context, signedTx string) (string, error) {
	path, err := c.tempFile("signed-tx", signedTx)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	out, err := c.run(ctx, "tx", "broadcast", path)
	if err != nil {
		return "", fmt.Errorf("chainb: broadcast: %w", err)
	}
	return string(out), nil
}

// Health runs a cheap no-state-mutating query against the CLI binary,
// used by the readiness endpoint to distinguish "chain B unreachable"
// from "bridge process unhealthy".
func (c *CLI) Health(ctx context.Context) error {
	_, err := c.run(ctx, "status")
	if err != nil {
		return fmt.Errorf("chainb: health check: %w", err)
	}
	return nil
}

// SignSubmission produces this signer's detached signature over an
// unsigned chain-B mint transaction, used by SignerB before handing
// the signature to the leader for aggregation.
func (c *CLI) SignSubmission(ctx context.Context, unsignedTx string) (string, error) {
	path, err := c.tempFile("unsigned-tx", unsignedTx)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	out, err := c.run(ctx, "tx", "sign", path, "--from", c.signerAccName, "--multisig", c.signerAccName)
	if err != nil {
		return "", fmt.Errorf("chainb: sign submission: %w", err)
	}
	return string(out), nil
}
