// Package fake provides an in-process stand-in for chain B so signer and
// leader logic can be tested without shelling out to a CLI keyring tool.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/certen-labs/fedbridge/pkg/chainb"
)

// Reader is an in-memory chainb.Reader. Safe for concurrent use.
type Reader struct {
	mu    sync.RWMutex
	swaps map[string]chainb.SwapRecord
	burns map[uint64]chainb.BurnRecord
}

// NewReader returns an empty fake reader.
func NewReader() *Reader {
	return &Reader{
		swaps: make(map[string]chainb.SwapRecord),
		burns: make(map[uint64]chainb.BurnRecord),
	}
}

func swapKey(nonce uint64, tokenAddr string) string {
	return fmt.Sprintf("%d:%s", nonce, tokenAddr)
}

// PutSwap registers the swap record that QuerySwap(nonce, tokenAddr)
// should return.
func (r *Reader) PutSwap(nonce uint64, tokenAddr string, rec chainb.SwapRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps[swapKey(nonce, tokenAddr)] = rec
}

// PutBurn registers the burn record that QueryBurnByNonce(nonce) should
// return.
func (r *Reader) PutBurn(nonce uint64, rec chainb.BurnRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.burns[nonce] = rec
}

// QuerySwap implements chainb.Reader.
func (r *Reader) QuerySwap(_ context.Context, nonce uint64, tokenAddr string) (chainb.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.swaps[swapKey(nonce, tokenAddr)]
	if !ok {
		return chainb.SwapRecord{}, chainb.ErrNotFound
	}
	return rec, nil
}

// QueryBurnByNonce implements chainb.Reader.
func (r *Reader) QueryBurnByNonce(_ context.Context, nonce uint64) (chainb.BurnRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.burns[nonce]
	if !ok {
		return chainb.BurnRecord{}, chainb.ErrNotFound
	}
	return rec, nil
}

// Broadcaster is an in-memory chainb.Broadcaster recording every call
// for assertions.
type Broadcaster struct {
	mu           sync.Mutex
	Multisigned  []MultisignCall
	Broadcasted  []string
	BroadcastErr error
}

// MultisignCall records one MultisignTx invocation.
type MultisignCall struct {
	UnsignedTx string
	Signatures []string
}

// MultisignTx implements chainb.Broadcaster by concatenating the
// unsigned tx with its signatures into a deterministic "signed" blob.
func (b *Broadcaster) MultisignTx(_ context.Context, unsignedTx string, signatures []string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Multisigned = append(b.Multisigned, MultisignCall{UnsignedTx: unsignedTx, Signatures: signatures})
	return fmt.Sprintf("signed(%s,%d-sigs)", unsignedTx, len(signatures)), nil
}

// Broadcast implements chainb.Broadcaster.
func (b *Broadcaster) Broadcast(_ context.Context, signedTx string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BroadcastErr != nil {
		return "", b.BroadcastErr
	}
	b.Broadcasted = append(b.Broadcasted, signedTx)
	return "txhash-" + signedTx, nil
}

// Signer is an in-memory chainb.Signer.
type Signer struct {
	mu      sync.Mutex
	Signed  []string
	SignErr error
}

// SignSubmission implements chainb.Signer.
func (s *Signer) SignSubmission(_ context.Context, unsignedTx string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SignErr != nil {
		return "", s.SignErr
	}
	s.Signed = append(s.Signed, unsignedTx)
	return "sig(" + unsignedTx + ")", nil
}

var (
	_ chainb.Reader      = (*Reader)(nil)
	_ chainb.Broadcaster = (*Broadcaster)(nil)
	_ chainb.Signer      = (*Signer)(nil)
)
