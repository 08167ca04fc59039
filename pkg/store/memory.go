package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySwapStore is an in-memory SwapStore used in tests so signer and
// leader logic can be exercised without a live Postgres instance.
type MemorySwapStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Swap
	byKey map[string]uuid.UUID // direction:nonce -> id
}

// NewMemorySwapStore returns an empty MemorySwapStore.
func NewMemorySwapStore() *MemorySwapStore {
	return &MemorySwapStore{
		byID:  make(map[uuid.UUID]*Swap),
		byKey: make(map[string]uuid.UUID),
	}
}

func swapMemKey(direction Direction, nonce int64) string {
	return fmt.Sprintf("%s:%d", direction, nonce)
}

// Create mirrors SwapStore.Create's uniqueness and error semantics.
func (m *MemorySwapStore) Create(_ context.Context, in NewSwap) (*Swap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := swapMemKey(in.Direction, in.Nonce)
	if _, exists := m.byKey[key]; exists {
		return nil, ErrDuplicateSwap
	}

	now := time.Now()
	swap := &Swap{
		ID:           uuid.New(),
		Direction:    in.Direction,
		Nonce:        in.Nonce,
		SubmissionID: in.SubmissionID,
		SourceTxHash: in.SourceTxHash,
		TokenKey:     in.TokenKey,
		Amount:       in.Amount,
		Destination:  in.Destination,
		Status:       StatusObserved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[swap.ID] = swap
	m.byKey[key] = swap.ID
	return copySwap(swap), nil
}

// Get mirrors SwapStore.Get.
func (m *MemorySwapStore) Get(_ context.Context, id uuid.UUID) (*Swap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	swap, ok := m.byID[id]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return copySwap(swap), nil
}

// GetByNonce mirrors SwapStore.GetByNonce.
func (m *MemorySwapStore) GetByNonce(_ context.Context, direction Direction, nonce int64) (*Swap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[swapMemKey(direction, nonce)]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return copySwap(m.byID[id]), nil
}

// GetBySubmissionID mirrors SwapStore.GetBySubmissionID.
func (m *MemorySwapStore) GetBySubmissionID(_ context.Context, submissionID string) (*Swap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, swap := range m.byID {
		if swap.SubmissionID == submissionID {
			return copySwap(swap), nil
		}
	}
	return nil, ErrSwapNotFound
}

// ListByStatus mirrors SwapStore.ListByStatus.
func (m *MemorySwapStore) ListByStatus(_ context.Context, direction Direction, status Status) ([]*Swap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Swap
	for _, swap := range m.byID {
		if swap.Direction == direction && swap.Status == status {
			out = append(out, copySwap(swap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateStatus mirrors SwapStore.UpdateStatus's compare-and-set and DAG
// enforcement.
func (m *MemorySwapStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, failureReason string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	swap, ok := m.byID[id]
	if !ok {
		return ErrSwapNotFound
	}
	if swap.Status != from {
		return fmt.Errorf("%w: swap %s is not in status %s", ErrInvalidTransition, id, from)
	}
	swap.Status = to
	swap.FailureReason = failureReason
	swap.UpdatedAt = time.Now()
	return nil
}

// SetSubmissionID mirrors SwapStore.SetSubmissionID.
func (m *MemorySwapStore) SetSubmissionID(_ context.Context, id uuid.UUID, submissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	swap, ok := m.byID[id]
	if !ok {
		return ErrSwapNotFound
	}
	swap.SubmissionID = submissionID
	swap.UpdatedAt = time.Now()
	return nil
}

func copySwap(s *Swap) *Swap {
	cp := *s
	return &cp
}

// MemorySignatureStore is an in-memory SignatureStore.
type MemorySignatureStore struct {
	mu   sync.RWMutex
	sigs map[uuid.UUID][]Signature
}

// NewMemorySignatureStore returns an empty MemorySignatureStore.
func NewMemorySignatureStore() *MemorySignatureStore {
	return &MemorySignatureStore{sigs: make(map[uuid.UUID][]Signature)}
}

// Insert mirrors SignatureStore.Insert.
func (m *MemorySignatureStore) Insert(_ context.Context, swapID uuid.UUID, signer, signedTx string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sig := range m.sigs[swapID] {
		if sig.Signer == signer {
			return ErrDuplicateSignature
		}
	}
	m.sigs[swapID] = append(m.sigs[swapID], Signature{SwapID: swapID, Signer: signer, SignedTx: signedTx, CreatedAt: time.Now()})
	return nil
}

// List mirrors SignatureStore.List.
func (m *MemorySignatureStore) List(_ context.Context, swapID uuid.UUID) ([]Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Signature, len(m.sigs[swapID]))
	copy(out, m.sigs[swapID])
	return out, nil
}

// Count mirrors SignatureStore.Count.
func (m *MemorySignatureStore) Count(_ context.Context, swapID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sigs[swapID]), nil
}

// HasSigned mirrors SignatureStore.HasSigned.
func (m *MemorySignatureStore) HasSigned(_ context.Context, swapID uuid.UUID, signer string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sig := range m.sigs[swapID] {
		if sig.Signer == signer {
			return true, nil
		}
	}
	return false, nil
}

// MemoryCheckpoint is an in-memory eventstream.Checkpoint.
type MemoryCheckpoint struct {
	mu    sync.RWMutex
	block uint64
	set   bool
}

// Load mirrors CheckpointStore.Load.
func (m *MemoryCheckpoint) Load(context.Context) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.block, m.set, nil
}

// Save mirrors CheckpointStore.Save.
func (m *MemoryCheckpoint) Save(_ context.Context, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = blockNumber
	m.set = true
	return nil
}
