package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Signature is one signer's detached signature over a swap's unsigned
// transaction, recorded so the leader can assemble quorum without
// re-requesting signatures that already arrived.
type Signature struct {
	SwapID    uuid.UUID
	Signer    string
	SignedTx  string
	CreatedAt time.Time
}

// SignatureStore persists per-signer confirmations with a uniqueness
// guarantee on (swap_id, signer): a signer can confirm a swap at most
// once.
type SignatureStore struct {
	db *DB
}

// NewSignatureStore returns a SignatureStore backed by db.
func NewSignatureStore(db *DB) *SignatureStore {
	return &SignatureStore{db: db}
}

// Insert records signer's signature over swapID's unsigned transaction.
// ErrDuplicateSignature is returned, not treated as fatal, when the
// signer has already signed — the poll loop that calls Insert runs
// repeatedly and will see the same swap again before its status moves
// on.
func (s *SignatureStore) Insert(ctx context.Context, swapID uuid.UUID, signer, signedTx string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO signatures (swap_id, signer, signed_tx, created_at) VALUES ($1, $2, $3, $4)`,
		swapID, signer, signedTx, time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSignature
		}
		return fmt.Errorf("store: insert signature: %w", err)
	}
	return nil
}

// List returns every signature recorded for swapID, in insertion order.
func (s *SignatureStore) List(ctx context.Context, swapID uuid.UUID) ([]Signature, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT swap_id, signer, signed_tx, created_at FROM signatures
		WHERE swap_id = $1 ORDER BY created_at ASC`, swapID)
	if err != nil {
		return nil, fmt.Errorf("store: list signatures: %w", err)
	}
	defer rows.Close()

	var out []Signature
	for rows.Next() {
		var sig Signature
		if err := rows.Scan(&sig.SwapID, &sig.Signer, &sig.SignedTx, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan signature: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Count returns how many distinct signers have confirmed swapID, the
// value compared against the federation's signature threshold.
func (s *SignatureStore) Count(ctx context.Context, swapID uuid.UUID) (int, error) {
	var count int
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signatures WHERE swap_id = $1`, swapID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count signatures: %w", err)
	}
	return count, nil
}

// HasSigned reports whether signer already confirmed swapID — the
// idempotency check a signer runs before doing validation work again.
func (s *SignatureStore) HasSigned(ctx context.Context, swapID uuid.UUID, signer string) (bool, error) {
	var exists bool
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM signatures WHERE swap_id = $1 AND signer = $2)`, swapID, signer).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check existing signature: %w", err)
	}
	return exists, nil
}
