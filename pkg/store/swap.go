package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction identifies which pipeline a swap belongs to. The two
// directions never share a nonce sequence, so (direction, nonce) is the
// natural unique key, not nonce alone.
type Direction string

const (
	EthToScrt Direction = "eth_to_scrt"
	ScrtToEth Direction = "scrt_to_eth"
)

// Status is a node in the swap lifecycle DAG: OBSERVED -> SIGNED ->
// SUBMITTED -> CONFIRMED, with FAILED reachable from any non-terminal
// state. There is no path back to an earlier state.
type Status string

const (
	StatusObserved  Status = "observed"
	StatusSigned    Status = "signed"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// validTransitions enumerates the DAG's edges; anything absent here is
// rejected by UpdateStatus.
var validTransitions = map[Status][]Status{
	StatusObserved:  {StatusSigned, StatusFailed},
	StatusSigned:    {StatusSubmitted, StatusFailed},
	StatusSubmitted: {StatusConfirmed, StatusFailed},
	StatusConfirmed: {},
	StatusFailed:    {},
}

// CanTransition reports whether from -> to is an edge in the status DAG.
func CanTransition(from, to Status) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Swap is one cross-chain transfer record, observed on its source chain
// and tracked through to its destination-chain confirmation.
type Swap struct {
	ID            uuid.UUID
	Direction     Direction
	Nonce         int64
	SubmissionID  string // chain-A submission id, empty for scrt_to_eth until assembled
	SourceTxHash  string
	TokenKey      string // token-map lookup key on the source chain
	Amount        string // decimal string, arbitrary precision preserved
	Destination   string
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSwap describes the fields needed to observe a brand-new swap.
type NewSwap struct {
	Direction    Direction
	Nonce        int64
	SubmissionID string
	SourceTxHash string
	TokenKey     string
	Amount       string
	Destination  string
}

// SwapStore persists Swap records with uniqueness and status-DAG
// enforcement.
type SwapStore struct {
	db *DB
}

// NewSwapStore returns a SwapStore backed by db.
func NewSwapStore(db *DB) *SwapStore {
	return &SwapStore{db: db}
}

// Create inserts a new swap in StatusObserved. ErrDuplicateSwap is
// returned if (direction, nonce) already exists — this is the expected
// outcome when two independent observers race on the same event, not a
// programming error, so callers should treat it as "already recorded"
// rather than retry.
func (s *SwapStore) Create(ctx context.Context, in NewSwap) (*Swap, error) {
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

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO swaps (id, direction, nonce, submission_id, source_tx_hash, token_key, amount, destination, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		swap.ID, swap.Direction, swap.Nonce, swap.SubmissionID, swap.SourceTxHash,
		swap.TokenKey, swap.Amount, swap.Destination, swap.Status, swap.CreatedAt, swap.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSwap
		}
		return nil, fmt.Errorf("store: create swap: %w", err)
	}
	return swap, nil
}

// Get retrieves a swap by id.
func (s *SwapStore) Get(ctx context.Context, id uuid.UUID) (*Swap, error) {
	return s.scanOne(s.db.Conn().QueryRowContext(ctx, `
		SELECT id, direction, nonce, COALESCE(submission_id, ''), source_tx_hash, token_key, amount, destination, status, COALESCE(failure_reason, ''), created_at, updated_at
		FROM swaps WHERE id = $1`, id))
}

// GetByNonce retrieves a swap by its (direction, nonce) unique key.
func (s *SwapStore) GetByNonce(ctx context.Context, direction Direction, nonce int64) (*Swap, error) {
	return s.scanOne(s.db.Conn().QueryRowContext(ctx, `
		SELECT id, direction, nonce, COALESCE(submission_id, ''), source_tx_hash, token_key, amount, destination, status, COALESCE(failure_reason, ''), created_at, updated_at
		FROM swaps WHERE direction = $1 AND nonce = $2`, direction, nonce))
}

// GetBySubmissionID retrieves the swap a chain-A submission id was
// assigned to, the lookup LeaderA needs when an Execution event arrives
// bearing only that id.
func (s *SwapStore) GetBySubmissionID(ctx context.Context, submissionID string) (*Swap, error) {
	return s.scanOne(s.db.Conn().QueryRowContext(ctx, `
		SELECT id, direction, nonce, COALESCE(submission_id, ''), source_tx_hash, token_key, amount, destination, status, COALESCE(failure_reason, ''), created_at, updated_at
		FROM swaps WHERE submission_id = $1`, submissionID))
}

// ListByStatus returns every swap in the given status, oldest first —
// the query pattern every poller (signer, leader) uses to find work.
func (s *SwapStore) ListByStatus(ctx context.Context, direction Direction, status Status) ([]*Swap, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, direction, nonce, COALESCE(submission_id, ''), source_tx_hash, token_key, amount, destination, status, COALESCE(failure_reason, ''), created_at, updated_at
		FROM swaps WHERE direction = $1 AND status = $2 ORDER BY created_at ASC`, direction, status)
	if err != nil {
		return nil, fmt.Errorf("store: list swaps by status: %w", err)
	}
	defer rows.Close()

	var out []*Swap
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan swap: %w", err)
		}
		out = append(out, swap)
	}
	return out, rows.Err()
}

// UpdateStatus performs a compare-and-set transition: it only succeeds
// if the row's current status is exactly from, enforcing the DAG edge
// from -> to at the database layer so two racing updaters can't both
// believe they made the transition.
func (s *SwapStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, failureReason string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	result, err := s.db.Conn().ExecContext(ctx, `
		UPDATE swaps SET status = $1, failure_reason = NULLIF($2, ''), updated_at = $3
		WHERE id = $4 AND status = $5`,
		to, failureReason, time.Now(), id, from,
	)
	if err != nil {
		return fmt.Errorf("store: update swap status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: swap %s is not in status %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// SetSubmissionID records the chain-A submission id once it becomes
// known, used by the scrt_to_eth pipeline after the leader broadcasts.
func (s *SwapStore) SetSubmissionID(ctx context.Context, id uuid.UUID, submissionID string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE swaps SET submission_id = $1, updated_at = $2 WHERE id = $3`,
		submissionID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("store: set submission id: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SwapStore) scanOne(row *sql.Row) (*Swap, error) {
	swap, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan swap: %w", err)
	}
	return swap, nil
}

func scanSwap(row rowScanner) (*Swap, error) {
	swap := &Swap{}
	err := row.Scan(
		&swap.ID, &swap.Direction, &swap.Nonce, &swap.SubmissionID, &swap.SourceTxHash,
		&swap.TokenKey, &swap.Amount, &swap.Destination, &swap.Status, &swap.FailureReason,
		&swap.CreatedAt, &swap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return swap, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "unique constraint") || strings.Contains(err.Error(), "duplicate key"))
}
