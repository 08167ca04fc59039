package chainb

import "context"

// Reader is the subset of chain-B access a signer's validation firewall
// needs: looking up the swap or burn record a proposed chain-A
// transaction claims to correspond to. Satisfied by *CLI in production
// and by *fake.Reader in tests.
type Reader interface {
	QuerySwap(ctx context.Context, nonce uint64, tokenAddr string) (SwapRecord, error)
	QueryBurnByNonce(ctx context.Context, nonce uint64) (BurnRecord, error)
}

// Signer is the subset of chain-B access SignerB needs to produce its
// signature over a chain-B mint transaction.
type Signer interface {
	SignSubmission(ctx context.Context, unsignedTx string) (string, error)
}

// Broadcaster is the subset of chain-B access the A->B leader needs to
// aggregate signer signatures and submit the signed mint transaction.
type Broadcaster interface {
	MultisignTx(ctx context.Context, unsignedTx string, signatures []string) (string, error)
	Broadcast(ctx context.Context, signedTx string) (string, error)
}

var (
	_ Reader      = (*CLI)(nil)
	_ Signer      = (*CLI)(nil)
	_ Broadcaster = (*CLI)(nil)
)
