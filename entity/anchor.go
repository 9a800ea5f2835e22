package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/observer"
)

// ErrStaleAnchor is returned when a save would not strictly increase the
// anchored block number. Anchoring is strictly monotonic; equal heights are
// rejected too.
var ErrStaleAnchor = errors.New("anchored block number did not increase")

// Anchor is the per-anchor-contract checkpoint, keyed by the anchor's
// global address (chain id + contract address).
type Anchor struct {
	AnchorGA                string     `db:"anchor_ga"`
	LastAnchoredBlockNumber uint64     `db:"last_anchored_block_number"`
	CreatedAt               *time.Time `db:"created_at"`
	UpdatedAt               *time.Time `db:"updated_at"`
}

func AnchorGlobalAddress(chainID string, anchorAddress common.Address) string {
	return fmt.Sprintf("%s:%s", chainID, anchorAddress.Hex())
}

type AnchorsRepo interface {
	// Save rejects the whole write with ErrStaleAnchor unless the new block
	// number is strictly greater than the stored one.
	Save(ctx context.Context, anchor *Anchor) (*Anchor, error)
	GetByGlobalAddress(ctx context.Context, anchorGA string) (*Anchor, error)

	Attach(o observer.Observer[*Anchor]) error
	Detach(o observer.Observer[*Anchor])
	Notify(ctx context.Context) error
}
