package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/observer"
)

// AuxiliaryChain is the per-auxiliary-chain relay checkpoint: the highest
// state-root heights observed on each side's anchor. Both height fields only
// ever grow; the anchor handler is their single writer and filters stale
// candidates before saving.
type AuxiliaryChain struct {
	ChainID                  string         `db:"chain_id"`
	OriginChainName          string         `db:"origin_chain_name"`
	GatewayAddress           common.Address `db:"gateway_address"`
	CoGatewayAddress         common.Address `db:"co_gateway_address"`
	AnchorAddress            common.Address `db:"anchor_address"`
	CoAnchorAddress          common.Address `db:"co_anchor_address"`
	LastOriginBlockHeight    *uint64        `db:"last_origin_block_height"`
	LastAuxiliaryBlockHeight *uint64        `db:"last_auxiliary_block_height"`
	CreatedAt                *time.Time     `db:"created_at"`
	UpdatedAt                *time.Time     `db:"updated_at"`
}

func (c *AuxiliaryChain) Merge(update *AuxiliaryChain) *AuxiliaryChain {
	merged := *c
	if update.OriginChainName != "" {
		merged.OriginChainName = update.OriginChainName
	}
	if update.GatewayAddress != (common.Address{}) {
		merged.GatewayAddress = update.GatewayAddress
	}
	if update.CoGatewayAddress != (common.Address{}) {
		merged.CoGatewayAddress = update.CoGatewayAddress
	}
	if update.AnchorAddress != (common.Address{}) {
		merged.AnchorAddress = update.AnchorAddress
	}
	if update.CoAnchorAddress != (common.Address{}) {
		merged.CoAnchorAddress = update.CoAnchorAddress
	}
	if update.LastOriginBlockHeight != nil {
		merged.LastOriginBlockHeight = update.LastOriginBlockHeight
	}
	if update.LastAuxiliaryBlockHeight != nil {
		merged.LastAuxiliaryBlockHeight = update.LastAuxiliaryBlockHeight
	}
	return &merged
}

type AuxiliaryChainsRepo interface {
	Save(ctx context.Context, chain *AuxiliaryChain) (*AuxiliaryChain, error)
	GetByChainID(ctx context.Context, chainID string) (*AuxiliaryChain, error)

	Attach(o observer.Observer[*AuxiliaryChain]) error
	Detach(o observer.Observer[*AuxiliaryChain])
	Notify(ctx context.Context) error
}
