package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openst/facilitator/observer"
)

type GatewayType string

const (
	GatewayTypeOrigin    GatewayType = "origin"
	GatewayTypeAuxiliary GatewayType = "auxiliary"
)

// Gateway holds the per-gateway-contract facts seeded at bootstrap plus the
// proving watermark maintained by the prove-gateway service.
type Gateway struct {
	GatewayAddress                     common.Address  `db:"gateway_address"`
	ChainID                            string          `db:"chain_id"`
	Type                               GatewayType     `db:"gateway_type"`
	RemoteGatewayAddress               common.Address  `db:"remote_gateway_address"`
	TokenAddress                       common.Address  `db:"token_address"`
	AnchorAddress                      common.Address  `db:"anchor_address"`
	Bounty                             decimal.Decimal `db:"bounty"`
	Activated                          bool            `db:"activated"`
	LastRemoteGatewayProvenBlockHeight *uint64         `db:"last_remote_gateway_proven_block_height"`
	CreatedAt                          *time.Time      `db:"created_at"`
	UpdatedAt                          *time.Time      `db:"updated_at"`
}

func (g *Gateway) Merge(update *Gateway) *Gateway {
	merged := *g
	if update.ChainID != "" {
		merged.ChainID = update.ChainID
	}
	if update.Type != "" {
		merged.Type = update.Type
	}
	if update.RemoteGatewayAddress != (common.Address{}) {
		merged.RemoteGatewayAddress = update.RemoteGatewayAddress
	}
	if update.TokenAddress != (common.Address{}) {
		merged.TokenAddress = update.TokenAddress
	}
	if update.AnchorAddress != (common.Address{}) {
		merged.AnchorAddress = update.AnchorAddress
	}
	if !update.Bounty.IsZero() {
		merged.Bounty = update.Bounty
	}
	if update.Activated {
		merged.Activated = true
	}
	if update.LastRemoteGatewayProvenBlockHeight != nil {
		h := *update.LastRemoteGatewayProvenBlockHeight
		if merged.LastRemoteGatewayProvenBlockHeight == nil || h > *merged.LastRemoteGatewayProvenBlockHeight {
			merged.LastRemoteGatewayProvenBlockHeight = &h
		}
	}
	return &merged
}

type GatewaysRepo interface {
	Save(ctx context.Context, gateway *Gateway) (*Gateway, error)
	GetByAddress(ctx context.Context, gatewayAddress common.Address) (*Gateway, error)

	Attach(o observer.Observer[*Gateway]) error
	Detach(o observer.Observer[*Gateway])
	Notify(ctx context.Context) error
}
