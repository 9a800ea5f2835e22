// Package seed bootstraps the chain and gateway rows a facilitator pair
// needs before any event arrives. Seeding is idempotent, saves merge into
// rows left by previous runs without touching their watermarks.
package seed

import (
	"context"
	"fmt"

	"github.com/openst/facilitator/config"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/repository"
)

func SeedFacilitator(ctx context.Context, repo *repository.Repo, fac *config.FacilitatorConfig) error {
	_, err := repo.AuxiliaryChains.Save(ctx, &entity.AuxiliaryChain{
		ChainID:          fac.AuxChainID,
		OriginChainName:  fac.Origin.ChainName,
		GatewayAddress:   fac.Origin.GatewayAddress,
		CoGatewayAddress: fac.Auxiliary.GatewayAddress,
		AnchorAddress:    fac.Origin.AnchorAddress,
		CoAnchorAddress:  fac.Auxiliary.AnchorAddress,
	})
	if err != nil {
		return fmt.Errorf("can't seed auxiliary chain %s: %w", fac.AuxChainID, err)
	}

	_, err = repo.Gateways.Save(ctx, &entity.Gateway{
		GatewayAddress:       fac.Origin.GatewayAddress,
		ChainID:              fac.Origin.Chain.ChainID,
		Type:                 entity.GatewayTypeOrigin,
		RemoteGatewayAddress: fac.Auxiliary.GatewayAddress,
		TokenAddress:         fac.Origin.TokenAddress,
		AnchorAddress:        fac.Origin.AnchorAddress,
		Activated:            true,
	})
	if err != nil {
		return fmt.Errorf("can't seed origin gateway %s: %w", fac.Origin.GatewayAddress, err)
	}

	_, err = repo.Gateways.Save(ctx, &entity.Gateway{
		GatewayAddress:       fac.Auxiliary.GatewayAddress,
		ChainID:              fac.Auxiliary.Chain.ChainID,
		Type:                 entity.GatewayTypeAuxiliary,
		RemoteGatewayAddress: fac.Origin.GatewayAddress,
		TokenAddress:         fac.Auxiliary.TokenAddress,
		AnchorAddress:        fac.Auxiliary.AnchorAddress,
		Activated:            true,
	})
	if err != nil {
		return fmt.Errorf("can't seed auxiliary gateway %s: %w", fac.Auxiliary.GatewayAddress, err)
	}
	return nil
}
