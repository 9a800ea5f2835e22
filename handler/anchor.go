package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// AnchorEventHandler folds StateRootAvailable events into the auxiliary
// chain checkpoint. A batch is reduced to its highest block height before
// touching storage, so replayed or out-of-order ranges cannot move a height
// backwards.
type AnchorEventHandler struct {
	repo       *repository.Repo
	logger     logging.Logger
	chainID    string
	auxChainID string
}

func NewAnchorEventHandler(repo *repository.Repo, logger logging.Logger, chainID, auxChainID string) *AnchorEventHandler {
	return &AnchorEventHandler{
		repo:       repo,
		logger:     logger,
		chainID:    chainID,
		auxChainID: auxChainID,
	}
}

func (h *AnchorEventHandler) HandleStateRootAvailable(ctx context.Context, events []*EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	chain, err := h.repo.AuxiliaryChains.GetByChainID(ctx, h.auxChainID)
	if err != nil {
		return fmt.Errorf("can't get auxiliary chain %s: %w", h.auxChainID, err)
	}

	// A batch may mix addresses; only records of the resolved anchor
	// contribute to the fold.
	anchorAddress := events[0].ContractAddress
	maxHeight := events[0].uint64Value("_blockHeight")
	for _, event := range events[1:] {
		if event.ContractAddress != anchorAddress {
			continue
		}
		if height := event.uint64Value("_blockHeight"); height > maxHeight {
			maxHeight = height
		}
	}

	anchorGA := entity.AnchorGlobalAddress(h.chainID, anchorAddress)
	_, err = h.repo.Anchors.Save(ctx, &entity.Anchor{
		AnchorGA:                anchorGA,
		LastAnchoredBlockNumber: maxHeight,
	})
	if errors.Is(err, entity.ErrStaleAnchor) {
		h.logger.WithField("anchor", anchorGA).
			WithField("block_height", maxHeight).
			Debug("Skipping stale anchored state root")
	} else if err != nil {
		return fmt.Errorf("can't save anchor %s: %w", anchorGA, err)
	}

	update := &entity.AuxiliaryChain{ChainID: chain.ChainID}
	var current *uint64
	switch anchorAddress {
	case chain.CoAnchorAddress:
		current = chain.LastOriginBlockHeight
		update.LastOriginBlockHeight = &maxHeight
	case chain.AnchorAddress:
		current = chain.LastAuxiliaryBlockHeight
		update.LastAuxiliaryBlockHeight = &maxHeight
	default:
		return fmt.Errorf("contract %s is not an anchor of chain %s", anchorAddress, chain.ChainID)
	}
	if current != nil && maxHeight <= *current {
		h.logger.WithField("chain_id", chain.ChainID).
			WithField("block_height", maxHeight).
			Debug("Anchored state root is not newer than the checkpoint")
		return nil
	}

	if _, err = h.repo.AuxiliaryChains.Save(ctx, update); err != nil {
		return fmt.Errorf("can't update chain %s checkpoint: %w", chain.ChainID, err)
	}
	return nil
}
