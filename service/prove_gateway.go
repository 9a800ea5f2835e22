package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/contract/abi"
	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// ProveGatewayService reacts to new anchored state roots by proving the
// source gateway's account on the remote gateway, so that outbox entries
// below the anchored height become confirmable there. It only spends gas
// when at least one of the gateway's messages is still pending.
type ProveGatewayService struct {
	repo          *repository.Repo
	logger        logging.Logger
	auxChainID    string
	provenGateway common.Address
	target        *contract.Contract
	direction     entity.MessageDirection
	generator     ProofGenerator
	sender        TransactionSender
}

func NewProveGatewayService(
	repo *repository.Repo,
	logger logging.Logger,
	auxChainID string,
	provenGateway common.Address,
	target *contract.Contract,
	direction entity.MessageDirection,
	generator ProofGenerator,
	sender TransactionSender,
) *ProveGatewayService {
	return &ProveGatewayService{
		repo:          repo,
		logger:        logger,
		auxChainID:    auxChainID,
		provenGateway: provenGateway,
		target:        target,
		direction:     direction,
		generator:     generator,
		sender:        sender,
	}
}

// anchoredHeight returns the checkpoint relevant to this service's source
// chain, or nil when no state root of that side was anchored yet.
func (s *ProveGatewayService) anchoredHeight(chain *entity.AuxiliaryChain) *uint64 {
	if s.direction == entity.DirectionOriginToAuxiliary {
		return chain.LastOriginBlockHeight
	}
	return chain.LastAuxiliaryBlockHeight
}

func (s *ProveGatewayService) Update(ctx context.Context, chains []*entity.AuxiliaryChain) error {
	var height *uint64
	for _, chain := range chains {
		if chain.ChainID != s.auxChainID {
			continue
		}
		if h := s.anchoredHeight(chain); h != nil {
			height = h
		}
	}
	if height == nil {
		return nil
	}

	txHash, err := s.prove(ctx, *height)
	if err != nil {
		return err
	}
	if txHash != (common.Hash{}) {
		s.logger.WithField("gateway", s.provenGateway).
			WithField("block_height", *height).
			WithField("tx_hash", txHash).
			Info("Submitted gateway proof")
	}
	return nil
}

// prove returns the zero hash when proving was skipped.
func (s *ProveGatewayService) prove(ctx context.Context, blockHeight uint64) (common.Hash, error) {
	_, err := s.repo.Gateways.GetByAddress(ctx, s.provenGateway)
	if errors.Is(err, db.ErrNotFound) {
		s.logger.WithField("gateway", s.provenGateway).
			Warn("Gateway to prove is not registered, skipping")
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get gateway %s: %w", s.provenGateway, err)
	}

	pending, err := s.repo.Messages.HasPendingOriginMessages(ctx, blockHeight, s.provenGateway)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't check pending messages of %s: %w", s.provenGateway, err)
	}
	if !pending {
		s.logger.WithField("gateway", s.provenGateway).
			WithField("block_height", blockHeight).
			Debug("No pending messages below anchored height, skipping proof")
		return common.Hash{}, nil
	}

	outboxProof, err := s.generator.GetOutboxProof(ctx, nil, blockHeight)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't generate account proof for %s: %w", s.provenGateway, err)
	}
	if outboxProof.BlockNumber.Uint64() != blockHeight {
		return common.Hash{}, fmt.Errorf("proof block number %s does not match anchored height %d", outboxProof.BlockNumber, blockHeight)
	}

	calldata, err := s.target.Pack(
		abi.MethodProveGateway,
		new(big.Int).SetUint64(blockHeight),
		outboxProof.EncodedAccountValue,
		outboxProof.SerializedAccountProof,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't pack %s calldata: %w", abi.MethodProveGateway, err)
	}
	txHash, err := s.sender.Send(ctx, s.target.Address(), calldata, 0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't send %s transaction: %w", abi.MethodProveGateway, err)
	}
	return txHash, nil
}
