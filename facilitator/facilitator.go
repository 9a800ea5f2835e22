// Package facilitator wires one origin/auxiliary gateway pair: subscribers
// for the five watched contracts, the event handlers folding their logs into
// storage and the reactive services attached to the repositories.
package facilitator

import (
	"context"
	"fmt"

	"github.com/openst/facilitator/config"
	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/contract/abi"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/ethclient"
	"github.com/openst/facilitator/handler"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/proof"
	"github.com/openst/facilitator/repository"
	"github.com/openst/facilitator/seed"
	"github.com/openst/facilitator/service"
	"github.com/openst/facilitator/subscriber"
)

type Facilitator struct {
	cfg         *config.FacilitatorConfig
	logger      logging.Logger
	repo        *repository.Repo
	subscribers []*subscriber.Subscriber
}

func NewFacilitator(
	logger logging.Logger,
	repo *repository.Repo,
	cfg *config.FacilitatorConfig,
	originClient, auxClient ethclient.Client,
) (*Facilitator, error) {
	gateway := contract.NewContract(originClient, cfg.Origin.GatewayAddress, abi.GatewayABI)
	coGateway := contract.NewContract(auxClient, cfg.Auxiliary.GatewayAddress, abi.CoGatewayABI)
	originAnchor := contract.NewContract(originClient, cfg.Origin.AnchorAddress, abi.AnchorABI)
	coAnchor := contract.NewContract(auxClient, cfg.Auxiliary.AnchorAddress, abi.AnchorABI)
	stakeComposer := contract.NewContract(originClient, cfg.ComposerAddress, abi.ComposerABI)
	redeemComposer := contract.NewContract(auxClient, cfg.ComposerAddress, abi.ComposerABI)

	originSender, err := ethclient.NewSender(originClient, cfg.Origin.WorkerKey)
	if err != nil {
		return nil, fmt.Errorf("can't create origin chain sender: %w", err)
	}
	auxSender, err := ethclient.NewSender(auxClient, cfg.Auxiliary.WorkerKey)
	if err != nil {
		return nil, fmt.Errorf("can't create auxiliary chain sender: %w", err)
	}

	originProofGen := proof.NewGenerator(originClient, cfg.Origin.GatewayAddress)
	auxProofGen := proof.NewGenerator(auxClient, cfg.Auxiliary.GatewayAddress)

	f := &Facilitator{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
	}

	gatewaySub := f.newSubscriber(repo, originClient, gateway, cfg.Origin)
	gatewayHandlers := handler.NewGatewayEventHandler(repo, logger.WithField("contract", "gateway"))
	gatewaySub.RegisterEventHandler(abi.StakeIntentDeclared, gatewayHandlers.HandleIntentDeclared)
	gatewaySub.RegisterEventHandler(abi.StakeProgressed, gatewayHandlers.HandleProgressed)
	gatewaySub.RegisterEventHandler(abi.RedeemIntentConfirmed, gatewayHandlers.HandleIntentConfirmed)
	gatewaySub.RegisterEventHandler(abi.UnstakeProgressed, gatewayHandlers.HandleRemoteProgressed)
	gatewaySub.RegisterEventHandler(abi.RevertStakeIntentDeclared, gatewayHandlers.HandleRevertIntentDeclared)
	gatewaySub.RegisterEventHandler(abi.StakeReverted, gatewayHandlers.HandleReverted)
	gatewaySub.RegisterEventHandler(abi.GatewayProven, gatewayHandlers.HandleGatewayProven)

	coGatewaySub := f.newSubscriber(repo, auxClient, coGateway, cfg.Auxiliary)
	coGatewayHandlers := handler.NewCoGatewayEventHandler(repo, logger.WithField("contract", "cogateway"))
	coGatewaySub.RegisterEventHandler(abi.RedeemIntentDeclared, coGatewayHandlers.HandleIntentDeclared)
	coGatewaySub.RegisterEventHandler(abi.RedeemProgressed, coGatewayHandlers.HandleProgressed)
	coGatewaySub.RegisterEventHandler(abi.StakeIntentConfirmed, coGatewayHandlers.HandleIntentConfirmed)
	coGatewaySub.RegisterEventHandler(abi.MintProgressed, coGatewayHandlers.HandleRemoteProgressed)
	coGatewaySub.RegisterEventHandler(abi.RevertRedeemIntentDeclared, coGatewayHandlers.HandleRevertIntentDeclared)
	coGatewaySub.RegisterEventHandler(abi.RedeemReverted, coGatewayHandlers.HandleReverted)
	coGatewaySub.RegisterEventHandler(abi.GatewayProven, coGatewayHandlers.HandleGatewayProven)

	originAnchorSub := f.newSubscriber(repo, originClient, originAnchor, cfg.Origin)
	originAnchorHandlers := handler.NewAnchorEventHandler(repo, logger.WithField("contract", "anchor"), cfg.Origin.Chain.ChainID, cfg.AuxChainID)
	originAnchorSub.RegisterEventHandler(abi.StateRootAvailable, originAnchorHandlers.HandleStateRootAvailable)

	coAnchorSub := f.newSubscriber(repo, auxClient, coAnchor, cfg.Auxiliary)
	coAnchorHandlers := handler.NewAnchorEventHandler(repo, logger.WithField("contract", "co_anchor"), cfg.AuxChainID, cfg.AuxChainID)
	coAnchorSub.RegisterEventHandler(abi.StateRootAvailable, coAnchorHandlers.HandleStateRootAvailable)

	requestHandlers := handler.NewRequestEventHandler(repo, logger.WithField("contract", "composer"))
	stakeComposerSub := f.newSubscriber(repo, originClient, stakeComposer, cfg.Origin)
	stakeComposerSub.RegisterEventHandler(abi.StakeRequested, requestHandlers.HandleStakeRequested)
	redeemComposerSub := f.newSubscriber(repo, auxClient, redeemComposer, cfg.Auxiliary)
	redeemComposerSub.RegisterEventHandler(abi.RedeemRequested, requestHandlers.HandleRedeemRequested)

	f.subscribers = []*subscriber.Subscriber{
		gatewaySub, coGatewaySub, originAnchorSub, coAnchorSub, stakeComposerSub, redeemComposerSub,
	}
	for _, sub := range f.subscribers {
		if err := sub.VerifyEventHandlersABI(); err != nil {
			return nil, err
		}
	}

	if err := f.attachServices(gateway, coGateway, stakeComposer, redeemComposer, originProofGen, auxProofGen, originSender, auxSender); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Facilitator) newSubscriber(repo *repository.Repo, client ethclient.Client, c *contract.Contract, side *config.ChainSideConfig) *subscriber.Subscriber {
	return subscriber.NewSubscriber(
		f.logger.WithField("chain_id", side.Chain.ChainID),
		repo,
		client,
		c,
		side.StartBlock,
		side.MaxBlockRangeSize,
		side.Chain.BlockConfirmations,
		side.Chain.BlockTime,
	)
}

func (f *Facilitator) attachServices(
	gateway, coGateway, stakeComposer, redeemComposer *contract.Contract,
	originProofGen, auxProofGen service.ProofGenerator,
	originSender, auxSender service.TransactionSender,
) error {
	proveGateway := service.NewProveGatewayService(
		f.repo, f.logger.WithField("service", "prove_gateway"),
		f.cfg.AuxChainID, gateway.Address(), coGateway,
		entity.DirectionOriginToAuxiliary, originProofGen, auxSender,
	)
	proveCoGateway := service.NewProveGatewayService(
		f.repo, f.logger.WithField("service", "prove_co_gateway"),
		f.cfg.AuxChainID, coGateway.Address(), gateway,
		entity.DirectionAuxiliaryToOrigin, auxProofGen, originSender,
	)
	if err := f.repo.AuxiliaryChains.Attach(proveGateway); err != nil {
		return err
	}
	if err := f.repo.AuxiliaryChains.Attach(proveCoGateway); err != nil {
		return err
	}

	confirmStake := service.NewConfirmService(
		f.repo, f.logger.WithField("service", "confirm_stake"),
		gateway.Address(), coGateway, abi.MethodConfirmStakeIntent, originProofGen, auxSender,
	)
	confirmRedeem := service.NewConfirmService(
		f.repo, f.logger.WithField("service", "confirm_redeem"),
		coGateway.Address(), gateway, abi.MethodConfirmRedeemIntent, auxProofGen, originSender,
	)
	if err := f.repo.Gateways.Attach(confirmStake); err != nil {
		return err
	}
	if err := f.repo.Gateways.Attach(confirmRedeem); err != nil {
		return err
	}

	progressStake := service.NewProgressService(
		f.repo, f.logger.WithField("service", "progress_stake"),
		entity.MessageTypeStake,
		gateway, abi.MethodProgressStake, originSender,
		coGateway, abi.MethodProgressMint, auxSender,
	)
	progressRedeem := service.NewProgressService(
		f.repo, f.logger.WithField("service", "progress_redeem"),
		entity.MessageTypeRedeem,
		coGateway, abi.MethodProgressRedeem, auxSender,
		gateway, abi.MethodProgressUnstake, originSender,
	)
	if err := f.repo.Messages.Attach(progressStake); err != nil {
		return err
	}
	if err := f.repo.Messages.Attach(progressRedeem); err != nil {
		return err
	}

	accept := service.NewAcceptMessageTransferRequestService(
		f.repo, f.logger.WithField("service", "accept_request"),
		stakeComposer, originSender,
		redeemComposer, auxSender,
	)
	return f.repo.MessageTransferRequests.Attach(accept)
}

// Start seeds the chain and gateway rows, then starts every subscriber.
func (f *Facilitator) Start(ctx context.Context) error {
	if err := seed.SeedFacilitator(ctx, f.repo, f.cfg); err != nil {
		return err
	}
	for _, sub := range f.subscribers {
		if err := sub.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}
