package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/contract/abi"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// AcceptMessageTransferRequestService reacts to new transfer requests by
// accepting them on the composer: it draws a fresh secret, submits the
// accept transaction under the secret's hash lock, then records the derived
// message with both secret and hash lock. A request that failed to accept
// keeps its null message hash and is retried on the next flush.
type AcceptMessageTransferRequestService struct {
	repo           *repository.Repo
	logger         logging.Logger
	stakeComposer  *contract.Contract
	stakeSender    TransactionSender
	redeemComposer *contract.Contract
	redeemSender   TransactionSender
}

// NewAcceptMessageTransferRequestService routes stake requests to the
// origin-chain composer and redeem requests to the auxiliary-chain one,
// each with the worker transacting on that chain.
func NewAcceptMessageTransferRequestService(
	repo *repository.Repo,
	logger logging.Logger,
	stakeComposer *contract.Contract,
	stakeSender TransactionSender,
	redeemComposer *contract.Contract,
	redeemSender TransactionSender,
) *AcceptMessageTransferRequestService {
	return &AcceptMessageTransferRequestService{
		repo:           repo,
		logger:         logger,
		stakeComposer:  stakeComposer,
		stakeSender:    stakeSender,
		redeemComposer: redeemComposer,
		redeemSender:   redeemSender,
	}
}

func (s *AcceptMessageTransferRequestService) Update(ctx context.Context, requests []*entity.MessageTransferRequest) error {
	for _, request := range requests {
		if err := s.accept(ctx, request); err != nil {
			s.logger.WithError(err).
				WithField("request_hash", request.RequestHash).
				Error("Can't accept transfer request")
		}
	}
	return nil
}

func (s *AcceptMessageTransferRequestService) accept(ctx context.Context, stale *entity.MessageTransferRequest) error {
	request, err := s.repo.MessageTransferRequests.GetByRequestHash(ctx, stale.RequestHash)
	if err != nil {
		return err
	}
	if request.MessageHash != nil {
		return nil
	}

	secret, err := newSecret()
	if err != nil {
		return err
	}
	hashLock := entity.HashLockForSecret(secret)

	method := abi.MethodAcceptStakeRequest
	messageType := entity.MessageTypeStake
	direction := entity.DirectionOriginToAuxiliary
	composer, sender := s.stakeComposer, s.stakeSender
	if request.Type == entity.RequestTypeRedeem {
		method = abi.MethodAcceptRedeemRequest
		messageType = entity.MessageTypeRedeem
		direction = entity.DirectionAuxiliaryToOrigin
		composer, sender = s.redeemComposer, s.redeemSender
	}

	calldata, err := composer.Pack(method, request.RequestHash, hashLock)
	if err != nil {
		return fmt.Errorf("can't pack %s calldata: %w", method, err)
	}
	txHash, err := sender.Send(ctx, composer.Address(), calldata, 0)
	if err != nil {
		return fmt.Errorf("can't send %s transaction: %w", method, err)
	}

	intentHash := entity.IntentHash(messageType, request.Amount, request.Beneficiary, request.GatewayAddress)
	messageHash := entity.ComputeMessageHash(intentHash, request.Nonce, request.GasPrice, request.GasLimit, request.Sender, hashLock)

	_, err = s.repo.Messages.Save(ctx, &entity.Message{
		MessageHash:    messageHash,
		Type:           messageType,
		GatewayAddress: request.GatewayAddress,
		Direction:      direction,
		GasPrice:       request.GasPrice,
		GasLimit:       request.GasLimit,
		Nonce:          &request.Nonce,
		Sender:         request.Sender,
		HashLock:       &hashLock,
		Secret:         &secret,
	})
	if err != nil {
		return fmt.Errorf("can't save accepted message %s: %w", messageHash, err)
	}
	_, err = s.repo.MessageTransferRequests.Save(ctx, &entity.MessageTransferRequest{
		RequestHash: request.RequestHash,
		MessageHash: &messageHash,
	})
	if err != nil {
		return fmt.Errorf("can't link request %s to message %s: %w", request.RequestHash, messageHash, err)
	}

	s.logger.WithField("request_hash", request.RequestHash).
		WithField("message_hash", messageHash).
		WithField("tx_hash", txHash).
		Info("Accepted transfer request")
	return nil
}

func newSecret() (common.Hash, error) {
	var secret common.Hash
	if _, err := rand.Read(secret[:]); err != nil {
		return common.Hash{}, fmt.Errorf("can't generate secret: %w", err)
	}
	return secret, nil
}
