package service

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// ConfirmService reacts to a freshly proven gateway by confirming that
// gateway's declared-but-unconfirmed messages on the local side. Only
// messages whose hash lock we hold can be confirmed, the rest belong to
// other facilitators.
type ConfirmService struct {
	repo          *repository.Repo
	logger        logging.Logger
	sourceGateway common.Address
	target        *contract.Contract
	method        string
	generator     ProofGenerator
	sender        TransactionSender
}

// NewConfirmService builds a confirmer for messages declared on
// sourceGateway. The target contract is the local gateway carrying the
// inbox, method is its confirm method and the generator proves the source
// gateway's storage.
func NewConfirmService(
	repo *repository.Repo,
	logger logging.Logger,
	sourceGateway common.Address,
	target *contract.Contract,
	method string,
	generator ProofGenerator,
	sender TransactionSender,
) *ConfirmService {
	return &ConfirmService{
		repo:          repo,
		logger:        logger,
		sourceGateway: sourceGateway,
		target:        target,
		method:        method,
		generator:     generator,
		sender:        sender,
	}
}

func (s *ConfirmService) Update(ctx context.Context, gateways []*entity.Gateway) error {
	var height *uint64
	for _, gateway := range gateways {
		if gateway.GatewayAddress != s.target.Address() {
			continue
		}
		if h := gateway.LastRemoteGatewayProvenBlockHeight; h != nil && (height == nil || *h > *height) {
			height = h
		}
	}
	if height == nil {
		return nil
	}

	messages, err := s.repo.Messages.FindUnconfirmed(ctx, s.sourceGateway, *height)
	if err != nil {
		return err
	}
	for _, message := range messages {
		if message.HashLock == nil || message.Nonce == nil {
			continue
		}
		if err := s.confirm(ctx, message, *height); err != nil {
			s.logger.WithError(err).
				WithField("message_hash", message.MessageHash).
				Error("Can't confirm message")
		}
	}
	return nil
}

func (s *ConfirmService) confirm(ctx context.Context, message *entity.Message, blockHeight uint64) error {
	req, err := s.repo.MessageTransferRequests.GetByMessageHash(ctx, message.MessageHash)
	if errors.Is(err, db.ErrNotFound) {
		s.logger.WithField("message_hash", message.MessageHash).
			Debug("No transfer request for message, skipping confirmation")
		return nil
	}
	if err != nil {
		return err
	}

	outboxProof, err := s.generator.GetOutboxProof(ctx, []common.Hash{message.MessageHash}, blockHeight)
	if err != nil {
		return err
	}
	if len(outboxProof.StorageProofs) != 1 {
		return errors.New("missing storage proof for message outbox entry")
	}

	calldata, err := s.target.Pack(
		s.method,
		message.Sender,
		new(big.Int).SetUint64(*message.Nonce),
		req.Beneficiary,
		req.Amount.BigInt(),
		req.GasPrice.BigInt(),
		req.GasLimit.BigInt(),
		new(big.Int).SetUint64(blockHeight),
		*message.HashLock,
		outboxProof.StorageProofs[0],
	)
	if err != nil {
		return err
	}
	txHash, err := s.sender.Send(ctx, s.target.Address(), calldata, 0)
	if err != nil {
		return err
	}
	s.logger.WithField("message_hash", message.MessageHash).
		WithField("block_height", blockHeight).
		WithField("tx_hash", txHash).
		Info("Submitted intent confirmation")
	return nil
}
