package service

import (
	"context"

	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// ProgressService reacts to message updates by unlocking messages that are
// declared on both chains and whose secret we hold. It progresses the source
// gateway first, then the target gateway; the resulting events fold the
// statuses forward, so redelivery of an already-progressed message is a
// no-op on chain state we care about.
type ProgressService struct {
	repo         *repository.Repo
	logger       logging.Logger
	messageType  entity.MessageType
	source       *contract.Contract
	sourceMethod string
	sourceSender TransactionSender
	target       *contract.Contract
	targetMethod string
	targetSender TransactionSender
}

func NewProgressService(
	repo *repository.Repo,
	logger logging.Logger,
	messageType entity.MessageType,
	source *contract.Contract,
	sourceMethod string,
	sourceSender TransactionSender,
	target *contract.Contract,
	targetMethod string,
	targetSender TransactionSender,
) *ProgressService {
	return &ProgressService{
		repo:         repo,
		logger:       logger,
		messageType:  messageType,
		source:       source,
		sourceMethod: sourceMethod,
		sourceSender: sourceSender,
		target:       target,
		targetMethod: targetMethod,
		targetSender: targetSender,
	}
}

func (s *ProgressService) Update(ctx context.Context, messages []*entity.Message) error {
	for _, message := range messages {
		if message.Type != s.messageType {
			continue
		}
		if err := s.progress(ctx, message); err != nil {
			s.logger.WithError(err).
				WithField("message_hash", message.MessageHash).
				Error("Can't progress message")
		}
	}
	return nil
}

func (s *ProgressService) progress(ctx context.Context, stale *entity.Message) error {
	// The observed value may lag behind concurrent folds, act on the row as
	// stored now.
	message, err := s.repo.Messages.GetByMessageHash(ctx, stale.MessageHash)
	if err != nil {
		return err
	}
	if message.Secret == nil || message.TargetStatus != entity.StatusDeclared {
		return nil
	}

	if message.SourceStatus == entity.StatusDeclared {
		if err := s.unlock(ctx, message, s.source, s.sourceMethod, s.sourceSender); err != nil {
			return err
		}
	}
	return s.unlock(ctx, message, s.target, s.targetMethod, s.targetSender)
}

func (s *ProgressService) unlock(ctx context.Context, message *entity.Message, target *contract.Contract, method string, sender TransactionSender) error {
	calldata, err := target.Pack(method, message.MessageHash, *message.Secret)
	if err != nil {
		return err
	}
	txHash, err := sender.Send(ctx, target.Address(), calldata, 0)
	if err != nil {
		return err
	}
	s.logger.WithField("message_hash", message.MessageHash).
		WithField("method", method).
		WithField("tx_hash", txHash).
		Info("Submitted message progress")
	return nil
}
