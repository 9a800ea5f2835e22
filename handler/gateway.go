package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// GatewayEventHandler folds one gateway contract's message lifecycle events
// into the messages repository. The same handler serves both sides of a
// gateway pair: the origin gateway sources stake messages and terminates
// redeem messages, the cogateway the other way around.
type GatewayEventHandler struct {
	repo            *repository.Repo
	logger          logging.Logger
	sourceType      entity.MessageType
	sourceDirection entity.MessageDirection
	targetType      entity.MessageType
}

// NewGatewayEventHandler builds the handler for an origin gateway.
func NewGatewayEventHandler(repo *repository.Repo, logger logging.Logger) *GatewayEventHandler {
	return &GatewayEventHandler{
		repo:            repo,
		logger:          logger,
		sourceType:      entity.MessageTypeStake,
		sourceDirection: entity.DirectionOriginToAuxiliary,
		targetType:      entity.MessageTypeRedeem,
	}
}

// NewCoGatewayEventHandler builds the handler for an auxiliary cogateway.
func NewCoGatewayEventHandler(repo *repository.Repo, logger logging.Logger) *GatewayEventHandler {
	return &GatewayEventHandler{
		repo:            repo,
		logger:          logger,
		sourceType:      entity.MessageTypeRedeem,
		sourceDirection: entity.DirectionAuxiliaryToOrigin,
		targetType:      entity.MessageTypeStake,
	}
}

// senderKeys returns the event attribute names carrying the sender proxy and
// its nonce for the given message type.
func senderKeys(messageType entity.MessageType) (string, string) {
	if messageType == entity.MessageTypeStake {
		return "_staker", "_stakerNonce"
	}
	return "_redeemer", "_redeemerNonce"
}

// HandleIntentDeclared records a declaration on the message's source chain
// and, when a matching transfer request is already known, links the two.
func (h *GatewayEventHandler) HandleIntentDeclared(ctx context.Context, events []*EventRecord) error {
	senderKey, nonceKey := senderKeys(h.sourceType)
	for _, event := range events {
		messageHash := event.hash("_messageHash")
		sender := event.address(senderKey)
		nonce := event.uint64Value(nonceKey)
		declaredAt := event.BlockNumber
		_, err := h.repo.Messages.Save(ctx, &entity.Message{
			MessageHash:                  messageHash,
			Type:                         h.sourceType,
			GatewayAddress:               event.ContractAddress,
			Direction:                    h.sourceDirection,
			SourceStatus:                 entity.StatusDeclared,
			Nonce:                        &nonce,
			Sender:                       sender,
			SourceDeclarationBlockHeight: &declaredAt,
		})
		if err != nil {
			return fmt.Errorf("can't save declared message %s: %w", messageHash, err)
		}
		if err := h.linkRequest(ctx, messageHash, sender, nonce); err != nil {
			return err
		}
	}
	return nil
}

// linkRequest fills in the message hash of the transfer request this
// declaration fulfilled. Requests accepted by another facilitator are not in
// our store, that is not an error.
func (h *GatewayEventHandler) linkRequest(ctx context.Context, messageHash common.Hash, senderProxy common.Address, nonce uint64) error {
	req, err := h.repo.MessageTransferRequests.GetBySenderProxyAndNonce(ctx, senderProxy, nonce)
	if errors.Is(err, db.ErrNotFound) {
		h.logger.WithField("message_hash", messageHash).
			WithField("sender_proxy", senderProxy).
			Debug("No local transfer request for declared message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't look up transfer request for proxy %s nonce %d: %w", senderProxy, nonce, err)
	}
	if req.MessageHash != nil {
		return nil
	}
	_, err = h.repo.MessageTransferRequests.Save(ctx, &entity.MessageTransferRequest{
		RequestHash: req.RequestHash,
		MessageHash: &messageHash,
	})
	if err != nil {
		return fmt.Errorf("can't link request %s to message %s: %w", req.RequestHash, messageHash, err)
	}
	return nil
}

// HandleIntentConfirmed records a confirmation on the message's target chain.
// The hash lock travels with the confirmation and is set at most once.
func (h *GatewayEventHandler) HandleIntentConfirmed(ctx context.Context, events []*EventRecord) error {
	senderKey, nonceKey := senderKeys(h.targetType)
	for _, event := range events {
		messageHash := event.hash("_messageHash")
		hashLock := event.hash("_hashLock")
		nonce := event.uint64Value(nonceKey)
		_, err := h.repo.Messages.Save(ctx, &entity.Message{
			MessageHash:  messageHash,
			Type:         h.targetType,
			TargetStatus: entity.StatusDeclared,
			Nonce:        &nonce,
			Sender:       event.address(senderKey),
			HashLock:     &hashLock,
		})
		if err != nil {
			return fmt.Errorf("can't save confirmed message %s: %w", messageHash, err)
		}
	}
	return nil
}

// HandleProgressed records a source-side progress with its unlock secret.
func (h *GatewayEventHandler) HandleProgressed(ctx context.Context, events []*EventRecord) error {
	return h.saveProgress(ctx, events, true)
}

// HandleRemoteProgressed records a target-side progress (mint or unstake).
func (h *GatewayEventHandler) HandleRemoteProgressed(ctx context.Context, events []*EventRecord) error {
	return h.saveProgress(ctx, events, false)
}

func (h *GatewayEventHandler) saveProgress(ctx context.Context, events []*EventRecord, sourceSide bool) error {
	for _, event := range events {
		messageHash := event.hash("_messageHash")
		secret := event.hash("_unlockSecret")
		update := &entity.Message{
			MessageHash: messageHash,
			Secret:      &secret,
		}
		if sourceSide {
			update.SourceStatus = entity.StatusProgressed
		} else {
			update.TargetStatus = entity.StatusProgressed
		}
		if _, err := h.repo.Messages.Save(ctx, update); err != nil {
			return fmt.Errorf("can't save progressed message %s: %w", messageHash, err)
		}
	}
	return nil
}

// HandleRevertIntentDeclared records a revocation request on the source
// chain.
func (h *GatewayEventHandler) HandleRevertIntentDeclared(ctx context.Context, events []*EventRecord) error {
	return h.saveSourceStatus(ctx, events, entity.StatusRevocationDeclared)
}

// HandleReverted records a completed revocation on the source chain.
func (h *GatewayEventHandler) HandleReverted(ctx context.Context, events []*EventRecord) error {
	return h.saveSourceStatus(ctx, events, entity.StatusRevoked)
}

func (h *GatewayEventHandler) saveSourceStatus(ctx context.Context, events []*EventRecord, status entity.MessageStatus) error {
	for _, event := range events {
		messageHash := event.hash("_messageHash")
		_, err := h.repo.Messages.Save(ctx, &entity.Message{
			MessageHash:  messageHash,
			SourceStatus: status,
		})
		if err != nil {
			return fmt.Errorf("can't save message %s status %s: %w", messageHash, status, err)
		}
	}
	return nil
}

// HandleGatewayProven advances the proven-height watermark of the emitting
// gateway. The merge keeps the maximum, so stale proofs are harmless.
func (h *GatewayEventHandler) HandleGatewayProven(ctx context.Context, events []*EventRecord) error {
	for _, event := range events {
		height := event.uint64Value("_blockHeight")
		_, err := h.repo.Gateways.Save(ctx, &entity.Gateway{
			GatewayAddress:                     event.ContractAddress,
			LastRemoteGatewayProvenBlockHeight: &height,
		})
		if err != nil {
			return fmt.Errorf("can't save proven height for gateway %s: %w", event.ContractAddress, err)
		}
	}
	return nil
}
