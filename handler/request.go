package handler

import (
	"context"

	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

// RequestEventHandler records stake and redeem requests observed on the
// composer contract. Handling is best-effort per event: a row that fails to
// save is logged and skipped so one bad record cannot starve the rest of the
// batch, and the pump will redeliver it anyway.
type RequestEventHandler struct {
	repo   *repository.Repo
	logger logging.Logger
}

func NewRequestEventHandler(repo *repository.Repo, logger logging.Logger) *RequestEventHandler {
	return &RequestEventHandler{repo: repo, logger: logger}
}

func (h *RequestEventHandler) HandleStakeRequested(ctx context.Context, events []*EventRecord) error {
	return h.handleRequested(ctx, events, entity.RequestTypeStake, "staker", "gateway", "stakeRequestHash")
}

func (h *RequestEventHandler) HandleRedeemRequested(ctx context.Context, events []*EventRecord) error {
	return h.handleRequested(ctx, events, entity.RequestTypeRedeem, "redeemer", "cogateway", "redeemRequestHash")
}

func (h *RequestEventHandler) handleRequested(ctx context.Context, events []*EventRecord, requestType entity.RequestType, senderKey, gatewayKey, hashKey string) error {
	for _, event := range events {
		req := &entity.MessageTransferRequest{
			Type:           requestType,
			Amount:         event.decimalValue("amount"),
			Beneficiary:    event.address("beneficiary"),
			GasPrice:       event.decimalValue("gasPrice"),
			GasLimit:       event.decimalValue("gasLimit"),
			Nonce:          event.uint64Value("nonce"),
			Sender:         event.address(senderKey),
			GatewayAddress: event.address(gatewayKey),
			BlockNumber:    event.BlockNumber,
		}
		// The request hash is a pure function of the request fields. The
		// recomputed hash keys the row; the event-supplied one is only
		// checked against it.
		req.RequestHash = req.ComputeRequestHash()
		if eventHash := event.hash(hashKey); eventHash != req.RequestHash {
			h.logger.WithField("event_request_hash", eventHash).
				WithField("request_hash", req.RequestHash).
				WithField("request_type", requestType).
				Warn("Event request hash differs from recomputed request hash")
		}
		if _, err := h.repo.MessageTransferRequests.Save(ctx, req); err != nil {
			h.logger.WithError(err).
				WithField("request_hash", req.RequestHash).
				WithField("request_type", requestType).
				Error("Can't save message transfer request")
		}
	}
	return nil
}
