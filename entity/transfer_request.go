package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openst/facilitator/observer"
)

type RequestType string

const (
	RequestTypeStake  RequestType = "stake"
	RequestTypeRedeem RequestType = "redeem"
)

// MessageTransferRequest is a staker's or redeemer's intent submitted to the
// composer contract before any gateway message exists. The request hash is a
// pure function of the remaining fields (see RequestHash), recomputed
// identically by submitter and facilitator to correlate chain events with
// stored rows.
type MessageTransferRequest struct {
	RequestHash    common.Hash     `db:"request_hash"`
	Type           RequestType     `db:"request_type"`
	Amount         decimal.Decimal `db:"amount"`
	Beneficiary    common.Address  `db:"beneficiary"`
	GasPrice       decimal.Decimal `db:"gas_price"`
	GasLimit       decimal.Decimal `db:"gas_limit"`
	Nonce          uint64          `db:"nonce"`
	Sender         common.Address  `db:"sender"`
	GatewayAddress common.Address  `db:"gateway_address"`
	SenderProxy    *common.Address `db:"sender_proxy"`
	BlockNumber    uint64          `db:"block_number"`
	MessageHash    *common.Hash    `db:"message_hash"`
	CreatedAt      *time.Time      `db:"created_at"`
	UpdatedAt      *time.Time      `db:"updated_at"`
}

// Merge keeps partial-update semantics for the otherwise-immutable request
// row: only the message hash link and the sender proxy can be filled in
// after creation, and each at most once.
func (r *MessageTransferRequest) Merge(update *MessageTransferRequest) *MessageTransferRequest {
	merged := *r
	if merged.MessageHash == nil && update.MessageHash != nil {
		merged.MessageHash = update.MessageHash
	}
	if merged.SenderProxy == nil && update.SenderProxy != nil {
		merged.SenderProxy = update.SenderProxy
	}
	if !update.Amount.IsZero() {
		merged.Amount = update.Amount
	}
	if update.Beneficiary != (common.Address{}) {
		merged.Beneficiary = update.Beneficiary
	}
	if !update.GasPrice.IsZero() {
		merged.GasPrice = update.GasPrice
	}
	if !update.GasLimit.IsZero() {
		merged.GasLimit = update.GasLimit
	}
	if update.Nonce != 0 {
		merged.Nonce = update.Nonce
	}
	if update.GatewayAddress != (common.Address{}) {
		merged.GatewayAddress = update.GatewayAddress
	}
	if update.BlockNumber != 0 {
		merged.BlockNumber = update.BlockNumber
	}
	return &merged
}

type MessageTransferRequestsRepo interface {
	Save(ctx context.Context, req *MessageTransferRequest) (*MessageTransferRequest, error)
	GetByRequestHash(ctx context.Context, requestHash common.Hash) (*MessageTransferRequest, error)
	GetByMessageHash(ctx context.Context, messageHash common.Hash) (*MessageTransferRequest, error)
	// GetWithNullMessageHash is the resume queue of requests that were
	// observed on chain but not yet folded into a gateway message.
	GetWithNullMessageHash(ctx context.Context, requestType RequestType) ([]*MessageTransferRequest, error)
	GetBySenderProxyAndNonce(ctx context.Context, senderProxy common.Address, nonce uint64) (*MessageTransferRequest, error)

	Attach(o observer.Observer[*MessageTransferRequest]) error
	Detach(o observer.Observer[*MessageTransferRequest])
	Notify(ctx context.Context) error
}
