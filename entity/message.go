package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openst/facilitator/observer"
)

type MessageType string

const (
	MessageTypeStake  MessageType = "stake"
	MessageTypeRedeem MessageType = "redeem"
)

type MessageDirection string

const (
	DirectionOriginToAuxiliary MessageDirection = "origin_to_auxiliary"
	DirectionAuxiliaryToOrigin MessageDirection = "auxiliary_to_origin"
)

type MessageStatus string

const (
	StatusUndeclared         MessageStatus = "undeclared"
	StatusDeclared           MessageStatus = "declared"
	StatusProgressed         MessageStatus = "progressed"
	StatusRevocationDeclared MessageStatus = "revocation_declared"
	StatusRevoked            MessageStatus = "revoked"
)

// statusRank orders statuses along the two allowed paths,
// undeclared -> declared -> progressed and
// undeclared -> declared -> revocation_declared -> revoked.
// Progressed and revocation_declared are siblings, not ordered against
// each other.
var statusRank = map[MessageStatus]int{
	StatusUndeclared:         0,
	StatusDeclared:           1,
	StatusProgressed:         2,
	StatusRevocationDeclared: 2,
	StatusRevoked:            3,
}

// NextStatus returns the status a message side should hold after observing
// an event reporting the given status. Transitions never move backwards, so
// a redelivered or reordered event leaves the stored status untouched.
func NextStatus(current, reported MessageStatus) MessageStatus {
	if current == "" {
		current = StatusUndeclared
	}
	// Progressed and revoked are terminal, the two paths never cross.
	if current == StatusProgressed || current == StatusRevoked {
		return current
	}
	if statusRank[reported] > statusRank[current] {
		return reported
	}
	return current
}

// Message is the message-layer state of one cross-chain transfer, folded
// from events on both chains. Rows are append-only audit values, never
// deleted.
type Message struct {
	MessageHash                  common.Hash      `db:"message_hash"`
	Type                         MessageType      `db:"type"`
	GatewayAddress               common.Address   `db:"gateway_address"`
	Direction                    MessageDirection `db:"direction"`
	SourceStatus                 MessageStatus    `db:"source_status"`
	TargetStatus                 MessageStatus    `db:"target_status"`
	GasPrice                     decimal.Decimal  `db:"gas_price"`
	GasLimit                     decimal.Decimal  `db:"gas_limit"`
	Nonce                        *uint64          `db:"nonce"`
	Sender                       common.Address   `db:"sender"`
	HashLock                     *common.Hash     `db:"hash_lock"`
	Secret                       *common.Hash     `db:"secret"`
	SourceDeclarationBlockHeight *uint64          `db:"source_declaration_block_height"`
	CreatedAt                    *time.Time       `db:"created_at"`
	UpdatedAt                    *time.Time       `db:"updated_at"`
}

// Merge folds an update into the stored row, keeping partial-update
// semantics: zero-valued fields of the update leave the stored value
// untouched, statuses only move forward and the hash lock is set at most
// once. The message hash itself is immutable.
func (m *Message) Merge(update *Message) *Message {
	merged := *m
	if update.Type != "" {
		merged.Type = update.Type
	}
	if update.GatewayAddress != (common.Address{}) {
		merged.GatewayAddress = update.GatewayAddress
	}
	if update.Direction != "" {
		merged.Direction = update.Direction
	}
	merged.SourceStatus = NextStatus(m.SourceStatus, update.SourceStatus)
	merged.TargetStatus = NextStatus(m.TargetStatus, update.TargetStatus)
	if !update.GasPrice.IsZero() {
		merged.GasPrice = update.GasPrice
	}
	if !update.GasLimit.IsZero() {
		merged.GasLimit = update.GasLimit
	}
	// Nonce is a pointer, nonce zero is a valid first per-sender nonce.
	if update.Nonce != nil {
		merged.Nonce = update.Nonce
	}
	if update.Sender != (common.Address{}) {
		merged.Sender = update.Sender
	}
	if merged.HashLock == nil && update.HashLock != nil {
		merged.HashLock = update.HashLock
	}
	if merged.Secret == nil && update.Secret != nil {
		merged.Secret = update.Secret
	}
	if update.SourceDeclarationBlockHeight != nil {
		merged.SourceDeclarationBlockHeight = update.SourceDeclarationBlockHeight
	}
	return &merged
}

type MessagesRepo interface {
	Save(ctx context.Context, msg *Message) (*Message, error)
	GetByMessageHash(ctx context.Context, messageHash common.Hash) (*Message, error)
	// HasPendingOriginMessages reports whether at least one message for the
	// gateway was declared at or below the given height and has not reached
	// a terminal source status yet.
	HasPendingOriginMessages(ctx context.Context, blockHeight uint64, gatewayAddress common.Address) (bool, error)
	// FindUnconfirmed returns messages declared on the source chain at or
	// below the given height whose target side is still undeclared.
	FindUnconfirmed(ctx context.Context, gatewayAddress common.Address, blockHeight uint64) ([]*Message, error)
	FindByGateway(ctx context.Context, gatewayAddress common.Address) ([]*Message, error)

	Attach(o observer.Observer[*Message]) error
	Detach(o observer.Observer[*Message])
	// Notify flushes queued updates to attached observers when the store
	// changed since the last flush, and is a cheap no-op otherwise.
	Notify(ctx context.Context) error
}
