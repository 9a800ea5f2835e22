package presenter

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/entity"
)

type ChainInfo struct {
	ChainID                  string
	OriginChainName          string
	Gateway                  common.Address
	CoGateway                common.Address
	Anchor                   common.Address
	CoAnchor                 common.Address
	LastOriginBlockHeight    *uint64 `json:",omitempty"`
	LastAuxiliaryBlockHeight *uint64 `json:",omitempty"`
}

type MessageInfo struct {
	MessageHash                  common.Hash
	Type                         entity.MessageType
	Gateway                      common.Address
	Direction                    entity.MessageDirection
	SourceStatus                 entity.MessageStatus
	TargetStatus                 entity.MessageStatus
	Nonce                        *uint64 `json:",omitempty"`
	Sender                       common.Address
	SourceDeclarationBlockHeight *uint64 `json:",omitempty"`
}

type RequestInfo struct {
	RequestHash common.Hash
	Type        entity.RequestType
	Amount      string
	Beneficiary common.Address
	Nonce       uint64
	Sender      common.Address
	Gateway     common.Address
	BlockNumber uint64
}

func messageToMessageInfo(message *entity.Message) *MessageInfo {
	return &MessageInfo{
		MessageHash:                  message.MessageHash,
		Type:                         message.Type,
		Gateway:                      message.GatewayAddress,
		Direction:                    message.Direction,
		SourceStatus:                 message.SourceStatus,
		TargetStatus:                 message.TargetStatus,
		Nonce:                        message.Nonce,
		Sender:                       message.Sender,
		SourceDeclarationBlockHeight: message.SourceDeclarationBlockHeight,
	}
}

func requestToRequestInfo(request *entity.MessageTransferRequest) *RequestInfo {
	return &RequestInfo{
		RequestHash: request.RequestHash,
		Type:        request.Type,
		Amount:      request.Amount.String(),
		Beneficiary: request.Beneficiary,
		Nonce:       request.Nonce,
		Sender:      request.Sender,
		Gateway:     request.GatewayAddress,
		BlockNumber: request.BlockNumber,
	}
}
