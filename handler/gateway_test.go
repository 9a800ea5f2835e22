package handler_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/handler"
	"github.com/openst/facilitator/observer"
	"github.com/openst/facilitator/repository"
)

var gatewayAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

func newBig(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

type fakeMessagesRepo struct {
	messages map[common.Hash]*entity.Message
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{messages: map[common.Hash]*entity.Message{}}
}

func (r *fakeMessagesRepo) Save(_ context.Context, msg *entity.Message) (*entity.Message, error) {
	stored, ok := r.messages[msg.MessageHash]
	if !ok {
		saved := *msg
		if saved.SourceStatus == "" {
			saved.SourceStatus = entity.StatusUndeclared
		}
		if saved.TargetStatus == "" {
			saved.TargetStatus = entity.StatusUndeclared
		}
		r.messages[msg.MessageHash] = &saved
		return &saved, nil
	}
	merged := stored.Merge(msg)
	r.messages[msg.MessageHash] = merged
	return merged, nil
}

func (r *fakeMessagesRepo) GetByMessageHash(_ context.Context, messageHash common.Hash) (*entity.Message, error) {
	msg, ok := r.messages[messageHash]
	if !ok {
		return nil, db.ErrNotFound
	}
	return msg, nil
}

func (r *fakeMessagesRepo) HasPendingOriginMessages(context.Context, uint64, common.Address) (bool, error) {
	return false, nil
}

func (r *fakeMessagesRepo) FindUnconfirmed(context.Context, common.Address, uint64) ([]*entity.Message, error) {
	return nil, nil
}

func (r *fakeMessagesRepo) FindByGateway(context.Context, common.Address) ([]*entity.Message, error) {
	return nil, nil
}

func (r *fakeMessagesRepo) Attach(observer.Observer[*entity.Message]) error { return nil }
func (r *fakeMessagesRepo) Detach(observer.Observer[*entity.Message])       {}
func (r *fakeMessagesRepo) Notify(context.Context) error                    { return nil }

type fakeRequestsRepo struct {
	requests map[common.Hash]*entity.MessageTransferRequest
}

func newFakeRequestsRepo() *fakeRequestsRepo {
	return &fakeRequestsRepo{requests: map[common.Hash]*entity.MessageTransferRequest{}}
}

func (r *fakeRequestsRepo) Save(_ context.Context, req *entity.MessageTransferRequest) (*entity.MessageTransferRequest, error) {
	stored, ok := r.requests[req.RequestHash]
	if !ok {
		saved := *req
		r.requests[req.RequestHash] = &saved
		return &saved, nil
	}
	merged := stored.Merge(req)
	r.requests[req.RequestHash] = merged
	return merged, nil
}

func (r *fakeRequestsRepo) GetByRequestHash(_ context.Context, requestHash common.Hash) (*entity.MessageTransferRequest, error) {
	req, ok := r.requests[requestHash]
	if !ok {
		return nil, db.ErrNotFound
	}
	return req, nil
}

func (r *fakeRequestsRepo) GetByMessageHash(_ context.Context, messageHash common.Hash) (*entity.MessageTransferRequest, error) {
	for _, req := range r.requests {
		if req.MessageHash != nil && *req.MessageHash == messageHash {
			return req, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeRequestsRepo) GetWithNullMessageHash(_ context.Context, requestType entity.RequestType) ([]*entity.MessageTransferRequest, error) {
	var res []*entity.MessageTransferRequest
	for _, req := range r.requests {
		if req.Type == requestType && req.MessageHash == nil {
			res = append(res, req)
		}
	}
	return res, nil
}

func (r *fakeRequestsRepo) GetBySenderProxyAndNonce(_ context.Context, senderProxy common.Address, nonce uint64) (*entity.MessageTransferRequest, error) {
	for _, req := range r.requests {
		if req.SenderProxy != nil && *req.SenderProxy == senderProxy && req.Nonce == nonce {
			return req, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeRequestsRepo) Attach(observer.Observer[*entity.MessageTransferRequest]) error {
	return nil
}
func (r *fakeRequestsRepo) Detach(observer.Observer[*entity.MessageTransferRequest]) {}
func (r *fakeRequestsRepo) Notify(context.Context) error                             { return nil }

type fakeGatewaysRepo struct {
	gateways map[common.Address]*entity.Gateway
}

func newFakeGatewaysRepo() *fakeGatewaysRepo {
	return &fakeGatewaysRepo{gateways: map[common.Address]*entity.Gateway{}}
}

func (r *fakeGatewaysRepo) Save(_ context.Context, gateway *entity.Gateway) (*entity.Gateway, error) {
	stored, ok := r.gateways[gateway.GatewayAddress]
	if !ok {
		saved := *gateway
		r.gateways[gateway.GatewayAddress] = &saved
		return &saved, nil
	}
	merged := stored.Merge(gateway)
	r.gateways[gateway.GatewayAddress] = merged
	return merged, nil
}

func (r *fakeGatewaysRepo) GetByAddress(_ context.Context, gatewayAddress common.Address) (*entity.Gateway, error) {
	gateway, ok := r.gateways[gatewayAddress]
	if !ok {
		return nil, db.ErrNotFound
	}
	return gateway, nil
}

func (r *fakeGatewaysRepo) Attach(observer.Observer[*entity.Gateway]) error { return nil }
func (r *fakeGatewaysRepo) Detach(observer.Observer[*entity.Gateway])       {}
func (r *fakeGatewaysRepo) Notify(context.Context) error                    { return nil }

func newGatewayFixture() (*handler.GatewayEventHandler, *fakeMessagesRepo, *fakeRequestsRepo, *fakeGatewaysRepo) {
	messages := newFakeMessagesRepo()
	requests := newFakeRequestsRepo()
	gateways := newFakeGatewaysRepo()
	repo := &repository.Repo{
		Messages:                messages,
		MessageTransferRequests: requests,
		Gateways:                gateways,
	}
	return handler.NewGatewayEventHandler(repo, testLogger()), messages, requests, gateways
}

func declaredEvent(messageHash common.Hash, staker common.Address, nonce, blockNumber uint64) *handler.EventRecord {
	return &handler.EventRecord{
		ContractAddress: gatewayAddr,
		BlockNumber:     blockNumber,
		Data: map[string]interface{}{
			"_messageHash": messageHash,
			"_staker":      staker,
			"_stakerNonce": newBig(nonce),
			"_amount":      newBig(1000),
		},
	}
}

func TestHandleIntentDeclared(t *testing.T) {
	t.Parallel()

	h, messages, requests, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")
	proxy := common.HexToAddress("0x22")

	requests.requests[common.HexToHash("0x01")] = &entity.MessageTransferRequest{
		RequestHash: common.HexToHash("0x01"),
		Type:        entity.RequestTypeStake,
		Nonce:       7,
		SenderProxy: &proxy,
	}

	err := h.HandleIntentDeclared(context.Background(), []*handler.EventRecord{
		declaredEvent(messageHash, proxy, 7, 120),
	})
	require.NoError(t, err)

	msg := messages.messages[messageHash]
	require.NotNil(t, msg)
	require.Equal(t, entity.MessageTypeStake, msg.Type)
	require.Equal(t, entity.DirectionOriginToAuxiliary, msg.Direction)
	require.Equal(t, entity.StatusDeclared, msg.SourceStatus)
	require.Equal(t, entity.StatusUndeclared, msg.TargetStatus)
	require.NotNil(t, msg.Nonce)
	require.Equal(t, uint64(7), *msg.Nonce)
	require.NotNil(t, msg.SourceDeclarationBlockHeight)
	require.Equal(t, uint64(120), *msg.SourceDeclarationBlockHeight)

	req := requests.requests[common.HexToHash("0x01")]
	require.NotNil(t, req.MessageHash)
	require.Equal(t, messageHash, *req.MessageHash)
}

func TestHandleIntentDeclaredWithoutLocalRequest(t *testing.T) {
	t.Parallel()

	h, messages, _, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")

	err := h.HandleIntentDeclared(context.Background(), []*handler.EventRecord{
		declaredEvent(messageHash, common.HexToAddress("0x22"), 7, 120),
	})
	require.NoError(t, err)
	require.NotNil(t, messages.messages[messageHash])
}

func TestHandleIntentDeclaredRedeliveryKeepsProgress(t *testing.T) {
	t.Parallel()

	h, messages, _, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")
	messages.messages[messageHash] = &entity.Message{
		MessageHash:  messageHash,
		SourceStatus: entity.StatusProgressed,
		TargetStatus: entity.StatusDeclared,
	}

	err := h.HandleIntentDeclared(context.Background(), []*handler.EventRecord{
		declaredEvent(messageHash, common.HexToAddress("0x22"), 7, 120),
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusProgressed, messages.messages[messageHash].SourceStatus)
}

func TestHandleIntentConfirmedSetsHashLockOnce(t *testing.T) {
	t.Parallel()

	h, messages, _, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")
	confirmed := func(lock common.Hash) *handler.EventRecord {
		return &handler.EventRecord{
			ContractAddress: gatewayAddr,
			Data: map[string]interface{}{
				"_messageHash":   messageHash,
				"_redeemer":      common.HexToAddress("0x33"),
				"_redeemerNonce": newBig(5),
				"_beneficiary":   common.HexToAddress("0x44"),
				"_amount":        newBig(1000),
				"_blockHeight":   newBig(99),
				"_hashLock":      lock,
			},
		}
	}

	err := h.HandleIntentConfirmed(context.Background(), []*handler.EventRecord{confirmed(common.HexToHash("0x01"))})
	require.NoError(t, err)
	err = h.HandleIntentConfirmed(context.Background(), []*handler.EventRecord{confirmed(common.HexToHash("0x02"))})
	require.NoError(t, err)

	msg := messages.messages[messageHash]
	require.Equal(t, entity.MessageTypeRedeem, msg.Type)
	require.Equal(t, entity.StatusDeclared, msg.TargetStatus)
	require.Equal(t, common.HexToHash("0x01"), *msg.HashLock)
}

func TestHandleProgressedRecordsSecret(t *testing.T) {
	t.Parallel()

	h, messages, _, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")
	secret := common.HexToHash("0x99")
	messages.messages[messageHash] = &entity.Message{
		MessageHash:  messageHash,
		SourceStatus: entity.StatusDeclared,
		TargetStatus: entity.StatusDeclared,
	}

	err := h.HandleProgressed(context.Background(), []*handler.EventRecord{{
		ContractAddress: gatewayAddr,
		Data: map[string]interface{}{
			"_messageHash":  messageHash,
			"_unlockSecret": secret,
		},
	}})
	require.NoError(t, err)

	msg := messages.messages[messageHash]
	require.Equal(t, entity.StatusProgressed, msg.SourceStatus)
	require.Equal(t, entity.StatusDeclared, msg.TargetStatus)
	require.Equal(t, secret, *msg.Secret)
}

func TestHandleRevertLifecycle(t *testing.T) {
	t.Parallel()

	h, messages, _, _ := newGatewayFixture()
	messageHash := common.HexToHash("0xaa")
	event := &handler.EventRecord{
		ContractAddress: gatewayAddr,
		Data:            map[string]interface{}{"_messageHash": messageHash},
	}

	require.NoError(t, h.HandleRevertIntentDeclared(context.Background(), []*handler.EventRecord{event}))
	require.Equal(t, entity.StatusRevocationDeclared, messages.messages[messageHash].SourceStatus)

	require.NoError(t, h.HandleReverted(context.Background(), []*handler.EventRecord{event}))
	require.Equal(t, entity.StatusRevoked, messages.messages[messageHash].SourceStatus)
}

func TestHandleGatewayProvenKeepsMax(t *testing.T) {
	t.Parallel()

	h, _, _, gateways := newGatewayFixture()
	proven := func(height uint64) *handler.EventRecord {
		return &handler.EventRecord{
			ContractAddress: gatewayAddr,
			Data: map[string]interface{}{
				"_gateway":     common.HexToAddress("0x55"),
				"_blockHeight": newBig(height),
			},
		}
	}

	require.NoError(t, h.HandleGatewayProven(context.Background(), []*handler.EventRecord{proven(100)}))
	require.NoError(t, h.HandleGatewayProven(context.Background(), []*handler.EventRecord{proven(60)}))

	gateway := gateways.gateways[gatewayAddr]
	require.NotNil(t, gateway.LastRemoteGatewayProvenBlockHeight)
	require.Equal(t, uint64(100), *gateway.LastRemoteGatewayProvenBlockHeight)
}
