package service_test

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/openst/facilitator/contract"
	contractabi "github.com/openst/facilitator/contract/abi"
	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/observer"
	"github.com/openst/facilitator/proof"
	"github.com/openst/facilitator/repository"
	"github.com/openst/facilitator/service"
)

var (
	originGatewayAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	coGatewayAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeGatewaysRepo struct {
	gateways map[common.Address]*entity.Gateway
}

func (r *fakeGatewaysRepo) Save(_ context.Context, gateway *entity.Gateway) (*entity.Gateway, error) {
	r.gateways[gateway.GatewayAddress] = gateway
	return gateway, nil
}

func (r *fakeGatewaysRepo) GetByAddress(_ context.Context, address common.Address) (*entity.Gateway, error) {
	gateway, ok := r.gateways[address]
	if !ok {
		return nil, db.ErrNotFound
	}
	return gateway, nil
}

func (r *fakeGatewaysRepo) Attach(observer.Observer[*entity.Gateway]) error { return nil }
func (r *fakeGatewaysRepo) Detach(observer.Observer[*entity.Gateway])       {}
func (r *fakeGatewaysRepo) Notify(context.Context) error                    { return nil }

type fakeMessagesRepo struct {
	entity.MessagesRepo
	pending bool
}

func (r *fakeMessagesRepo) HasPendingOriginMessages(context.Context, uint64, common.Address) (bool, error) {
	return r.pending, nil
}

type fakeProofGenerator struct {
	calls  int
	result *proof.OutboxProof
}

func (g *fakeProofGenerator) GetOutboxProof(_ context.Context, _ []common.Hash, blockNumber uint64) (*proof.OutboxProof, error) {
	g.calls++
	if g.result != nil {
		return g.result, nil
	}
	return &proof.OutboxProof{
		BlockNumber:            new(big.Int).SetUint64(blockNumber),
		EncodedAccountValue:    []byte{1},
		SerializedAccountProof: []byte{2},
	}, nil
}

type sentTx struct {
	To       common.Address
	Calldata []byte
}

type fakeSender struct {
	sent []sentTx
}

func (s *fakeSender) Address() common.Address {
	return common.HexToAddress("0x9999999999999999999999999999999999999999")
}

func (s *fakeSender) Send(_ context.Context, to common.Address, calldata []byte, _ uint64) (common.Hash, error) {
	s.sent = append(s.sent, sentTx{To: to, Calldata: calldata})
	return common.HexToHash("0xff"), nil
}

type proveFixture struct {
	service   *service.ProveGatewayService
	gateways  *fakeGatewaysRepo
	generator *fakeProofGenerator
	sender    *fakeSender
}

func newProveFixture(pending bool) *proveFixture {
	gateways := &fakeGatewaysRepo{gateways: map[common.Address]*entity.Gateway{
		originGatewayAddr: {GatewayAddress: originGatewayAddr},
	}}
	repo := &repository.Repo{
		Gateways: gateways,
		Messages: &fakeMessagesRepo{pending: pending},
	}
	generator := new(fakeProofGenerator)
	sender := new(fakeSender)
	target := contract.NewContract(nil, coGatewayAddr, contractabi.CoGatewayABI)
	svc := service.NewProveGatewayService(
		repo, testLogger(), "1405", originGatewayAddr, target,
		entity.DirectionOriginToAuxiliary, generator, sender,
	)
	return &proveFixture{service: svc, gateways: gateways, generator: generator, sender: sender}
}

func anchoredChain(chainID string, originHeight *uint64) *entity.AuxiliaryChain {
	return &entity.AuxiliaryChain{
		ChainID:               chainID,
		LastOriginBlockHeight: originHeight,
	}
}

func TestProveGatewaySubmitsProof(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	height := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", &height),
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)
	require.Len(t, f.sender.sent, 1)
	require.Equal(t, coGatewayAddr, f.sender.sent[0].To)
	require.NotEmpty(t, f.sender.sent[0].Calldata)
}

func TestProveGatewaySkipsOtherChains(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	height := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1406", &height),
	})
	require.NoError(t, err)
	require.Zero(t, f.generator.calls)
	require.Empty(t, f.sender.sent)
}

func TestProveGatewaySkipsWithoutAnchoredHeight(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", nil),
	})
	require.NoError(t, err)
	require.Zero(t, f.generator.calls)
	require.Empty(t, f.sender.sent)
}

func TestProveGatewaySkipsUnknownGateway(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	delete(f.gateways.gateways, originGatewayAddr)
	height := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", &height),
	})
	require.NoError(t, err)
	require.Zero(t, f.generator.calls)
	require.Empty(t, f.sender.sent)
}

func TestProveGatewaySkipsWithoutPendingMessages(t *testing.T) {
	t.Parallel()

	f := newProveFixture(false)
	height := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", &height),
	})
	require.NoError(t, err)
	require.Zero(t, f.generator.calls)
	require.Empty(t, f.sender.sent)
}

func TestProveGatewayRejectsProofBlockMismatch(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	f.generator.result = &proof.OutboxProof{
		BlockNumber:            big.NewInt(499),
		EncodedAccountValue:    []byte{1},
		SerializedAccountProof: []byte{2},
	}
	height := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", &height),
	})
	require.Error(t, err)
	require.Empty(t, f.sender.sent)
}

func TestProveGatewayUsesLatestHeightInBatch(t *testing.T) {
	t.Parallel()

	f := newProveFixture(true)
	older := uint64(400)
	newer := uint64(500)

	err := f.service.Update(context.Background(), []*entity.AuxiliaryChain{
		anchoredChain("1405", &older),
		anchoredChain("1405", &newer),
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)
	require.Len(t, f.sender.sent, 1)
}
