package entity_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openst/facilitator/entity"
)

func TestNextStatus(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name     string
		Current  entity.MessageStatus
		Reported entity.MessageStatus
		Expected entity.MessageStatus
	}{
		{"declare from empty", "", entity.StatusDeclared, entity.StatusDeclared},
		{"declare from undeclared", entity.StatusUndeclared, entity.StatusDeclared, entity.StatusDeclared},
		{"progress from declared", entity.StatusDeclared, entity.StatusProgressed, entity.StatusProgressed},
		{"revocation from declared", entity.StatusDeclared, entity.StatusRevocationDeclared, entity.StatusRevocationDeclared},
		{"revoke from revocation declared", entity.StatusRevocationDeclared, entity.StatusRevoked, entity.StatusRevoked},
		{"redelivered declare is ignored", entity.StatusProgressed, entity.StatusDeclared, entity.StatusProgressed},
		{"progressed is terminal", entity.StatusProgressed, entity.StatusRevoked, entity.StatusProgressed},
		{"revoked is terminal", entity.StatusRevoked, entity.StatusProgressed, entity.StatusRevoked},
		{"revocation does not cross to progressed", entity.StatusRevocationDeclared, entity.StatusProgressed, entity.StatusRevocationDeclared},
		{"same status is kept", entity.StatusDeclared, entity.StatusDeclared, entity.StatusDeclared},
		{"undeclared never moves backwards", entity.StatusDeclared, entity.StatusUndeclared, entity.StatusDeclared},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.Expected, entity.NextStatus(test.Current, test.Reported))
		})
	}
}

func TestMessageMerge(t *testing.T) {
	t.Parallel()

	hashLock := common.HexToHash("0x01")
	otherLock := common.HexToHash("0x02")
	secret := common.HexToHash("0x03")
	nonce := uint64(3)
	declaredAt := uint64(100)

	stored := &entity.Message{
		MessageHash:                  common.HexToHash("0xaa"),
		Type:                         entity.MessageTypeStake,
		GatewayAddress:               common.HexToAddress("0x11"),
		Direction:                    entity.DirectionOriginToAuxiliary,
		SourceStatus:                 entity.StatusDeclared,
		TargetStatus:                 entity.StatusUndeclared,
		GasPrice:                     decimal.NewFromInt(10),
		Nonce:                        &nonce,
		Sender:                       common.HexToAddress("0x22"),
		HashLock:                     &hashLock,
		SourceDeclarationBlockHeight: &declaredAt,
	}

	merged := stored.Merge(&entity.Message{
		MessageHash:  stored.MessageHash,
		TargetStatus: entity.StatusDeclared,
		HashLock:     &otherLock,
		Secret:       &secret,
	})

	require.Equal(t, entity.StatusDeclared, merged.SourceStatus)
	require.Equal(t, entity.StatusDeclared, merged.TargetStatus)
	// the hash lock is set at most once
	require.Equal(t, hashLock, *merged.HashLock)
	require.Equal(t, secret, *merged.Secret)
	// zero-valued update fields leave stored values untouched
	require.Equal(t, entity.MessageTypeStake, merged.Type)
	require.Equal(t, stored.GatewayAddress, merged.GatewayAddress)
	require.True(t, merged.GasPrice.Equal(decimal.NewFromInt(10)))
	require.Equal(t, uint64(3), *merged.Nonce)
	require.Equal(t, uint64(100), *merged.SourceDeclarationBlockHeight)

	// the original is not mutated
	require.Equal(t, entity.StatusUndeclared, stored.TargetStatus)
	require.Nil(t, stored.Secret)
}

func TestMessageMergeKeepsNonceZero(t *testing.T) {
	t.Parallel()

	nonce := uint64(0)
	stored := &entity.Message{MessageHash: common.HexToHash("0xaa")}

	merged := stored.Merge(&entity.Message{Nonce: &nonce})
	require.NotNil(t, merged.Nonce)
	require.Equal(t, uint64(0), *merged.Nonce)

	// an update without a nonce leaves the stored zero in place
	again := merged.Merge(&entity.Message{SourceStatus: entity.StatusDeclared})
	require.NotNil(t, again.Nonce)
	require.Equal(t, uint64(0), *again.Nonce)
}

func TestMessageMergeStatusNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	stored := &entity.Message{
		SourceStatus: entity.StatusProgressed,
		TargetStatus: entity.StatusDeclared,
	}
	merged := stored.Merge(&entity.Message{
		SourceStatus: entity.StatusDeclared,
		TargetStatus: entity.StatusUndeclared,
	})
	require.Equal(t, entity.StatusProgressed, merged.SourceStatus)
	require.Equal(t, entity.StatusDeclared, merged.TargetStatus)
}

func TestTransferRequestMergeSetOnce(t *testing.T) {
	t.Parallel()

	messageHash := common.HexToHash("0xaa")
	otherHash := common.HexToHash("0xbb")
	proxy := common.HexToAddress("0x33")

	stored := &entity.MessageTransferRequest{
		RequestHash: common.HexToHash("0x01"),
		Type:        entity.RequestTypeStake,
		Amount:      decimal.NewFromInt(500),
		Nonce:       1,
	}

	merged := stored.Merge(&entity.MessageTransferRequest{
		MessageHash: &messageHash,
		SenderProxy: &proxy,
	})
	require.Equal(t, messageHash, *merged.MessageHash)
	require.Equal(t, proxy, *merged.SenderProxy)

	again := merged.Merge(&entity.MessageTransferRequest{MessageHash: &otherHash})
	require.Equal(t, messageHash, *again.MessageHash)
}
