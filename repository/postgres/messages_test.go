package postgres_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/repository/postgres"
)

var messageRowColumns = []string{
	"message_hash", "type", "gateway_address", "direction", "source_status", "target_status",
	"gas_price", "gas_limit", "nonce", "sender", "hash_lock", "secret", "source_declaration_block_height",
}

func newMockedMessagesRepo(t *testing.T) (entity.MessagesRepo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return postgres.NewMessagesRepo("messages", db.NewWithConn(sqlx.NewDb(conn, "sqlmock"))), mock
}

// A source-side declaration arriving while the target side is already
// declared with a hash lock must keep the target's fields. The save reads
// the row with a lock, merges it and writes, all in one transaction.
func TestMessagesRepoSaveMergesUnderRowLock(t *testing.T) {
	repo, mock := newMockedMessagesRepo(t)

	messageHash := common.HexToHash("0xaa01")
	gatewayAddress := common.HexToAddress("0x11")
	sender := common.HexToAddress("0x22")
	hashLock := common.HexToHash("0x10c4")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM messages WHERE message_hash = \$1 FOR UPDATE`).
		WithArgs(messageHash.Bytes()).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).AddRow(
			messageHash.Bytes(), "stake", gatewayAddress.Bytes(), "origin_to_auxiliary",
			"undeclared", "declared", "1", "100", nil, sender.Bytes(), hashLock.Bytes(), nil, nil,
		))
	mock.ExpectExec(`(?s)INSERT INTO messages.*ON CONFLICT \(message_hash\) DO UPDATE SET`).
		WithArgs(
			messageHash.Bytes(), "stake", gatewayAddress.Bytes(), "origin_to_auxiliary",
			"declared", "declared", "1", "100", int64(7), sender.Bytes(),
			hashLock.Bytes(), nil, int64(55),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM messages WHERE message_hash = \$1`).
		WithArgs(messageHash.Bytes()).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).AddRow(
			messageHash.Bytes(), "stake", gatewayAddress.Bytes(), "origin_to_auxiliary",
			"declared", "declared", "1", "100", int64(7), sender.Bytes(), hashLock.Bytes(), nil, int64(55),
		))
	mock.ExpectCommit()

	nonce := uint64(7)
	declaredAt := uint64(55)
	saved, err := repo.Save(context.Background(), &entity.Message{
		MessageHash:                  messageHash,
		SourceStatus:                 entity.StatusDeclared,
		Nonce:                        &nonce,
		SourceDeclarationBlockHeight: &declaredAt,
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusDeclared, saved.SourceStatus)
	require.Equal(t, entity.StatusDeclared, saved.TargetStatus)
	require.NotNil(t, saved.HashLock)
	require.Equal(t, hashLock, *saved.HashLock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesRepoSaveInsertsWithDefaultStatuses(t *testing.T) {
	repo, mock := newMockedMessagesRepo(t)

	messageHash := common.HexToHash("0xaa02")
	gatewayAddress := common.HexToAddress("0x11")
	sender := common.HexToAddress("0x22")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM messages WHERE message_hash = \$1 FOR UPDATE`).
		WithArgs(messageHash.Bytes()).
		WillReturnRows(sqlmock.NewRows(messageRowColumns))
	mock.ExpectExec(`(?s)INSERT INTO messages.*ON CONFLICT \(message_hash\) DO UPDATE SET`).
		WithArgs(
			messageHash.Bytes(), "stake", gatewayAddress.Bytes(), "origin_to_auxiliary",
			"undeclared", "undeclared", "1", "100", nil, sender.Bytes(), nil, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM messages WHERE message_hash = \$1`).
		WithArgs(messageHash.Bytes()).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).AddRow(
			messageHash.Bytes(), "stake", gatewayAddress.Bytes(), "origin_to_auxiliary",
			"undeclared", "undeclared", "1", "100", nil, sender.Bytes(), nil, nil, nil,
		))
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), &entity.Message{
		MessageHash:    messageHash,
		Type:           entity.MessageTypeStake,
		GatewayAddress: gatewayAddress,
		Direction:      entity.DirectionOriginToAuxiliary,
		GasPrice:       decimal.NewFromInt(1),
		GasLimit:       decimal.NewFromInt(100),
		Sender:         sender,
	})
	require.NoError(t, err)
	require.Equal(t, entity.StatusUndeclared, saved.SourceStatus)
	require.Equal(t, entity.StatusUndeclared, saved.TargetStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
