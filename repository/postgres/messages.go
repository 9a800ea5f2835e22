package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
)

type messagesRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.Message]
}

func NewMessagesRepo(table string, db *db.DB) entity.MessagesRepo {
	return &messagesRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(msg *entity.Message) string {
			return msg.MessageHash.String()
		}),
	}
}

var messageColumns = []string{
	"message_hash", "type", "gateway_address", "direction", "source_status", "target_status",
	"gas_price", "gas_limit", "nonce", "sender", "hash_lock", "secret", "source_declaration_block_height",
}

// Save merges the input into the stored row inside a transaction. The
// gateway and cogateway subscribers fold into the same row from different
// goroutines; the row lock keeps one side's status and hash lock from
// overwriting the other's.
func (r *messagesRepo) Save(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	var saved *entity.Message
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.getByMessageHash(ctx, tx, msg.MessageHash, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		merged := msg
		if stored != nil {
			merged = stored.Merge(msg)
		} else {
			if merged.SourceStatus == "" {
				merged.SourceStatus = entity.StatusUndeclared
			}
			if merged.TargetStatus == "" {
				merged.TargetStatus = entity.StatusUndeclared
			}
		}
		q, args, err := sq.Insert(r.table).
			Columns(messageColumns...).
			Values(merged.MessageHash, merged.Type, merged.GatewayAddress, merged.Direction, merged.SourceStatus,
				merged.TargetStatus, merged.GasPrice, merged.GasLimit, merged.Nonce, merged.Sender,
				merged.HashLock, merged.Secret, merged.SourceDeclarationBlockHeight).
			Suffix(`ON CONFLICT (message_hash) DO UPDATE SET
				type = EXCLUDED.type, gateway_address = EXCLUDED.gateway_address, direction = EXCLUDED.direction,
				source_status = EXCLUDED.source_status, target_status = EXCLUDED.target_status,
				gas_price = EXCLUDED.gas_price, gas_limit = EXCLUDED.gas_limit, nonce = EXCLUDED.nonce,
				sender = EXCLUDED.sender, hash_lock = EXCLUDED.hash_lock, secret = EXCLUDED.secret,
				source_declaration_block_height = EXCLUDED.source_declaration_block_height, updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert message %s: %w", msg.MessageHash, err)
		}
		saved, err = r.getByMessageHash(ctx, tx, msg.MessageHash, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.enqueue(saved)
	return saved, nil
}

func (r *messagesRepo) GetByMessageHash(ctx context.Context, messageHash common.Hash) (*entity.Message, error) {
	return r.getByMessageHash(ctx, r.db, messageHash, false)
}

func (r *messagesRepo) getByMessageHash(ctx context.Context, q db.Queries, messageHash common.Hash, forUpdate bool) (*entity.Message, error) {
	b := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"message_hash": messageHash}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msg := new(entity.Message)
	err = q.GetContext(ctx, msg, query, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get message: %w", err)
	}
	return msg, nil
}

func (r *messagesRepo) HasPendingOriginMessages(ctx context.Context, blockHeight uint64, gatewayAddress common.Address) (bool, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"gateway_address": gatewayAddress}).
		Where(sq.LtOrEq{"source_declaration_block_height": blockHeight}).
		Where(sq.NotEq{"source_status": []entity.MessageStatus{entity.StatusProgressed, entity.StatusRevoked}}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var count int
	err = r.db.GetContext(ctx, &count, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't count pending origin messages: %w", err)
	}
	return count > 0, nil
}

func (r *messagesRepo) FindUnconfirmed(ctx context.Context, gatewayAddress common.Address, blockHeight uint64) ([]*entity.Message, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{
			"gateway_address": gatewayAddress,
			"source_status":   entity.StatusDeclared,
			"target_status":   entity.StatusUndeclared,
		}).
		Where(sq.LtOrEq{"source_declaration_block_height": blockHeight}).
		OrderBy("nonce ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var msgs []*entity.Message
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find unconfirmed messages: %w", err)
	}
	return msgs, nil
}

func (r *messagesRepo) FindByGateway(ctx context.Context, gatewayAddress common.Address) ([]*entity.Message, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"gateway_address": gatewayAddress}).
		OrderBy("nonce ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var msgs []*entity.Message
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find messages by gateway: %w", err)
	}
	return msgs, nil
}
