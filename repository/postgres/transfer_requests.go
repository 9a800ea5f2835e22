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

type transferRequestsRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.MessageTransferRequest]
}

func NewMessageTransferRequestsRepo(table string, db *db.DB) entity.MessageTransferRequestsRepo {
	return &transferRequestsRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(req *entity.MessageTransferRequest) string {
			return req.RequestHash.String()
		}),
	}
}

// Save merges the input into the stored row inside a transaction so a
// proxy registration and an acceptance racing on the same request cannot
// drop each other's set-once fields.
func (r *transferRequestsRepo) Save(ctx context.Context, req *entity.MessageTransferRequest) (*entity.MessageTransferRequest, error) {
	var saved *entity.MessageTransferRequest
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.getOne(ctx, tx, sq.Eq{"request_hash": req.RequestHash}, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		merged := req
		if stored != nil {
			merged = stored.Merge(req)
		}
		q, args, err := sq.Insert(r.table).
			Columns("request_hash", "request_type", "amount", "beneficiary", "gas_price", "gas_limit",
				"nonce", "sender", "gateway_address", "sender_proxy", "block_number", "message_hash").
			Values(merged.RequestHash, merged.Type, merged.Amount, merged.Beneficiary, merged.GasPrice,
				merged.GasLimit, merged.Nonce, merged.Sender, merged.GatewayAddress, merged.SenderProxy,
				merged.BlockNumber, merged.MessageHash).
			Suffix(`ON CONFLICT (request_hash) DO UPDATE SET
				sender_proxy = EXCLUDED.sender_proxy, message_hash = EXCLUDED.message_hash, updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert transfer request %s: %w", req.RequestHash, err)
		}
		saved, err = r.getOne(ctx, tx, sq.Eq{"request_hash": req.RequestHash}, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.enqueue(saved)
	return saved, nil
}

func (r *transferRequestsRepo) GetByRequestHash(ctx context.Context, requestHash common.Hash) (*entity.MessageTransferRequest, error) {
	return r.getOne(ctx, r.db, sq.Eq{"request_hash": requestHash}, false)
}

func (r *transferRequestsRepo) GetByMessageHash(ctx context.Context, messageHash common.Hash) (*entity.MessageTransferRequest, error) {
	return r.getOne(ctx, r.db, sq.Eq{"message_hash": messageHash}, false)
}

func (r *transferRequestsRepo) GetBySenderProxyAndNonce(ctx context.Context, senderProxy common.Address, nonce uint64) (*entity.MessageTransferRequest, error) {
	return r.getOne(ctx, r.db, sq.Eq{"sender_proxy": senderProxy, "nonce": nonce}, false)
}

func (r *transferRequestsRepo) getOne(ctx context.Context, queries db.Queries, cond sq.Eq, forUpdate bool) (*entity.MessageTransferRequest, error) {
	b := sq.Select("*").
		From(r.table).
		Where(cond).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	req := new(entity.MessageTransferRequest)
	err = queries.GetContext(ctx, req, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get transfer request: %w", err)
	}
	return req, nil
}

func (r *transferRequestsRepo) GetWithNullMessageHash(ctx context.Context, requestType entity.RequestType) ([]*entity.MessageTransferRequest, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"request_type": requestType, "message_hash": nil}).
		OrderBy("block_number ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var reqs []*entity.MessageTransferRequest
	err = r.db.SelectContext(ctx, &reqs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find transfer requests without message hash: %w", err)
	}
	return reqs, nil
}
