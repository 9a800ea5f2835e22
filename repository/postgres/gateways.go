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

type gatewaysRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.Gateway]
}

func NewGatewaysRepo(table string, db *db.DB) entity.GatewaysRepo {
	return &gatewaysRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(gateway *entity.Gateway) string {
			return gateway.GatewayAddress.String()
		}),
	}
}

// Save merges the input into the stored row inside a transaction. Proof
// submissions and gateway event folds race on the same row; the row lock
// keeps the proven-height max rule intact.
func (r *gatewaysRepo) Save(ctx context.Context, gateway *entity.Gateway) (*entity.Gateway, error) {
	var saved *entity.Gateway
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.getByAddress(ctx, tx, gateway.GatewayAddress, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		merged := gateway
		if stored != nil {
			merged = stored.Merge(gateway)
		}
		q, args, err := sq.Insert(r.table).
			Columns("gateway_address", "chain_id", "gateway_type", "remote_gateway_address", "token_address",
				"anchor_address", "bounty", "activated", "last_remote_gateway_proven_block_height").
			Values(merged.GatewayAddress, merged.ChainID, merged.Type, merged.RemoteGatewayAddress, merged.TokenAddress,
				merged.AnchorAddress, merged.Bounty, merged.Activated, merged.LastRemoteGatewayProvenBlockHeight).
			Suffix(`ON CONFLICT (gateway_address) DO UPDATE SET
				activated = EXCLUDED.activated, bounty = EXCLUDED.bounty,
				last_remote_gateway_proven_block_height = EXCLUDED.last_remote_gateway_proven_block_height,
				updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert gateway %s: %w", gateway.GatewayAddress, err)
		}
		saved, err = r.getByAddress(ctx, tx, gateway.GatewayAddress, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.enqueue(saved)
	return saved, nil
}

func (r *gatewaysRepo) GetByAddress(ctx context.Context, gatewayAddress common.Address) (*entity.Gateway, error) {
	return r.getByAddress(ctx, r.db, gatewayAddress, false)
}

func (r *gatewaysRepo) getByAddress(ctx context.Context, queries db.Queries, gatewayAddress common.Address, forUpdate bool) (*entity.Gateway, error) {
	b := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"gateway_address": gatewayAddress}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	gateway := new(entity.Gateway)
	err = queries.GetContext(ctx, gateway, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get gateway: %w", err)
	}
	return gateway, nil
}
