package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
)

type auxiliaryChainsRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.AuxiliaryChain]
}

func NewAuxiliaryChainsRepo(table string, db *db.DB) entity.AuxiliaryChainsRepo {
	return &auxiliaryChainsRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(chain *entity.AuxiliaryChain) string {
			return chain.ChainID
		}),
	}
}

// Save merges the input into the stored row inside a transaction. The two
// anchor subscribers update opposite height columns of the same chain row;
// the row lock keeps one side from clobbering the other's height.
func (r *auxiliaryChainsRepo) Save(ctx context.Context, chain *entity.AuxiliaryChain) (*entity.AuxiliaryChain, error) {
	var saved *entity.AuxiliaryChain
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.getByChainID(ctx, tx, chain.ChainID, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		merged := chain
		if stored != nil {
			merged = stored.Merge(chain)
		}
		q, args, err := sq.Insert(r.table).
			Columns("chain_id", "origin_chain_name", "gateway_address", "co_gateway_address",
				"anchor_address", "co_anchor_address", "last_origin_block_height", "last_auxiliary_block_height").
			Values(merged.ChainID, merged.OriginChainName, merged.GatewayAddress, merged.CoGatewayAddress,
				merged.AnchorAddress, merged.CoAnchorAddress, merged.LastOriginBlockHeight, merged.LastAuxiliaryBlockHeight).
			Suffix(`ON CONFLICT (chain_id) DO UPDATE SET
				last_origin_block_height = EXCLUDED.last_origin_block_height,
				last_auxiliary_block_height = EXCLUDED.last_auxiliary_block_height, updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert auxiliary chain %s: %w", chain.ChainID, err)
		}
		saved, err = r.getByChainID(ctx, tx, chain.ChainID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.enqueue(saved)
	return saved, nil
}

func (r *auxiliaryChainsRepo) GetByChainID(ctx context.Context, chainID string) (*entity.AuxiliaryChain, error) {
	return r.getByChainID(ctx, r.db, chainID, false)
}

func (r *auxiliaryChainsRepo) getByChainID(ctx context.Context, queries db.Queries, chainID string, forUpdate bool) (*entity.AuxiliaryChain, error) {
	b := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"chain_id": chainID}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	chain := new(entity.AuxiliaryChain)
	err = queries.GetContext(ctx, chain, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get auxiliary chain: %w", err)
	}
	return chain, nil
}
