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

type contractEntitiesRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.ContractEntity]
}

func NewContractEntitiesRepo(table string, db *db.DB) entity.ContractEntitiesRepo {
	return &contractEntitiesRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(ce *entity.ContractEntity) string {
			return ce.ContractAddress.String() + ":" + ce.EntityType
		}),
	}
}

// Save advances the watermark inside a transaction so two concurrent
// saves cannot both pass the staleness check and write out of order.
func (r *contractEntitiesRepo) Save(ctx context.Context, ce *entity.ContractEntity) (*entity.ContractEntity, error) {
	var saved *entity.ContractEntity
	var written bool
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.get(ctx, tx, ce.ContractAddress, ce.EntityType, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		// The watermark never moves backwards; a stale save is a no-op.
		if stored != nil && ce.Timestamp <= stored.Timestamp {
			saved = stored
			return nil
		}
		q, args, err := sq.Insert(r.table).
			Columns("contract_address", "entity_type", "timestamp").
			Values(ce.ContractAddress, ce.EntityType, ce.Timestamp).
			Suffix(`ON CONFLICT (contract_address, entity_type) DO UPDATE SET
				timestamp = EXCLUDED.timestamp, updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert contract entity %s/%s: %w", ce.ContractAddress, ce.EntityType, err)
		}
		saved, err = r.get(ctx, tx, ce.ContractAddress, ce.EntityType, false)
		written = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if written {
		r.enqueue(saved)
	}
	return saved, nil
}

func (r *contractEntitiesRepo) Get(ctx context.Context, contractAddress common.Address, entityType string) (*entity.ContractEntity, error) {
	return r.get(ctx, r.db, contractAddress, entityType, false)
}

func (r *contractEntitiesRepo) get(ctx context.Context, queries db.Queries, contractAddress common.Address, entityType string, forUpdate bool) (*entity.ContractEntity, error) {
	b := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"contract_address": contractAddress, "entity_type": entityType}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	ce := new(entity.ContractEntity)
	err = queries.GetContext(ctx, ce, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get contract entity: %w", err)
	}
	return ce, nil
}
