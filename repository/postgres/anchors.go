package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
)

type anchorsRepo struct {
	*basePostgresRepo
	*observedRepo[*entity.Anchor]
}

func NewAnchorsRepo(table string, db *db.DB) entity.AnchorsRepo {
	return &anchorsRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		observedRepo: newObservedRepo(func(anchor *entity.Anchor) string {
			return anchor.AnchorGA
		}),
	}
}

// Save checks the monotonicity rule and writes inside a transaction so
// two concurrent anchorings cannot both pass the staleness check.
func (r *anchorsRepo) Save(ctx context.Context, anchor *entity.Anchor) (*entity.Anchor, error) {
	var saved *entity.Anchor
	err := r.db.WithTx(ctx, func(tx *db.Tx) error {
		stored, err := r.getByGlobalAddress(ctx, tx, anchor.AnchorGA, true)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		// Anchoring is strictly monotonic. A non-increasing height fails the
		// whole save, nothing is written.
		if stored != nil && anchor.LastAnchoredBlockNumber <= stored.LastAnchoredBlockNumber {
			return fmt.Errorf("anchor %s at %d, attempted %d: %w",
				anchor.AnchorGA, stored.LastAnchoredBlockNumber, anchor.LastAnchoredBlockNumber, entity.ErrStaleAnchor)
		}
		q, args, err := sq.Insert(r.table).
			Columns("anchor_ga", "last_anchored_block_number").
			Values(anchor.AnchorGA, anchor.LastAnchoredBlockNumber).
			Suffix(`ON CONFLICT (anchor_ga) DO UPDATE SET
				last_anchored_block_number = EXCLUDED.last_anchored_block_number, updated_at = NOW()`).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't upsert anchor %s: %w", anchor.AnchorGA, err)
		}
		saved, err = r.getByGlobalAddress(ctx, tx, anchor.AnchorGA, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.enqueue(saved)
	return saved, nil
}

func (r *anchorsRepo) GetByGlobalAddress(ctx context.Context, anchorGA string) (*entity.Anchor, error) {
	return r.getByGlobalAddress(ctx, r.db, anchorGA, false)
}

func (r *anchorsRepo) getByGlobalAddress(ctx context.Context, queries db.Queries, anchorGA string, forUpdate bool) (*entity.Anchor, error) {
	b := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"anchor_ga": anchorGA}).
		PlaceholderFormat(sq.Dollar)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	anchor := new(entity.Anchor)
	err = queries.GetContext(ctx, anchor, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("can't get anchor: %w", err)
	}
	return anchor, nil
}
