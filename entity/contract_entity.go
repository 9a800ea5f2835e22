package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/observer"
)

// ContractEntity records, per (contract, entity type), the last processed
// event timestamp. The event pump advances it only after handlers return,
// which is what makes ingestion resumable: a crash mid-batch leaves the
// watermark behind and the batch is redelivered.
type ContractEntity struct {
	ContractAddress common.Address `db:"contract_address"`
	EntityType      string         `db:"entity_type"`
	Timestamp       uint64         `db:"timestamp"`
	CreatedAt       *time.Time     `db:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at"`
}

type ContractEntitiesRepo interface {
	// Save upserts the watermark; a timestamp lower than the stored one is
	// ignored, the watermark never moves backwards.
	Save(ctx context.Context, ce *ContractEntity) (*ContractEntity, error)
	Get(ctx context.Context, contractAddress common.Address, entityType string) (*ContractEntity, error)

	Attach(o observer.Observer[*ContractEntity]) error
	Detach(o observer.Observer[*ContractEntity])
	Notify(ctx context.Context) error
}
