// Package service contains the reactive facilitator workers. Each service
// is an observer of one repository: a storage flush delivers the changed
// entities, the service re-reads current state and reacts with chain
// transactions. Services are idempotent against redelivery since every
// observed update may arrive more than once.
package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openst/facilitator/proof"
)

// ProofGenerator produces outbox proofs of a gateway account.
type ProofGenerator interface {
	GetOutboxProof(ctx context.Context, messageHashes []common.Hash, blockNumber uint64) (*proof.OutboxProof, error)
}

// TransactionSender signs and submits a contract call from the worker
// account.
type TransactionSender interface {
	Address() common.Address
	Send(ctx context.Context, to common.Address, calldata []byte, gasLimit uint64) (common.Hash, error)
}
