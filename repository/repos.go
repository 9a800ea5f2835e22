package repository

import (
	"context"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/repository/postgres"
)

// Notifier is the flush capability every repository exposes to the
// periodic driver loop.
type Notifier interface {
	Notify(ctx context.Context) error
}

type Repo struct {
	Messages                entity.MessagesRepo
	MessageTransferRequests entity.MessageTransferRequestsRepo
	AuxiliaryChains         entity.AuxiliaryChainsRepo
	Gateways                entity.GatewaysRepo
	Anchors                 entity.AnchorsRepo
	ContractEntities        entity.ContractEntitiesRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Messages:                postgres.NewMessagesRepo("messages", db),
		MessageTransferRequests: postgres.NewMessageTransferRequestsRepo("message_transfer_requests", db),
		AuxiliaryChains:         postgres.NewAuxiliaryChainsRepo("auxiliary_chains", db),
		Gateways:                postgres.NewGatewaysRepo("gateways", db),
		Anchors:                 postgres.NewAnchorsRepo("anchors", db),
		ContractEntities:        postgres.NewContractEntitiesRepo("contract_entities", db),
	}
}

// Notifiers lists every repository in flush order for the driver loop.
func (r *Repo) Notifiers() []Notifier {
	return []Notifier{
		r.AuxiliaryChains,
		r.Anchors,
		r.Gateways,
		r.Messages,
		r.MessageTransferRequests,
		r.ContractEntities,
	}
}
