// Package handler folds decoded contract events into the entity repositories.
// Handlers receive all events of one type observed in a block batch, so that
// re-delivered ranges converge to the same stored state.
package handler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// EventRecord is one decoded contract event.
type EventRecord struct {
	ContractAddress common.Address
	BlockNumber     uint64
	TransactionHash common.Hash
	LogIndex        uint
	Data            map[string]interface{}
}

// EventHandler consumes all events of one signature from a block batch, in
// log order.
type EventHandler func(ctx context.Context, events []*EventRecord) error

func (e *EventRecord) hash(key string) common.Hash {
	switch v := e.Data[key].(type) {
	case common.Hash:
		return v
	case [32]byte:
		return common.Hash(v)
	default:
		return common.Hash{}
	}
}

func (e *EventRecord) address(key string) common.Address {
	v, _ := e.Data[key].(common.Address)
	return v
}

func (e *EventRecord) bigInt(key string) *big.Int {
	v, _ := e.Data[key].(*big.Int)
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (e *EventRecord) uint64Value(key string) uint64 {
	return e.bigInt(key).Uint64()
}

func (e *EventRecord) decimalValue(key string) decimal.Decimal {
	return decimal.NewFromBigInt(e.bigInt(key), 0)
}
