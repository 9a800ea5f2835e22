package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/openst/facilitator/ethclient"
)

// Contract binds an ABI to a deployed address for read calls, event
// decoding and transaction calldata packing.
type Contract struct {
	address common.Address
	client  ethclient.Client
	abi     abi.ABI
}

func NewContract(client ethclient.Client, addr common.Address, abi abi.ABI) *Contract {
	return &Contract{addr, client, abi}
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) AllEvents() map[string]bool {
	events := make(map[string]bool, len(c.abi.Events))
	for _, event := range c.abi.Events {
		events[event.String()] = true
	}
	return events
}

func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode abi calldata: %w", err)
	}
	res, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot call %s(...): %w", method, err)
	}
	return res, nil
}

// Pack encodes calldata for a state-changing method, to be handed to a
// transaction sender.
func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s(...) calldata: %w", method, err)
	}
	return data, nil
}

func (c *Contract) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	return ParseLog(c.abi, log)
}
