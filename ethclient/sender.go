package ethclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sender signs and submits transactions from a single worker account.
// Calls are serialized so concurrent services never race on the account nonce.
type Sender struct {
	mu      sync.Mutex
	client  Client
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSender(client Client, privateKeyHex string) (*Sender, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("can't parse worker private key: %w", err)
	}
	return &Sender{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *Sender) Address() common.Address {
	return s.address
}

// Send signs a legacy transaction carrying calldata to the given contract and
// submits it. A zero gasLimit triggers gas estimation first, so a reverting
// call fails here instead of burning gas on-chain.
func (s *Sender) Send(ctx context.Context, to common.Address, calldata []byte, gasLimit uint64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get pending nonce for %s: %w", s.address, err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit, err = s.client.EstimateGas(ctx, ethereum.CallMsg{
			From: s.address,
			To:   &to,
			Data: calldata,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("can't estimate gas for call to %s: %w", to, err)
		}
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.client.NetworkID()), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't sign transaction: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("can't send transaction to %s: %w", to, err)
	}
	return signedTx.Hash(), nil
}
