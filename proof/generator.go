// Package proof builds Merkle Patricia proofs of gateway outbox entries,
// in the shape the remote gateway's inbox verification expects.
package proof

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/openst/facilitator/ethclient"
)

// OutboxStorageIndex is the storage slot of the messageBox outbox mapping
// in the gateway contract layout. Both gateway and cogateway share it.
const OutboxStorageIndex = 7

// OutboxProof carries the RLP-serialized account and storage proofs for a
// gateway account at a specific block.
type OutboxProof struct {
	BlockNumber *big.Int
	// EncodedAccountValue is rlp([nonce, balance, storageRoot, codeHash]).
	EncodedAccountValue []byte
	// SerializedAccountProof is the rlp-encoded list of account proof nodes.
	SerializedAccountProof []byte
	// StorageProofs holds one rlp-encoded node list per requested key, in
	// request order. Empty when no keys were requested.
	StorageProofs [][]byte
}

type Generator struct {
	client  ethclient.Client
	address common.Address
}

func NewGenerator(client ethclient.Client, address common.Address) *Generator {
	return &Generator{client: client, address: address}
}

// StorageKey computes the storage slot of a mapping entry keyed by hash, as
// keccak256(pad32(key) . pad32(index)).
func StorageKey(key common.Hash, index uint64) common.Hash {
	return crypto.Keccak256Hash(
		key.Bytes(),
		common.LeftPadBytes(new(big.Int).SetUint64(index).Bytes(), 32),
	)
}

// GetOutboxProof proves the gateway account, and optionally its outbox entries
// for the given message hashes, at the given block.
func (g *Generator) GetOutboxProof(ctx context.Context, messageHashes []common.Hash, blockNumber uint64) (*OutboxProof, error) {
	keys := make([]common.Hash, len(messageHashes))
	for i, h := range messageHashes {
		keys[i] = StorageKey(h, OutboxStorageIndex)
	}

	res, err := g.client.GetProof(ctx, g.address, keys, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("can't get proof for %s at block %d: %w", g.address, blockNumber, err)
	}

	accountValue, err := encodeAccount(res)
	if err != nil {
		return nil, err
	}
	accountProof, err := serializeProofNodes(res.AccountProof)
	if err != nil {
		return nil, fmt.Errorf("can't serialize account proof: %w", err)
	}

	storageProofs := make([][]byte, len(res.StorageProof))
	for i, sp := range res.StorageProof {
		storageProofs[i], err = serializeProofNodes(sp.Proof)
		if err != nil {
			return nil, fmt.Errorf("can't serialize storage proof for key %s: %w", sp.Key, err)
		}
	}

	return &OutboxProof{
		BlockNumber:            new(big.Int).SetUint64(blockNumber),
		EncodedAccountValue:    accountValue,
		SerializedAccountProof: accountProof,
		StorageProofs:          storageProofs,
	}, nil
}

func encodeAccount(res *ethclient.AccountResult) ([]byte, error) {
	account := []interface{}{
		uint64(res.Nonce),
		res.Balance.ToInt(),
		res.StorageHash,
		res.CodeHash,
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return nil, fmt.Errorf("can't rlp-encode account value: %w", err)
	}
	return encoded, nil
}

// serializeProofNodes re-encodes a list of already rlp-encoded trie nodes as
// one rlp list, which is what the inbox verifier consumes.
func serializeProofNodes(nodes []string) ([]byte, error) {
	rawNodes := make([]rlp.RawValue, len(nodes))
	for i, node := range nodes {
		decoded, err := hexutil.Decode(node)
		if err != nil {
			return nil, fmt.Errorf("can't decode proof node %d: %w", i, err)
		}
		rawNodes[i] = decoded
	}
	return rlp.EncodeToBytes(rawNodes)
}
