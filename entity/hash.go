package entity

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// EIP-712 style type hashes. The exact strings are part of the protocol:
// the submitter hashes its request the same way, and correlation of chain
// events with stored rows depends on both sides agreeing byte for byte.
var (
	stakeRequestTypeHash  = crypto.Keccak256Hash([]byte("StakeRequest(uint256 amount,address beneficiary,uint256 gasPrice,uint256 gasLimit,uint256 nonce,address staker,address gateway)"))
	redeemRequestTypeHash = crypto.Keccak256Hash([]byte("RedeemRequest(uint256 amount,address beneficiary,uint256 gasPrice,uint256 gasLimit,uint256 nonce,address redeemer,address cogateway)"))
	stakeIntentTypeHash   = crypto.Keccak256Hash([]byte("StakeIntent(uint256 amount,address beneficiary,address gateway)"))
	redeemIntentTypeHash  = crypto.Keccak256Hash([]byte("RedeemIntent(uint256 amount,address beneficiary,address cogateway)"))
	messageTypeHash       = crypto.Keccak256Hash([]byte("Message(bytes32 intentHash,uint256 nonce,uint256 gasPrice,uint256 gasLimit,address sender,bytes32 hashLock)"))
)

// ComputeRequestHash derives the deterministic request hash from the
// request's own fields. It must be a pure function of those fields.
func (r *MessageTransferRequest) ComputeRequestHash() common.Hash {
	typeHash := stakeRequestTypeHash
	if r.Type == RequestTypeRedeem {
		typeHash = redeemRequestTypeHash
	}
	return crypto.Keccak256Hash(
		typeHash.Bytes(),
		padDecimal(r.Amount),
		padAddress(r.Beneficiary),
		padDecimal(r.GasPrice),
		padDecimal(r.GasLimit),
		padUint64(r.Nonce),
		padAddress(r.Sender),
		padAddress(r.GatewayAddress),
	)
}

// IntentHash derives the transfer intent hash declared on the gateway.
func IntentHash(msgType MessageType, amount decimal.Decimal, beneficiary, gatewayAddress common.Address) common.Hash {
	typeHash := stakeIntentTypeHash
	if msgType == MessageTypeRedeem {
		typeHash = redeemIntentTypeHash
	}
	return crypto.Keccak256Hash(
		typeHash.Bytes(),
		padDecimal(amount),
		padAddress(beneficiary),
		padAddress(gatewayAddress),
	)
}

// ComputeMessageHash derives the content-addressed message hash the gateway
// assigns when declaring a message for the given intent.
func ComputeMessageHash(intentHash common.Hash, nonce uint64, gasPrice, gasLimit decimal.Decimal, sender common.Address, hashLock common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		messageTypeHash.Bytes(),
		intentHash.Bytes(),
		padUint64(nonce),
		padDecimal(gasPrice),
		padDecimal(gasLimit),
		padAddress(sender),
		hashLock.Bytes(),
	)
}

// HashLockForSecret is the hash lock committing to an unlock secret.
func HashLockForSecret(secret common.Hash) common.Hash {
	return crypto.Keccak256Hash(secret.Bytes())
}

func padAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func padUint64(v uint64) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[24:], v)
	return buf
}

func padDecimal(d decimal.Decimal) []byte {
	v := d.BigInt()
	if v.Sign() < 0 {
		v = new(big.Int)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}
