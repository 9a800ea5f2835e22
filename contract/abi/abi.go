package abi

//nolint:golint
import (
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed gateway.json
var gatewayJSONABI string

//go:embed cogateway.json
var coGatewayJSONABI string

//go:embed anchor.json
var anchorJSONABI string

//go:embed composer.json
var composerJSONABI string

var (
	GatewayABI   abi.ABI
	CoGatewayABI abi.ABI
	AnchorABI    abi.ABI
	ComposerABI  abi.ABI
)

// Event signature constants, formatted exactly as abi.Event.String()
// renders them. Handlers are registered under these keys.
const (
	StakeRequested             = "event StakeRequested(uint256 amount, address beneficiary, uint256 gasPrice, uint256 gasLimit, uint256 nonce, address staker, address gateway, bytes32 stakeRequestHash)"
	RedeemRequested            = "event RedeemRequested(uint256 amount, address beneficiary, uint256 gasPrice, uint256 gasLimit, uint256 nonce, address redeemer, address cogateway, bytes32 redeemRequestHash)"
	StakeIntentDeclared        = "event StakeIntentDeclared(bytes32 indexed _messageHash, address _staker, uint256 _stakerNonce, uint256 _amount)"
	RedeemIntentDeclared       = "event RedeemIntentDeclared(bytes32 indexed _messageHash, address _redeemer, uint256 _redeemerNonce, uint256 _amount)"
	StakeIntentConfirmed       = "event StakeIntentConfirmed(bytes32 indexed _messageHash, address _staker, uint256 _stakerNonce, address _beneficiary, uint256 _amount, uint256 _blockHeight, bytes32 _hashLock)"
	RedeemIntentConfirmed      = "event RedeemIntentConfirmed(bytes32 indexed _messageHash, address _redeemer, uint256 _redeemerNonce, address _beneficiary, uint256 _amount, uint256 _blockHeight, bytes32 _hashLock)"
	StakeProgressed            = "event StakeProgressed(bytes32 indexed _messageHash, address _staker, uint256 _stakerNonce, uint256 _amount, bool _proofProgress, bytes32 _unlockSecret)"
	MintProgressed             = "event MintProgressed(bytes32 indexed _messageHash, address _staker, address _beneficiary, uint256 _amount, bool _proofProgress, bytes32 _unlockSecret)"
	RedeemProgressed           = "event RedeemProgressed(bytes32 indexed _messageHash, address _redeemer, uint256 _redeemerNonce, uint256 _amount, bool _proofProgress, bytes32 _unlockSecret)"
	UnstakeProgressed          = "event UnstakeProgressed(bytes32 indexed _messageHash, address _redeemer, address _beneficiary, uint256 _amount, bool _proofProgress, bytes32 _unlockSecret)"
	RevertStakeIntentDeclared  = "event RevertStakeIntentDeclared(bytes32 indexed _messageHash, address _staker, uint256 _stakerNonce, uint256 _amount)"
	RevertRedeemIntentDeclared = "event RevertRedeemIntentDeclared(bytes32 indexed _messageHash, address _redeemer, uint256 _redeemerNonce, uint256 _amount)"
	StakeReverted              = "event StakeReverted(bytes32 indexed _messageHash, address _staker, uint256 _stakerNonce, uint256 _amount)"
	RedeemReverted             = "event RedeemReverted(bytes32 indexed _messageHash, address _redeemer, uint256 _redeemerNonce, uint256 _amount)"
	GatewayProven              = "event GatewayProven(address _gateway, uint256 _blockHeight)"
	StateRootAvailable         = "event StateRootAvailable(uint256 _blockHeight, bytes32 _stateRoot)"
)

// Method names used when packing transactions.
const (
	MethodProveGateway        = "proveGateway"
	MethodConfirmStakeIntent  = "confirmStakeIntent"
	MethodConfirmRedeemIntent = "confirmRedeemIntent"
	MethodProgressStake       = "progressStake"
	MethodProgressMint        = "progressMint"
	MethodProgressRedeem      = "progressRedeem"
	MethodProgressUnstake     = "progressUnstake"
	MethodAcceptStakeRequest  = "acceptStakeRequest"
	MethodAcceptRedeemRequest = "acceptRedeemRequest"
)

func init() {
	GatewayABI = mustParse(gatewayJSONABI)
	CoGatewayABI = mustParse(coGatewayJSONABI)
	AnchorABI = mustParse(anchorJSONABI)
	ComposerABI = mustParse(composerJSONABI)
}

func mustParse(blob string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(blob))
	if err != nil {
		panic(err)
	}
	return parsed
}
