package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DefaultContract is the deployed message sender contract.
	DefaultContract = "0x15aE865d0645816d8EEAB0b7496fdd24227d1801"

	// DefaultGasLimit caps the gas of a sendMessage transaction.
	DefaultGasLimit uint64 = 250_000

	// DefaultConfirmations is how many blocks, the inclusion block counted,
	// must exist before a send is reported successful.
	DefaultConfirmations uint64 = 1

	// PayloadSentSignature is the canonical event signature; its keccak hash is
	// topic0 of every conversation event.
	PayloadSentSignature = "PayloadSent(bytes32,bytes,uint256)"
)

// PayloadSentTopic is topic0 of PayloadSent logs.
var PayloadSentTopic = crypto.Keccak256Hash([]byte(PayloadSentSignature))

const (
	methodSendMessage = "sendMessage"
	methodLastMessage = "lastMessage"
)

const senderABI = `[
  {
    "type": "function",
    "name": "sendMessage",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "conversationId", "type": "bytes32"},
      {"name": "message", "type": "bytes"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "lastMessage",
    "stateMutability": "view",
    "inputs": [
      {"name": "conversationId", "type": "bytes32"}
    ],
    "outputs": [
      {"name": "", "type": "uint256"}
    ]
  },
  {
    "type": "event",
    "name": "PayloadSent",
    "anonymous": false,
    "inputs": [
      {"name": "conversationId", "type": "bytes32", "indexed": true},
      {"name": "message", "type": "bytes", "indexed": false},
      {"name": "prevChange", "type": "uint256", "indexed": false}
    ]
  }
]`

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(senderABI))
	if err != nil {
		panic("parsing sender abi: " + err.Error())
	}
	return parsed
}()

// IsContractAddress reports whether s is a valid hex contract address.
func IsContractAddress(s string) bool {
	return common.IsHexAddress(s)
}
