// Package evm implements the conversation Ledger and Sender over an EVM JSON-RPC
// endpoint and the PayloadSent message contract.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/logger"
	"github.com/papercomputeco/chainchat/pkg/utils"
)

// DefaultPollInterval is how often receipts and confirmations are polled.
const DefaultPollInterval = 2 * time.Second

// Backend is the JSON-RPC surface the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config is the configuration for an EVM ledger client.
type Config struct {
	// RPCURL is the websocket or HTTP endpoint. Following requires a
	// websocket endpoint.
	RPCURL string

	// Contract is the hex address of the message contract.
	Contract string

	// PrivateKey is the hex encoded signing key. Leave empty for a read-only
	// client.
	PrivateKey string

	// PublicKey optionally pins the address or public key PrivateKey must
	// belong to.
	PublicKey string

	// GasLimit for sendMessage transactions.
	GasLimit uint64

	// Confirmations required before Send returns.
	Confirmations uint64

	// PollInterval for receipt and confirmation polling.
	PollInterval time.Duration

	// Logger receives client activity. Nil discards.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Contract == "" {
		c.Contract = DefaultContract
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}
	if c.Confirmations == 0 {
		c.Confirmations = DefaultConfirmations
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
}

// Client reads and writes conversation events on an EVM chain.
type Client struct {
	backend       Backend
	contract      common.Address
	wallet        *Wallet
	gasLimit      uint64
	confirmations uint64
	pollInterval  time.Duration
	logger        *slog.Logger
}

// Dial validates the wallet and contract, then connects to cfg.RPCURL.
// Key material is checked before any network activity so a bad key never
// reaches the endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg.applyDefaults()

	wallet, contract, err := validate(cfg)
	if err != nil {
		return nil, err
	}

	endpoint := utils.RedactURL(cfg.RPCURL)
	if cfg.RPCURL == "" {
		return nil, &conversation.ConnectionError{Endpoint: "<unset>", Err: errors.New("no rpc url configured")}
	}

	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, &conversation.ConnectionError{Endpoint: endpoint, Err: err}
	}

	// Dialing an HTTP endpoint is lazy, so probe it once.
	if _, err := backend.ChainID(ctx); err != nil {
		backend.Close()
		return nil, &conversation.ConnectionError{Endpoint: endpoint, Err: err}
	}

	cfg.Logger.Info("connected to ledger",
		"endpoint", endpoint,
		"contract", contract.Hex(),
	)

	return newClient(backend, cfg, wallet, contract), nil
}

// NewClient wraps an existing Backend.
func NewClient(backend Backend, cfg Config) (*Client, error) {
	cfg.applyDefaults()

	wallet, contract, err := validate(cfg)
	if err != nil {
		return nil, err
	}

	return newClient(backend, cfg, wallet, contract), nil
}

func newClient(backend Backend, cfg Config, wallet *Wallet, contract common.Address) *Client {
	return &Client{
		backend:       backend,
		contract:      contract,
		wallet:        wallet,
		gasLimit:      cfg.GasLimit,
		confirmations: cfg.Confirmations,
		pollInterval:  cfg.PollInterval,
		logger:        cfg.Logger,
	}
}

func validate(cfg Config) (*Wallet, common.Address, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, common.Address{}, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}
	contract := common.HexToAddress(cfg.Contract)

	if cfg.PrivateKey == "" {
		if cfg.PublicKey != "" {
			return nil, contract, &conversation.WalletError{Err: errNoPrivateKey}
		}
		return nil, contract, nil
	}

	wallet, err := ParseWallet(cfg.PrivateKey, cfg.PublicKey)
	if err != nil {
		return nil, contract, err
	}

	return wallet, contract, nil
}

// Contract returns the message contract address.
func (c *Client) Contract() common.Address {
	return c.contract
}

// Wallet returns the signing wallet, or nil for a read-only client.
func (c *Client) Wallet() *Wallet {
	return c.wallet
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.backend.Close()
	return nil
}

// LastPointer calls the contract's lastMessage view.
func (c *Client) LastPointer(ctx context.Context, id conversation.ID) (conversation.Pointer, error) {
	input, err := parsedABI.Pack(methodLastMessage, [32]byte(id))
	if err != nil {
		return conversation.NoPointer, fmt.Errorf("packing %s: %w", methodLastMessage, err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: input}, nil)
	if err != nil {
		return conversation.NoPointer, err
	}

	values, err := parsedABI.Unpack(methodLastMessage, out)
	if err != nil {
		return conversation.NoPointer, fmt.Errorf("unpacking %s: %w", methodLastMessage, err)
	}
	if len(values) != 1 {
		return conversation.NoPointer, fmt.Errorf("%s returned %d values", methodLastMessage, len(values))
	}

	last, ok := values[0].(*big.Int)
	if !ok || last == nil || !last.IsUint64() {
		return conversation.NoPointer, fmt.Errorf("%s returned invalid pointer %v", methodLastMessage, values[0])
	}

	return conversation.Pointer(last.Uint64()), nil
}

// LogsAt returns the conversation's PayloadSent logs in block `at`, in log
// order.
func (c *Client) LogsAt(ctx context.Context, id conversation.ID, at conversation.Pointer) ([]conversation.Log, error) {
	block := new(big.Int).SetUint64(uint64(at))

	logs, err := c.backend.FilterLogs(ctx, c.query(id, block, block))
	if err != nil {
		return nil, err
	}

	return c.convert(id, logs), nil
}

func (c *Client) query(id conversation.ID, from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{PayloadSentTopic},
			{common.Hash(id)},
		},
	}
}

// convert drops removed logs and anything a lax node returns outside the
// filter.
func (c *Client) convert(id conversation.ID, logs []types.Log) []conversation.Log {
	out := make([]conversation.Log, 0, len(logs))
	for i := range logs {
		l, ok := c.match(id, &logs[i])
		if !ok {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (c *Client) match(id conversation.ID, l *types.Log) (conversation.Log, bool) {
	if l.Removed {
		c.logger.Warn("dropping removed log",
			"block", l.BlockNumber,
			"tx", l.TxHash.Hex(),
		)
		return conversation.Log{}, false
	}

	if l.Address != c.contract || len(l.Topics) < 2 ||
		l.Topics[0] != PayloadSentTopic || l.Topics[1] != common.Hash(id) {
		return conversation.Log{}, false
	}

	return conversation.Log{
		Pointer: conversation.Pointer(l.BlockNumber),
		Index:   l.Index,
		TxHash:  l.TxHash.Hex(),
		Data:    l.Data,
	}, true
}

var (
	_ conversation.Ledger = (*Client)(nil)
	_ conversation.Sender = (*Client)(nil)
)
