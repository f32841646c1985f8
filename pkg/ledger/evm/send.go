package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// ErrReverted is wrapped by the TransactionError of a failed sendMessage.
var ErrReverted = errors.New("transaction reverted")

// Send submits a sendMessage transaction and waits for the configured number
// of confirmations. It returns the block the event was recorded in.
func (c *Client) Send(ctx context.Context, id conversation.ID, message string) (conversation.Pointer, error) {
	if c.wallet == nil {
		return conversation.NoPointer, &conversation.WalletError{Err: errNoPrivateKey}
	}

	input, err := parsedABI.Pack(methodSendMessage, [32]byte(id), conversation.EncodeMessage(message))
	if err != nil {
		return conversation.NoPointer, &conversation.TransactionError{Err: fmt.Errorf("packing %s: %w", methodSendMessage, err)}
	}

	tx, err := c.signed(ctx, input)
	if err != nil {
		return conversation.NoPointer, &conversation.TransactionError{Err: err}
	}
	hash := tx.Hash().Hex()

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return conversation.NoPointer, &conversation.TransactionError{TxHash: hash, Err: err}
	}

	c.logger.Debug("transaction submitted",
		"conversation_id", id.String(),
		"tx", hash,
		"nonce", tx.Nonce(),
	)

	receipt, err := c.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return conversation.NoPointer, &conversation.TransactionError{TxHash: hash, Err: err}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return conversation.NoPointer, &conversation.TransactionError{TxHash: hash, Err: ErrReverted}
	}

	block := receipt.BlockNumber.Uint64()
	if err := c.waitConfirmations(ctx, block); err != nil {
		return conversation.NoPointer, &conversation.TransactionError{TxHash: hash, Err: err}
	}

	c.logger.Info("message sent",
		"conversation_id", id.String(),
		"tx", hash,
		"block", block,
		"gas_used", receipt.GasUsed,
	)

	return conversation.Pointer(block), nil
}

func (c *Client) signed(ctx context.Context, input []byte) (*types.Transaction, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain id: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.wallet.address)
	if err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggesting gas price: %w", err)
	}

	to := c.contract
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.wallet.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	return signed, nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("reading receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitConfirmations blocks until the chain holds `confirmations` blocks
// counting the inclusion block.
func (c *Client) waitConfirmations(ctx context.Context, block uint64) error {
	target := block + c.confirmations - 1

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		head, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("reading block number: %w", err)
		}
		if head >= target {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
