package conversation

import (
	"errors"
	"fmt"
)

// ErrBrokenChain is returned when a non-sentinel Pointer yields no events for the
// conversation, so the backward chain cannot be followed any further.
var ErrBrokenChain = errors.New("no event recorded at pointer")

// ErrNilSink is returned when Follow is called without a Sink.
var ErrNilSink = errors.New("nil message sink")

// ConnectionError indicates the ledger endpoint could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WalletError indicates malformed or inconsistent key material.
type WalletError struct {
	Err error
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("invalid wallet: %v", e.Err)
}

func (e *WalletError) Unwrap() error {
	return e.Err
}

// ChainQueryError indicates a point query or subscription against the ledger
// failed.
type ChainQueryError struct {
	// Op names the failed query, e.g. "last pointer", "logs", "subscribe".
	Op string

	// Pointer is the position being queried, if any.
	Pointer Pointer

	Err error
}

func (e *ChainQueryError) Error() string {
	if e.Pointer.IsNone() {
		return fmt.Sprintf("chain query %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("chain query %s at %d: %v", e.Op, e.Pointer, e.Err)
}

func (e *ChainQueryError) Unwrap() error {
	return e.Err
}

// DecodeError indicates an event payload does not match the
// (string, uint256) layout.
type DecodeError struct {
	// Pointer is where the malformed event was recorded, if known.
	Pointer Pointer

	Err error
}

func (e *DecodeError) Error() string {
	if e.Pointer.IsNone() {
		return fmt.Sprintf("decoding event payload: %v", e.Err)
	}

	return fmt.Sprintf("decoding event at %d: %v", e.Pointer, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransactionError indicates a message submission failed or did not reach the
// required number of confirmations.
type TransactionError struct {
	TxHash string
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash == "" {
		return fmt.Sprintf("sending message: %v", e.Err)
	}

	return fmt.Sprintf("sending message in tx %s: %v", e.TxHash, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
