package conversation

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// payloadArgs is the non-indexed layout of a PayloadSent event:
// (string message, uint256 prevChange).
var payloadArgs = func() abi.Arguments {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic("building string abi type: " + err.Error())
	}

	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic("building uint256 abi type: " + err.Error())
	}

	return abi.Arguments{
		{Name: "message", Type: stringType},
		{Name: "prevChange", Type: uint256Type},
	}
}()

// maxPointer bounds prevChange values that fit a Pointer.
var maxPointer = new(big.Int).SetUint64(^uint64(0))

// DecodePayload decodes an event payload into its message and previous Pointer.
// Any layout mismatch fails with a *DecodeError; partial decodes are never
// returned.
func DecodePayload(data []byte) (string, Pointer, error) {
	values, err := payloadArgs.Unpack(data)
	if err != nil {
		return "", NoPointer, &DecodeError{Err: err}
	}

	if len(values) != len(payloadArgs) {
		return "", NoPointer, &DecodeError{
			Err: fmt.Errorf("expected %d fields, got %d", len(payloadArgs), len(values)),
		}
	}

	message, ok := values[0].(string)
	if !ok {
		return "", NoPointer, &DecodeError{Err: fmt.Errorf("message field has type %T", values[0])}
	}

	prev, ok := values[1].(*big.Int)
	if !ok || prev == nil {
		return "", NoPointer, &DecodeError{Err: fmt.Errorf("prev pointer field has type %T", values[1])}
	}

	if prev.Sign() < 0 || prev.Cmp(maxPointer) > 0 {
		return "", NoPointer, &DecodeError{Err: fmt.Errorf("prev pointer %s out of range", prev)}
	}

	return message, Pointer(prev.Uint64()), nil
}

// EncodePayload encodes a message and its previous Pointer using the same
// layout the contract emits.
func EncodePayload(message string, prev Pointer) ([]byte, error) {
	data, err := payloadArgs.Pack(message, new(big.Int).SetUint64(uint64(prev)))
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	return data, nil
}

// EncodeMessage packs a message for the write path. The contract takes the
// message as opaque bytes with no further framing.
func EncodeMessage(message string) []byte {
	return []byte(message)
}

// decodeLog turns a raw log into a Message, stamping any DecodeError with the
// log's Pointer.
func decodeLog(id ID, l Log) (Message, error) {
	text, prev, err := DecodePayload(l.Data)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.Pointer = l.Pointer
		}
		return Message{}, err
	}

	return Message{
		ConversationID: id,
		Pointer:        l.Pointer,
		Index:          l.Index,
		Prev:           prev,
		Text:           text,
	}, nil
}
