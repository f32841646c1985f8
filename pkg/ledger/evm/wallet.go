package evm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

var errNoPrivateKey = errors.New("no private key configured")

// Wallet is the signing identity used for the write path.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// ParseWallet parses a hex private key. If publicKey is set, it must be either
// the wallet's address or its uncompressed public key, otherwise the pair is
// rejected. Every failure is a *conversation.WalletError.
func ParseWallet(privateKey, publicKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strip0x(strings.TrimSpace(privateKey)))
	if err != nil {
		return nil, &conversation.WalletError{Err: fmt.Errorf("parsing private key: %w", err)}
	}

	w := &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}

	if strings.TrimSpace(publicKey) == "" {
		return w, nil
	}

	expected, err := addressFromPublic(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, &conversation.WalletError{Err: fmt.Errorf("parsing public key: %w", err)}
	}

	if expected != w.address {
		return nil, &conversation.WalletError{
			Err: fmt.Errorf("public key %s does not match private key address %s", expected.Hex(), w.address.Hex()),
		}
	}

	return w, nil
}

// Address returns the wallet's account address.
func (w *Wallet) Address() common.Address {
	return w.address
}

func (w *Wallet) String() string {
	return w.address.Hex()
}

func addressFromPublic(s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}

	b, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return common.Address{}, err
	}

	// Accept the 64 byte form without the 0x04 uncompressed prefix.
	if len(b) == 64 {
		b = append([]byte{0x04}, b...)
	}

	pub, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(*pub), nil
}

func strip0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
