// Package wallet provides a private-key backed transaction signer.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs EVM transactions with a local private key
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	native     string
	claimed    bool
}

// Options describes the account a key belongs to
type Options struct {
	// NativeAddress is the chain-native account the EVM address is bound to.
	// Empty means the EVM address is used.
	NativeAddress string
	// Claimed reports whether the EVM address is bound to the native account
	Claimed bool
}

// FromHex creates a signer from a hex-encoded private key
func FromHex(hexKey string, opts Options) (*KeySigner, error) {
	key := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if key == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return New(privateKey, opts), nil
}

// New creates a signer from a private key
func New(privateKey *ecdsa.PrivateKey, opts Options) *KeySigner {
	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	native := opts.NativeAddress
	if native == "" {
		native = address.Hex()
	}
	return &KeySigner{
		privateKey: privateKey,
		address:    address,
		native:     native,
		claimed:    opts.Claimed,
	}
}

// Address returns the native account address
func (s *KeySigner) Address() string { return s.native }

// EVMAddress returns the address derived from the key
func (s *KeySigner) EVMAddress() common.Address { return s.address }

// IsEvmClaimed reports whether the EVM address is bound
func (s *KeySigner) IsEvmClaimed() bool { return s.claimed }

// SignTx signs tx for the given chain
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signedTx, nil
}
