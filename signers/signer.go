// Package signers provides secp256k1 signing identities and resolves which
// identity acts for each deployment role.
package signers

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix.
func NewKeySignerFromHex(hexKey string) (*KeySigner, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", interfaces.ErrValidation, err)
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

// TransactOpts returns a keyed transactor bound to ctx.
func (s *KeySigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrNoTransactOpts, err)
	}
	opts.Context = ctx
	return opts, nil
}

// SignHash signs a 32-byte hash.
func (s *KeySigner) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, s.key)
}

// PublicKey returns the signer's public key.
func (s *KeySigner) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}
