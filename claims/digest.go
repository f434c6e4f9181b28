// Package claims computes, signs, verifies and issues OnchainID claims.
//
// A claim binds an identity contract, a numeric topic and opaque data. The
// issuer signs keccak256(abi.encode(identity, topic, data)) under the
// Ethereum signed message prefix, which is what ClaimIssuer.isClaimValid
// recomputes on chain.
package claims

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// SchemeECDSA is the claim scheme for secp256k1 signatures.
const SchemeECDSA = 1

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytesType, _   = abi.NewType("bytes", "", nil)

	digestArgs = abi.Arguments{{Type: addressType}, {Type: uint256Type}, {Type: bytesType}}
	keyArgs    = abi.Arguments{{Type: addressType}}
)

// Digest is keccak256(abi.encode(identity, topic, data)).
func Digest(identity common.Address, topic *big.Int, data []byte) (common.Hash, error) {
	if topic == nil || topic.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("%w: claim topic must be a non-negative integer", interfaces.ErrValidation)
	}
	if data == nil {
		data = []byte{}
	}
	packed, err := digestArgs.Pack(identity, topic, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: encoding claim: %v", interfaces.ErrValidation, err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// KeyHash is the identity key identifier of an account, keccak256(abi.encode(addr)).
func KeyHash(addr common.Address) [32]byte {
	packed, _ := keyArgs.Pack(addr)
	return crypto.Keccak256Hash(packed)
}

// SignDigest signs the prefixed digest and returns r||s||v with v in {27,28}.
func SignDigest(signer interfaces.Signer, digest common.Hash) ([]byte, error) {
	sig, err := signer.SignHash(accounts.TextHash(digest.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("signing claim digest: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signing claim digest: unexpected signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] < 27 {
		sig[crypto.RecoveryIDOffset] += 27
	}
	return sig, nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d", interfaces.ErrValidation, crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recovering claim signer: %v", interfaces.ErrValidation, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig is a signature of digest by pub.
func Verify(pub *ecdsa.PublicKey, digest common.Hash, sig []byte) bool {
	if pub == nil || len(sig) != crypto.SignatureLength {
		return false
	}
	return crypto.VerifySignature(crypto.FromECDSAPub(pub), accounts.TextHash(digest.Bytes()), sig[:crypto.RecoveryIDOffset])
}

// VerifySigner reports whether sig over digest recovers to signer.
func VerifySigner(signer common.Address, digest common.Hash, sig []byte) bool {
	recovered, err := RecoverSigner(digest, sig)
	return err == nil && recovered == signer
}
