package interfaces

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxDecimals is the largest accepted token precision.
const MaxDecimals = 18

// DeploymentSalt names one suite instance and keys idempotency checks.
type DeploymentSalt string

// NewDeploymentSalt trims s and rejects an empty result.
func NewDeploymentSalt(s string) (DeploymentSalt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: deployment salt is empty", ErrValidation)
	}
	return DeploymentSalt(s), nil
}

func (s DeploymentSalt) String() string {
	return string(s)
}

// VersionTriple is the semantic version registered on the suite authority.
type VersionTriple struct {
	Major uint8 `abi:"major" json:"major"`
	Minor uint8 `abi:"minor" json:"minor"`
	Patch uint8 `abi:"patch" json:"patch"`
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (VersionTriple, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return VersionTriple{}, fmt.Errorf("%w: version %q is not major.minor.patch", ErrValidation, s)
	}
	var v [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return VersionTriple{}, fmt.Errorf("%w: version %q: %v", ErrValidation, s, err)
		}
		v[i] = uint8(n)
	}
	return VersionTriple{Major: v[0], Minor: v[1], Patch: v[2]}, nil
}

func (v VersionTriple) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// TokenDetails are the constructor parameters of the token proxy.
type TokenDetails struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NewTokenDetails validates name, symbol and decimals.
func NewTokenDetails(name, symbol string, decimals int) (TokenDetails, error) {
	name, symbol = strings.TrimSpace(name), strings.TrimSpace(symbol)
	if name == "" || symbol == "" {
		return TokenDetails{}, fmt.Errorf("%w: token name and symbol are required", ErrValidation)
	}
	if decimals < 0 || decimals > MaxDecimals {
		return TokenDetails{}, fmt.Errorf("%w: decimals %d out of range [0,%d]", ErrValidation, decimals, MaxDecimals)
	}
	return TokenDetails{Name: name, Symbol: symbol, Decimals: uint8(decimals)}, nil
}

// TopicFromName derives a claim topic as keccak256 of a human readable name.
func TopicFromName(name string) *big.Int {
	return new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
}

// ParseClaimTopic accepts a decimal or 0x-prefixed hex number, or a name
// that is hashed with TopicFromName.
func ParseClaimTopic(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty claim topic", ErrValidation)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("%w: invalid hex claim topic %q", ErrValidation, s)
		}
		return v, nil
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative claim topic %q", ErrValidation, s)
		}
		return v, nil
	}
	return TopicFromName(s), nil
}

// UniqueTopics drops repeated topics, keeping first occurrence order.
func UniqueTopics(topics []*big.Int) []*big.Int {
	seen := make(map[string]struct{}, len(topics))
	out := make([]*big.Int, 0, len(topics))
	for _, t := range topics {
		if t == nil {
			continue
		}
		if _, ok := seen[t.String()]; ok {
			continue
		}
		seen[t.String()] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Claim is a signed assertion about an identity.
type Claim struct {
	Identity  common.Address `json:"identity"`
	Topic     *big.Int       `json:"topic"`
	Scheme    *big.Int       `json:"scheme"`
	Issuer    common.Address `json:"issuer"`
	Signature []byte         `json:"signature"`
	Data      []byte         `json:"data"`
	URI       string         `json:"uri"`
}
