package ledgertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

var claimDigestArgs = func() abi.Arguments {
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)
	bytesT, _ := abi.NewType("bytes", "", nil)
	return abi.Arguments{{Type: addressT}, {Type: uintT}, {Type: bytesT}}
}()

var claimIDArgs = func() abi.Arguments {
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: addressT}, {Type: uintT}}
}()

// KeyOf is the OnchainID key identifier of an account: keccak256(abi.encode(addr)).
func KeyOf(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(common.LeftPadBytes(addr.Bytes(), 32))
}

// ClaimID is the identifier under which an identity stores a claim.
func ClaimID(issuer common.Address, topic *big.Int) common.Hash {
	packed, _ := claimIDArgs.Pack(issuer, topic)
	return crypto.Keccak256Hash(packed)
}

// identity emulates an OnchainID Identity, an IdentityProxy or a ClaimIssuer.
type identity struct {
	name        string
	self        common.Address
	keys        map[common.Hash]map[uint64]bool
	claims      map[common.Hash]interfaces.Claim
	claimIssuer bool
}

func newIdentity(name string, self, managementKey common.Address) *identity {
	id := &identity{
		name:   name,
		self:   self,
		keys:   map[common.Hash]map[uint64]bool{},
		claims: map[common.Hash]interfaces.Claim{},
	}
	if managementKey != (common.Address{}) {
		id.keys[KeyOf(managementKey)] = map[uint64]bool{contracts.KeyPurposeManagement: true}
	}
	return id
}

func (id *identity) kind() string { return id.name }

// keyHasPurpose follows OnchainID: management keys hold every purpose.
func (id *identity) keyHasPurpose(key common.Hash, purpose uint64) bool {
	purposes := id.keys[key]
	return purposes[contracts.KeyPurposeManagement] || purposes[purpose]
}

func (id *identity) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	switch method {
	case "addKey":
		key, ok1 := args[0].([32]byte)
		purpose, ok2 := args[1].(*big.Int)
		if !ok1 || !ok2 {
			return nil, badArgs(method)
		}
		if from != id.self && !id.keyHasPurpose(KeyOf(from), contracts.KeyPurposeManagement) {
			return nil, revert("Permissions: Sender does not have management key")
		}
		purposes := id.keys[key]
		if purposes == nil {
			purposes = map[uint64]bool{}
			id.keys[key] = purposes
		}
		if purposes[purpose.Uint64()] {
			return nil, revert("Conflict: Key already has purpose")
		}
		purposes[purpose.Uint64()] = true
		return nil, nil

	case "addClaim":
		topic, ok1 := args[0].(*big.Int)
		scheme, ok2 := args[1].(*big.Int)
		issuer, ok3 := args[2].(common.Address)
		sig, ok4 := args[3].([]byte)
		data, ok5 := args[4].([]byte)
		uri, ok6 := args[5].(string)
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			return nil, badArgs(method)
		}
		if from != id.self && !id.keyHasPurpose(KeyOf(from), contracts.KeyPurposeClaim) {
			return nil, revert("Permissions: Sender does not have claim signer key")
		}
		if issuer != id.self {
			ci, ok := lookup[*identity](c, issuer)
			if !ok || !ci.claimIssuer || !ci.isClaimValid(id.self, topic, sig, data) {
				return nil, revert("invalid claim")
			}
		}

		claimID := ClaimID(issuer, topic)
		id.claims[claimID] = interfaces.Claim{
			Identity: id.self, Topic: topic, Scheme: scheme, Issuer: issuer,
			Signature: sig, Data: data, URI: uri,
		}

		event := contracts.MustABI(contracts.Identity).Events["ClaimAdded"]
		payload, err := event.Inputs.NonIndexed().Pack(scheme, sig, data, uri)
		if err != nil {
			return nil, err
		}
		return []*types.Log{{
			Address: id.self,
			Topics: []common.Hash{
				event.ID,
				claimID,
				common.BigToHash(topic),
				common.BytesToHash(issuer.Bytes()),
			},
			Data: payload,
		}}, nil
	}
	return nil, revert(id.name + ": unsupported method " + method)
}

func (id *identity) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "keyHasPurpose":
		key, ok1 := args[0].([32]byte)
		purpose, ok2 := args[1].(*big.Int)
		if !ok1 || !ok2 {
			return nil, badArgs(method)
		}
		return []interface{}{id.keyHasPurpose(key, purpose.Uint64())}, nil

	case "getClaimIdsByTopic":
		topic, ok := args[0].(*big.Int)
		if !ok {
			return nil, badArgs(method)
		}
		ids := [][32]byte{}
		for claimID, claim := range id.claims {
			if claim.Topic.Cmp(topic) == 0 {
				ids = append(ids, claimID)
			}
		}
		return []interface{}{ids}, nil

	case "isClaimValid":
		if !id.claimIssuer {
			break
		}
		subject, ok1 := args[0].(common.Address)
		topic, ok2 := args[1].(*big.Int)
		sig, ok3 := args[2].([]byte)
		data, ok4 := args[3].([]byte)
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, badArgs(method)
		}
		return []interface{}{id.isClaimValid(subject, topic, sig, data)}, nil
	}
	return nil, revert(id.name + ": unsupported query " + method)
}

// isClaimValid recomputes the claim digest, recovers the signer from the
// prefixed message hash and checks that it holds a claim key.
func (id *identity) isClaimValid(subject common.Address, topic *big.Int, sig, data []byte) bool {
	if len(sig) != 65 {
		return false
	}
	packed, err := claimDigestArgs.Pack(subject, topic, data)
	if err != nil {
		return false
	}
	digest := crypto.Keccak256(packed)

	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest), normalized)
	if err != nil {
		return false
	}
	return id.keyHasPurpose(KeyOf(crypto.PubkeyToAddress(*pub)), contracts.KeyPurposeClaim)
}

// hasValidClaim reports whether the identity holds a claim on topic from
// issuer that the issuer still considers valid.
func (id *identity) hasValidClaim(c *Chain, issuer common.Address, topic *big.Int) bool {
	claim, ok := id.claims[ClaimID(issuer, topic)]
	if !ok {
		return false
	}
	ci, ok := lookup[*identity](c, issuer)
	return ok && ci.claimIssuer && ci.isClaimValid(id.self, topic, claim.Signature, claim.Data)
}

// identityAuthority emulates the OnchainID ImplementationAuthority.
type identityAuthority struct {
	owner          common.Address
	implementation common.Address
}

func (a *identityAuthority) kind() string { return contracts.ImplementationAuthority }

func (a *identityAuthority) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	return nil, revert("ImplementationAuthority: unsupported method " + method)
}

func (a *identityAuthority) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "getImplementation" {
		return []interface{}{a.implementation}, nil
	}
	return nil, revert("ImplementationAuthority: unsupported query " + method)
}
