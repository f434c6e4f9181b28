package ledgertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/trex-suite-provisioning/contracts"
)

type contract interface {
	kind() string
	submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error)
	call(c *Chain, method string, args []interface{}) ([]interface{}, error)
}

// construct runs the constructor of name. The caller holds c.mu.
func (c *Chain) construct(name string, self, from common.Address, args []interface{}) (contract, error) {
	switch name {
	case contracts.Token, contracts.ClaimTopicsRegistry, contracts.IdentityRegistry,
		contracts.IdentityRegistryStorage, contracts.TrustedIssuersRegistry, contracts.ModularCompliance:
		return &implementation{name: name}, nil

	case contracts.Identity:
		mgmt, ok1 := args[0].(common.Address)
		library, ok2 := args[1].(bool)
		if !ok1 || !ok2 {
			return nil, badArgs(name)
		}
		if !library && mgmt == (common.Address{}) {
			return nil, revert("invalid argument - zero address")
		}
		return newIdentity(name, self, mgmt), nil

	case contracts.ImplementationAuthority:
		impl, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(name)
		}
		if _, isIdentity := lookup[*identity](c, impl); !isIdentity {
			return nil, revert("implementation is not an identity")
		}
		return &identityAuthority{owner: from, implementation: impl}, nil

	case contracts.TREXImplementationAuthority:
		if _, ok := args[0].(bool); !ok {
			return nil, badArgs(name)
		}
		return &trexAuthority{owner: from}, nil

	case contracts.ClaimTopicsRegistryProxy, contracts.TrustedIssuersRegistryProxy,
		contracts.IdentityRegistryStorageProxy, contracts.ModularComplianceProxy:
		ia, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(name)
		}
		if err := c.requireTREXAuthority(ia); err != nil {
			return nil, err
		}
		switch name {
		case contracts.ClaimTopicsRegistryProxy:
			return &claimTopicsRegistry{owner: from}, nil
		case contracts.TrustedIssuersRegistryProxy:
			return &trustedIssuersRegistry{owner: from, issuers: map[common.Address][]*big.Int{}}, nil
		case contracts.IdentityRegistryStorageProxy:
			return newIdentityStorage(from), nil
		default:
			return &compliance{owner: from}, nil
		}

	case contracts.IdentityRegistryProxy:
		addrs, ok := addresses(args, 4)
		if !ok {
			return nil, badArgs(name)
		}
		if err := c.requireTREXAuthority(addrs[0]); err != nil {
			return nil, err
		}
		return c.newIdentityRegistry(self, from, addrs[1], addrs[2], addrs[3])

	case contracts.TokenProxy:
		addrs, ok := addresses(args, 3)
		if !ok {
			return nil, badArgs(name)
		}
		tokenName, ok1 := args[3].(string)
		symbol, ok2 := args[4].(string)
		decimals, ok3 := args[5].(uint8)
		oid, ok4 := args[6].(common.Address)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, badArgs(name)
		}
		if err := c.requireTREXAuthority(addrs[0]); err != nil {
			return nil, err
		}
		return c.newToken(self, from, addrs[1], addrs[2], tokenName, symbol, decimals, oid)

	case contracts.IdentityProxy:
		addrs, ok := addresses(args, 2)
		if !ok {
			return nil, badArgs(name)
		}
		if _, isAuthority := lookup[*identityAuthority](c, addrs[0]); !isAuthority {
			return nil, revert("invalid implementation authority")
		}
		if addrs[1] == (common.Address{}) {
			return nil, revert("invalid argument - zero address")
		}
		return newIdentity(name, self, addrs[1]), nil

	case contracts.ClaimIssuer:
		mgmt, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(name)
		}
		id := newIdentity(name, self, mgmt)
		id.claimIssuer = true
		return id, nil

	case contracts.AgentManager:
		tokenAddr, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(name)
		}
		if _, isToken := lookup[*token](c, tokenAddr); !isToken {
			return nil, revert("not a token")
		}
		return &agentManager{owner: from, token: tokenAddr, admins: map[common.Address]bool{}}, nil

	case contracts.IdFactory:
		ia, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(name)
		}
		if _, isAuthority := lookup[*identityAuthority](c, ia); !isAuthority {
			return nil, revert("invalid implementation authority")
		}
		return &idFactory{owner: from, authority: ia, tokenFactories: map[common.Address]bool{}}, nil

	case contracts.TREXFactory:
		addrs, ok := addresses(args, 2)
		if !ok {
			return nil, badArgs(name)
		}
		if err := c.requireTREXAuthority(addrs[0]); err != nil {
			return nil, err
		}
		if _, isFactory := lookup[*idFactory](c, addrs[1]); !isFactory {
			return nil, revert("invalid id factory")
		}
		return &trexFactory{self: self, owner: from, authority: addrs[0], idFactory: addrs[1], tokens: map[string]common.Address{}}, nil
	}

	return nil, revert("unknown contract " + name)
}

// requireTREXAuthority enforces that proxies are only created behind an
// authority with an active version.
func (c *Chain) requireTREXAuthority(ia common.Address) error {
	auth, ok := lookup[*trexAuthority](c, ia)
	if !ok {
		return revert("invalid implementation authority")
	}
	if auth.current == nil {
		return revert("authority has no active version")
	}
	return nil
}

func addresses(args []interface{}, n int) ([]common.Address, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]common.Address, n)
	for i := 0; i < n; i++ {
		a, ok := args[i].(common.Address)
		if !ok {
			return nil, false
		}
		out[i] = a
	}
	return out, true
}
