package ledgertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

var ownershipTransferredID = crypto.Keccak256Hash([]byte("OwnershipTransferred(address,address)"))

// idFactory emulates the OnchainID IdFactory.
type idFactory struct {
	owner          common.Address
	authority      common.Address
	tokenFactories map[common.Address]bool
}

func (f *idFactory) kind() string { return contracts.IdFactory }

func (f *idFactory) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "addTokenFactory" {
		return nil, revert("IdFactory: unsupported method " + method)
	}
	factory, ok := args[0].(common.Address)
	if !ok {
		return nil, badArgs(method)
	}
	if from != f.owner {
		return nil, revert(errNotOwner)
	}
	if factory == (common.Address{}) {
		return nil, revert(errZeroAddress)
	}
	if f.tokenFactories[factory] {
		return nil, revert("already a factory")
	}
	f.tokenFactories[factory] = true
	return nil, nil
}

func (f *idFactory) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "isTokenFactory" {
		factory, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		return []interface{}{f.tokenFactories[factory]}, nil
	}
	return nil, revert("IdFactory: unsupported query " + method)
}

// trexFactory emulates TREXFactory: one suite per salt, created from inside
// the factory transaction.
type trexFactory struct {
	self      common.Address
	owner     common.Address
	authority common.Address
	idFactory common.Address
	tokens    map[string]common.Address
}

func (f *trexFactory) kind() string { return contracts.TREXFactory }

func (f *trexFactory) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "getToken" {
		salt, ok := args[0].(string)
		if !ok {
			return nil, badArgs(method)
		}
		return []interface{}{f.tokens[salt]}, nil
	}
	return nil, revert("TREXFactory: unsupported query " + method)
}

func (f *trexFactory) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "deployTREXSuite" {
		return nil, revert("TREXFactory: unsupported method " + method)
	}
	salt, ok1 := args[0].(string)
	details, ok2 := args[1].(contracts.FactoryTokenDetails)
	claims, ok3 := args[2].(contracts.FactoryClaimDetails)
	if !(ok1 && ok2 && ok3) {
		return nil, badArgs(method)
	}
	if from != f.owner {
		return nil, revert(errNotOwner)
	}
	if f.tokens[salt] != (common.Address{}) {
		return nil, revert("token already deployed")
	}
	if len(claims.Issuers) != len(claims.IssuerClaims) {
		return nil, revert("claim pattern not valid")
	}
	if len(claims.Issuers) > 5 || len(claims.ClaimTopics) > 5 {
		return nil, revert("max 5 claim topics and issuers at deployment")
	}
	if len(details.IrAgents) > 5 || len(details.TokenAgents) > 5 {
		return nil, revert("max 5 agents at deployment")
	}
	if len(details.ComplianceModules) > 30 || len(details.ComplianceSettings) > len(details.ComplianceModules) {
		return nil, revert("invalid compliance pattern")
	}
	if err := c.requireTREXAuthority(f.authority); err != nil {
		return nil, err
	}

	create := func(ct contract) common.Address {
		addr := c.nextAddress(f.self)
		c.contracts[addr] = ct
		return addr
	}

	irsAddr := details.Irs
	if irsAddr == (common.Address{}) {
		irsAddr = create(newIdentityStorage(details.Owner))
	} else if _, ok := lookup[*identityStorage](c, irsAddr); !ok {
		return nil, revert("invalid identity registry storage")
	}
	tirAddr := create(&trustedIssuersRegistry{owner: details.Owner, issuers: map[common.Address][]*big.Int{}})
	ctrAddr := create(&claimTopicsRegistry{owner: details.Owner})
	mcAddr := create(&compliance{owner: details.Owner})

	irAddr := c.nextAddress(f.self)
	ir, err := c.newIdentityRegistry(irAddr, details.Owner, tirAddr, ctrAddr, irsAddr)
	if err != nil {
		return nil, err
	}
	c.contracts[irAddr] = ir

	tokenAddr := c.nextAddress(f.self)
	tk, err := c.newToken(tokenAddr, details.Owner, irAddr, mcAddr, details.Name, details.Symbol, details.Decimals, details.ONCHAINID)
	if err != nil {
		return nil, err
	}
	c.contracts[tokenAddr] = tk

	if tk.onchainID == (common.Address{}) {
		idf, ok := lookup[*idFactory](c, f.idFactory)
		if !ok || !idf.tokenFactories[f.self] {
			return nil, revert("only Factory or owner can call")
		}
		tk.onchainID = create(newIdentity(contracts.IdentityProxy, common.Address{}, details.Owner))
		id, _ := lookup[*identity](c, tk.onchainID)
		id.self = tk.onchainID
	}

	ctr, _ := lookup[*claimTopicsRegistry](c, ctrAddr)
	for _, topic := range claims.ClaimTopics {
		ctr.topics = append(ctr.topics, new(big.Int).Set(topic))
	}
	tir, _ := lookup[*trustedIssuersRegistry](c, tirAddr)
	for i, issuer := range claims.Issuers {
		if err := tir.add(issuer, claims.IssuerClaims[i]); err != nil {
			return nil, err
		}
	}
	irs, _ := lookup[*identityStorage](c, irsAddr)
	if err := irs.bind(irAddr); err != nil {
		return nil, err
	}
	for _, agent := range details.IrAgents {
		ir.agents[agent] = true
	}
	for _, agent := range details.TokenAgents {
		tk.agents[agent] = true
	}
	f.tokens[salt] = tokenAddr

	event := contracts.MustABI(contracts.TREXFactory).Events[contracts.SuiteDeployedEvent]
	data, err := event.Inputs.NonIndexed().Pack(irAddr, irsAddr, tirAddr, ctrAddr, mcAddr)
	if err != nil {
		return nil, err
	}
	return []*types.Log{
		{
			Address: tokenAddr,
			Topics: []common.Hash{
				ownershipTransferredID,
				common.BytesToHash(f.self.Bytes()),
				common.BytesToHash(details.Owner.Bytes()),
			},
		},
		{
			Address: f.self,
			Topics: []common.Hash{
				event.ID,
				common.BytesToHash(tokenAddr.Bytes()),
				crypto.Keccak256Hash([]byte(salt)),
			},
			Data: data,
		},
	}, nil
}

var _ interfaces.Ledger = (*Chain)(nil)
