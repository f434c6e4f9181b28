package ledgertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

const (
	maxClaimTopics      = 15
	maxTrustedIssuers   = 50
	maxLinkedRegistries = 300
	errNotOwner         = "Ownable: caller is not the owner"
	errNotAgent         = "AgentRole: caller does not have the Agent role"
	errAlreadyHasRole   = "Roles: account already has role"
	errZeroAddress      = "invalid argument - zero address"
)

// implementation is a logic contract. It holds no state of its own.
type implementation struct {
	name string
}

func (i *implementation) kind() string { return i.name }

func (i *implementation) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	return nil, revert(i.name + ": implementation is not initialized")
}

func (i *implementation) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	return nil, revert(i.name + ": implementation is not initialized")
}

// trexAuthority emulates TREXImplementationAuthority.
type trexAuthority struct {
	owner    common.Address
	current  *contracts.TREXContracts
	version  contracts.Version
	versions map[contracts.Version]contracts.TREXContracts
}

func (a *trexAuthority) kind() string { return contracts.TREXImplementationAuthority }

func (a *trexAuthority) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "addAndUseTREXVersion" {
		return nil, revert("TREXImplementationAuthority: unsupported method " + method)
	}
	version, ok1 := args[0].(contracts.Version)
	trex, ok2 := args[1].(contracts.TREXContracts)
	if !ok1 || !ok2 {
		return nil, badArgs(method)
	}
	if from != a.owner {
		return nil, revert(errNotOwner)
	}
	if _, exists := a.versions[version]; exists {
		return nil, revert("version already exists")
	}

	impls := map[string]common.Address{
		contracts.Token:                   trex.TokenImplementation,
		contracts.ClaimTopicsRegistry:     trex.CtrImplementation,
		contracts.IdentityRegistry:        trex.IrImplementation,
		contracts.IdentityRegistryStorage: trex.IrsImplementation,
		contracts.TrustedIssuersRegistry:  trex.TirImplementation,
		contracts.ModularCompliance:       trex.McImplementation,
	}
	for name, addr := range impls {
		if addr == (common.Address{}) {
			return nil, revert(errZeroAddress)
		}
		impl, ok := lookup[*implementation](c, addr)
		if !ok || impl.name != name {
			return nil, revert("implementation mismatch for " + name)
		}
	}

	if a.versions == nil {
		a.versions = map[contracts.Version]contracts.TREXContracts{}
	}
	a.versions[version] = trex
	a.version = version
	a.current = &trex
	return nil, nil
}

func (a *trexAuthority) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "getCurrentVersion":
		return []interface{}{a.version}, nil
	case "getTokenImplementation":
		if a.current == nil {
			return []interface{}{common.Address{}}, nil
		}
		return []interface{}{a.current.TokenImplementation}, nil
	case "getIRImplementation":
		if a.current == nil {
			return []interface{}{common.Address{}}, nil
		}
		return []interface{}{a.current.IrImplementation}, nil
	}
	return nil, revert("TREXImplementationAuthority: unsupported query " + method)
}

// claimTopicsRegistry emulates the ClaimTopicsRegistry behind its proxy.
type claimTopicsRegistry struct {
	owner  common.Address
	topics []*big.Int
}

func (r *claimTopicsRegistry) kind() string { return contracts.ClaimTopicsRegistryProxy }

func (r *claimTopicsRegistry) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "addClaimTopic" {
		return nil, revert("ClaimTopicsRegistry: unsupported method " + method)
	}
	topic, ok := args[0].(*big.Int)
	if !ok {
		return nil, badArgs(method)
	}
	if from != r.owner {
		return nil, revert(errNotOwner)
	}
	if len(r.topics) >= maxClaimTopics {
		return nil, revert("cannot require more than 15 topics")
	}
	for _, t := range r.topics {
		if t.Cmp(topic) == 0 {
			return nil, revert("claimTopic already exists")
		}
	}
	r.topics = append(r.topics, new(big.Int).Set(topic))
	return nil, nil
}

func (r *claimTopicsRegistry) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "getClaimTopics" {
		return []interface{}{append([]*big.Int{}, r.topics...)}, nil
	}
	return nil, revert("ClaimTopicsRegistry: unsupported query " + method)
}

// trustedIssuersRegistry emulates the TrustedIssuersRegistry behind its proxy.
type trustedIssuersRegistry struct {
	owner   common.Address
	order   []common.Address
	issuers map[common.Address][]*big.Int
}

func (r *trustedIssuersRegistry) kind() string { return contracts.TrustedIssuersRegistryProxy }

func (r *trustedIssuersRegistry) add(issuer common.Address, topics []*big.Int) error {
	if issuer == (common.Address{}) {
		return revert("invalid argument - zero address")
	}
	if _, exists := r.issuers[issuer]; exists {
		return revert("trusted Issuer already exists")
	}
	if len(topics) == 0 {
		return revert("trusted claim topics cannot be empty")
	}
	if len(topics) > maxClaimTopics {
		return revert("cannot have more than 15 claim topics")
	}
	if len(r.order) >= maxTrustedIssuers {
		return revert("cannot have more than 50 trusted issuers")
	}
	r.issuers[issuer] = append([]*big.Int(nil), topics...)
	r.order = append(r.order, issuer)
	return nil
}

// issuersFor lists the trusted issuers allowed to certify topic.
func (r *trustedIssuersRegistry) issuersFor(topic *big.Int) []common.Address {
	var out []common.Address
	for _, issuer := range r.order {
		for _, t := range r.issuers[issuer] {
			if t.Cmp(topic) == 0 {
				out = append(out, issuer)
				break
			}
		}
	}
	return out
}

func (r *trustedIssuersRegistry) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "addTrustedIssuer" {
		return nil, revert("TrustedIssuersRegistry: unsupported method " + method)
	}
	issuer, ok1 := args[0].(common.Address)
	topics, ok2 := args[1].([]*big.Int)
	if !ok1 || !ok2 {
		return nil, badArgs(method)
	}
	if from != r.owner {
		return nil, revert(errNotOwner)
	}
	return nil, r.add(issuer, topics)
}

func (r *trustedIssuersRegistry) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "isTrustedIssuer":
		issuer, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		_, trusted := r.issuers[issuer]
		return []interface{}{trusted}, nil
	case "getTrustedIssuerClaimTopics":
		issuer, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		topics, trusted := r.issuers[issuer]
		if !trusted {
			return nil, revert("trusted Issuer doesn't exist")
		}
		return []interface{}{append([]*big.Int{}, topics...)}, nil
	}
	return nil, revert("TrustedIssuersRegistry: unsupported query " + method)
}

type storedIdentity struct {
	identity common.Address
	country  uint16
}

// identityStorage emulates the IdentityRegistryStorage behind its proxy.
type identityStorage struct {
	owner      common.Address
	agents     map[common.Address]bool
	linked     []common.Address
	identities map[common.Address]storedIdentity
}

func newIdentityStorage(owner common.Address) *identityStorage {
	return &identityStorage{
		owner:      owner,
		agents:     map[common.Address]bool{},
		identities: map[common.Address]storedIdentity{},
	}
}

func (s *identityStorage) kind() string { return contracts.IdentityRegistryStorageProxy }

func (s *identityStorage) bind(ir common.Address) error {
	if ir == (common.Address{}) {
		return revert(errZeroAddress)
	}
	if len(s.linked) >= maxLinkedRegistries {
		return revert("cannot bind more than 300 IR to 1 IRS")
	}
	if s.agents[ir] {
		return revert(errAlreadyHasRole)
	}
	s.agents[ir] = true
	s.linked = append(s.linked, ir)
	return nil
}

func (s *identityStorage) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "bindIdentityRegistry" {
		return nil, revert("IdentityRegistryStorage: unsupported method " + method)
	}
	ir, ok := args[0].(common.Address)
	if !ok {
		return nil, badArgs(method)
	}
	if from != s.owner {
		return nil, revert(errNotOwner)
	}
	return nil, s.bind(ir)
}

func (s *identityStorage) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "linkedIdentityRegistries" {
		return []interface{}{append([]common.Address{}, s.linked...)}, nil
	}
	return nil, revert("IdentityRegistryStorage: unsupported query " + method)
}

// identityRegistry emulates the IdentityRegistry behind its proxy.
type identityRegistry struct {
	self   common.Address
	owner  common.Address
	tir    common.Address
	ctr    common.Address
	irs    common.Address
	agents map[common.Address]bool
}

func (c *Chain) newIdentityRegistry(self, owner, tir, ctr, irs common.Address) (*identityRegistry, error) {
	if _, ok := lookup[*trustedIssuersRegistry](c, tir); !ok {
		return nil, revert("invalid trusted issuers registry")
	}
	if _, ok := lookup[*claimTopicsRegistry](c, ctr); !ok {
		return nil, revert("invalid claim topics registry")
	}
	if _, ok := lookup[*identityStorage](c, irs); !ok {
		return nil, revert("invalid identity registry storage")
	}
	return &identityRegistry{
		self: self, owner: owner, tir: tir, ctr: ctr, irs: irs,
		agents: map[common.Address]bool{},
	}, nil
}

func (r *identityRegistry) kind() string { return contracts.IdentityRegistryProxy }

func (r *identityRegistry) storage(c *Chain) *identityStorage {
	s, _ := lookup[*identityStorage](c, r.irs)
	return s
}

// isVerified requires a registered identity holding, for every required
// topic, a valid claim from an issuer trusted for that topic.
func (r *identityRegistry) isVerified(c *Chain, user common.Address) bool {
	stored, ok := r.storage(c).identities[user]
	if !ok {
		return false
	}
	id, ok := lookup[*identity](c, stored.identity)
	if !ok {
		return false
	}
	ctr, _ := lookup[*claimTopicsRegistry](c, r.ctr)
	tir, _ := lookup[*trustedIssuersRegistry](c, r.tir)
	for _, topic := range ctr.topics {
		verified := false
		for _, issuer := range tir.issuersFor(topic) {
			if id.hasValidClaim(c, issuer, topic) {
				verified = true
				break
			}
		}
		if !verified {
			return false
		}
	}
	return true
}

func (r *identityRegistry) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	switch method {
	case "addAgent":
		agent, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		if from != r.owner {
			return nil, revert(errNotOwner)
		}
		if agent == (common.Address{}) {
			return nil, revert(errZeroAddress)
		}
		if r.agents[agent] {
			return nil, revert(errAlreadyHasRole)
		}
		r.agents[agent] = true
		return nil, nil

	case "registerIdentity":
		user, ok1 := args[0].(common.Address)
		id, ok2 := args[1].(common.Address)
		country, ok3 := args[2].(uint16)
		if !(ok1 && ok2 && ok3) {
			return nil, badArgs(method)
		}
		if !r.agents[from] {
			return nil, revert(errNotAgent)
		}
		irs := r.storage(c)
		if !irs.agents[r.self] {
			return nil, revert(errNotAgent)
		}
		if user == (common.Address{}) || id == (common.Address{}) {
			return nil, revert(errZeroAddress)
		}
		if _, exists := irs.identities[user]; exists {
			return nil, revert("address stored already")
		}
		irs.identities[user] = storedIdentity{identity: id, country: country}
		return nil, nil
	}
	return nil, revert("IdentityRegistry: unsupported method " + method)
}

func (r *identityRegistry) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "isAgent":
		agent, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		return []interface{}{r.agents[agent]}, nil
	case "isVerified", "identity", "investorCountry":
		user, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		stored := r.storage(c).identities[user]
		switch method {
		case "isVerified":
			return []interface{}{r.isVerified(c, user)}, nil
		case "identity":
			return []interface{}{stored.identity}, nil
		default:
			return []interface{}{stored.country}, nil
		}
	}
	return nil, revert("IdentityRegistry: unsupported query " + method)
}

// compliance emulates ModularCompliance behind its proxy.
type compliance struct {
	owner common.Address
	token common.Address
}

func (m *compliance) kind() string { return contracts.ModularComplianceProxy }

func (m *compliance) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	return nil, revert("ModularCompliance: unsupported method " + method)
}

func (m *compliance) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "getTokenBound" {
		return []interface{}{m.token}, nil
	}
	return nil, revert("ModularCompliance: unsupported query " + method)
}

// token emulates the T-REX Token behind its proxy.
type token struct {
	self       common.Address
	owner      common.Address
	ir         common.Address
	compliance common.Address
	name       string
	symbol     string
	decimals   uint8
	onchainID  common.Address
	agents     map[common.Address]bool
	paused     bool
	balances   map[common.Address]*big.Int
}

func (c *Chain) newToken(self, owner, ir, mc common.Address, name, symbol string, decimals uint8, onchainID common.Address) (*token, error) {
	if _, ok := lookup[*identityRegistry](c, ir); !ok {
		return nil, revert("invalid identity registry")
	}
	mcState, ok := lookup[*compliance](c, mc)
	if !ok {
		return nil, revert("invalid compliance")
	}
	if name == "" || symbol == "" {
		return nil, revert("invalid argument - empty string")
	}
	if decimals > interfaces.MaxDecimals {
		return nil, revert("decimals between 0 and 18")
	}
	if mcState.token != (common.Address{}) {
		return nil, revert("compliance already bound")
	}
	mcState.token = self

	return &token{
		self: self, owner: owner, ir: ir, compliance: mc,
		name: name, symbol: symbol, decimals: decimals, onchainID: onchainID,
		agents:   map[common.Address]bool{},
		paused:   true,
		balances: map[common.Address]*big.Int{},
	}, nil
}

func (t *token) kind() string { return contracts.TokenProxy }

func (t *token) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	switch method {
	case "addAgent":
		agent, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		if from != t.owner {
			return nil, revert(errNotOwner)
		}
		if agent == (common.Address{}) {
			return nil, revert(errZeroAddress)
		}
		if t.agents[agent] {
			return nil, revert(errAlreadyHasRole)
		}
		t.agents[agent] = true
		return nil, nil

	case "unpause", "pause":
		if !t.agents[from] {
			return nil, revert(errNotAgent)
		}
		if method == "unpause" && !t.paused {
			return nil, revert("Pausable: not paused")
		}
		if method == "pause" && t.paused {
			return nil, revert("Pausable: paused")
		}
		t.paused = method == "pause"
		return nil, nil

	case "mint":
		to, ok1 := args[0].(common.Address)
		amount, ok2 := args[1].(*big.Int)
		if !ok1 || !ok2 {
			return nil, badArgs(method)
		}
		if !t.agents[from] {
			return nil, revert(errNotAgent)
		}
		ir, _ := lookup[*identityRegistry](c, t.ir)
		if !ir.isVerified(c, to) {
			return nil, revert("Identity is not verified.")
		}
		balance := t.balances[to]
		if balance == nil {
			balance = new(big.Int)
		}
		t.balances[to] = new(big.Int).Add(balance, amount)
		return nil, nil
	}
	return nil, revert("Token: unsupported method " + method)
}

func (t *token) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "paused":
		return []interface{}{t.paused}, nil
	case "onchainID":
		return []interface{}{t.onchainID}, nil
	case "identityRegistry":
		return []interface{}{t.ir}, nil
	case "compliance":
		return []interface{}{t.compliance}, nil
	case "name":
		return []interface{}{t.name}, nil
	case "symbol":
		return []interface{}{t.symbol}, nil
	case "decimals":
		return []interface{}{t.decimals}, nil
	case "isAgent", "balanceOf":
		addr, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		if method == "isAgent" {
			return []interface{}{t.agents[addr]}, nil
		}
		balance := t.balances[addr]
		if balance == nil {
			balance = new(big.Int)
		}
		return []interface{}{new(big.Int).Set(balance)}, nil
	}
	return nil, revert("Token: unsupported query " + method)
}

// agentManager emulates the AgentManager role contract.
type agentManager struct {
	owner  common.Address
	token  common.Address
	admins map[common.Address]bool
}

func (m *agentManager) kind() string { return contracts.AgentManager }

func (m *agentManager) submit(c *Chain, from common.Address, method string, args []interface{}) ([]*types.Log, error) {
	if method != "addAgentAdmin" {
		return nil, revert("AgentManager: unsupported method " + method)
	}
	admin, ok := args[0].(common.Address)
	if !ok {
		return nil, badArgs(method)
	}
	if from != m.owner {
		return nil, revert(errNotOwner)
	}
	if m.admins[admin] {
		return nil, revert(errAlreadyHasRole)
	}
	m.admins[admin] = true
	return nil, nil
}

func (m *agentManager) call(c *Chain, method string, args []interface{}) ([]interface{}, error) {
	if method == "isAgentAdmin" {
		admin, ok := args[0].(common.Address)
		if !ok {
			return nil, badArgs(method)
		}
		return []interface{}{m.admins[admin]}, nil
	}
	return nil, revert("AgentManager: unsupported query " + method)
}
