package interfaces

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SuiteAddressSet holds the resolved addresses of one linked suite.
type SuiteAddressSet struct {
	Token                   common.Address `json:"token"`
	IdentityRegistry        common.Address `json:"identityRegistry"`
	IdentityRegistryStorage common.Address `json:"identityRegistryStorage"`
	TrustedIssuersRegistry  common.Address `json:"trustedIssuersRegistry"`
	ClaimTopicsRegistry     common.Address `json:"claimTopicsRegistry"`
	Compliance              common.Address `json:"modularCompliance"`
	TokenOnchainID          common.Address `json:"tokenOnchainId"`
}

// EnvVar is one exported hand-off variable.
type EnvVar struct {
	Key   string
	Value string
}

// Env returns the hand-off variables consumed by registration and
// verification tooling, in a stable order.
func (s SuiteAddressSet) Env() []EnvVar {
	return []EnvVar{
		{"TOKEN_ADDRESS", s.Token.Hex()},
		{"IDENTITY_REGISTRY_ADDRESS", s.IdentityRegistry.Hex()},
		{"IDENTITY_REGISTRY_STORAGE_ADDRESS", s.IdentityRegistryStorage.Hex()},
		{"TRUSTED_ISSUERS_REGISTRY_ADDRESS", s.TrustedIssuersRegistry.Hex()},
		{"CLAIM_TOPICS_REGISTRY_ADDRESS", s.ClaimTopicsRegistry.Hex()},
		{"MODULAR_COMPLIANCE_ADDRESS", s.Compliance.Hex()},
		{"TOKEN_ONCHAINID_ADDRESS", s.TokenOnchainID.Hex()},
	}
}

// Validate checks that every component address is set.
func (s SuiteAddressSet) Validate() error {
	for _, kv := range s.Env() {
		if kv.Value == (common.Address{}).Hex() {
			return fmt.Errorf("%w: suite component %s is unset", ErrValidation, kv.Key)
		}
	}
	return nil
}

// RoleAddresses are the accounts resolved for each role.
type RoleAddresses struct {
	Deployer    common.Address `json:"deployer"`
	TokenIssuer common.Address `json:"tokenIssuer"`
	TokenAgent  common.Address `json:"tokenAgent"`
	TokenAdmin  common.Address `json:"tokenAdmin"`
	ClaimIssuer common.Address `json:"claimIssuer"`
}

// Set records addr under role.
func (r *RoleAddresses) Set(role Role, addr common.Address) {
	switch role {
	case RoleDeployer:
		r.Deployer = addr
	case RoleTokenIssuer:
		r.TokenIssuer = addr
	case RoleTokenAgent:
		r.TokenAgent = addr
	case RoleTokenAdmin:
		r.TokenAdmin = addr
	case RoleClaimIssuer:
		r.ClaimIssuer = addr
	}
}

// ParticipantIdentity is an onboarded investor wallet and its identity contract.
type ParticipantIdentity struct {
	Name     string         `json:"name"`
	Wallet   common.Address `json:"wallet"`
	Identity common.Address `json:"identity"`
	Country  uint16         `json:"country"`
}

// IdentityAddresses collects identity-side contracts.
type IdentityAddresses struct {
	ClaimIssuer  common.Address        `json:"claimIssuer"`
	Participants []ParticipantIdentity `json:"participants,omitempty"`
}

// ImplementationAddresses are the logic contracts behind the authorities.
type ImplementationAddresses struct {
	Token                   common.Address `json:"token"`
	ClaimTopicsRegistry     common.Address `json:"claimTopicsRegistry"`
	IdentityRegistry        common.Address `json:"identityRegistry"`
	IdentityRegistryStorage common.Address `json:"identityRegistryStorage"`
	TrustedIssuersRegistry  common.Address `json:"trustedIssuersRegistry"`
	ModularCompliance       common.Address `json:"modularCompliance"`
	Identity                common.Address `json:"identity"`
}

// AuthorityAddresses are the pointer-of-record contracts and what they point to.
type AuthorityAddresses struct {
	TREXImplementationAuthority     common.Address          `json:"trexImplementationAuthority"`
	IdentityImplementationAuthority common.Address          `json:"identityImplementationAuthority"`
	Version                         VersionTriple           `json:"version"`
	Implementations                 ImplementationAddresses `json:"implementations"`
}

// FactoryAddresses are the optional factories provisioned with the suite.
type FactoryAddresses struct {
	IdFactory   common.Address `json:"idFactory,omitempty"`
	TREXFactory common.Address `json:"trexFactory,omitempty"`
}

// AddressTable is the hand-off artifact of a run.
type AddressTable struct {
	Salt         DeploymentSalt     `json:"salt,omitempty"`
	Accounts     RoleAddresses      `json:"accounts"`
	Identities   IdentityAddresses  `json:"identities"`
	Suite        SuiteAddressSet    `json:"suite"`
	Authorities  AuthorityAddresses `json:"authorities"`
	Factories    FactoryAddresses   `json:"factories"`
	AgentManager common.Address     `json:"agentManager,omitempty"`
}

// Env flattens the table into exportable variables. Unset addresses are skipped.
func (t *AddressTable) Env() []EnvVar {
	var vars []EnvVar
	add := func(key string, addr common.Address) {
		if addr != (common.Address{}) {
			vars = append(vars, EnvVar{key, addr.Hex()})
		}
	}

	add("DEPLOYER_ADDRESS", t.Accounts.Deployer)
	add("TOKEN_ISSUER_ADDRESS", t.Accounts.TokenIssuer)
	add("TOKEN_AGENT_ADDRESS", t.Accounts.TokenAgent)
	add("TOKEN_ADMIN_ADDRESS", t.Accounts.TokenAdmin)
	add("CLAIM_ISSUER_ADDRESS", t.Accounts.ClaimIssuer)
	add("CLAIM_ISSUER_CONTRACT_ADDRESS", t.Identities.ClaimIssuer)
	for _, p := range t.Identities.Participants {
		key := envKey(p.Name)
		add(key+"_WALLET_ADDRESS", p.Wallet)
		add(key+"_IDENTITY_ADDRESS", p.Identity)
	}
	for _, kv := range t.Suite.Env() {
		if kv.Value != (common.Address{}).Hex() {
			vars = append(vars, kv)
		}
	}
	add("TREX_IMPLEMENTATION_AUTHORITY_ADDRESS", t.Authorities.TREXImplementationAuthority)
	add("IDENTITY_IMPLEMENTATION_AUTHORITY_ADDRESS", t.Authorities.IdentityImplementationAuthority)
	add("ID_FACTORY_ADDRESS", t.Factories.IdFactory)
	add("FACTORY_ADDRESS", t.Factories.TREXFactory)
	add("AGENT_MANAGER_ADDRESS", t.AgentManager)
	return vars
}

// ExportLines renders Env as shell export statements.
func (t *AddressTable) ExportLines() string {
	var b strings.Builder
	for _, kv := range t.Env() {
		fmt.Fprintf(&b, "export %s=%s\n", kv.Key, kv.Value)
	}
	return b.String()
}

// envKey upper-cases name and replaces anything outside [A-Z0-9_] with '_'.
func envKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.ToUpper(name))
}
