// Package contracts embeds the ABIs of the T-REX and OnchainID entry points
// used during provisioning and loads compiled artifacts (bytecode) from disk
// or from content-addressed storage.
package contracts

import (
	"embed"
	"fmt"
	"math/big"
	"path"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract identifiers. They match the contractName of the compiled artifacts.
const (
	Token                        = "Token"
	TokenProxy                   = "TokenProxy"
	ClaimTopicsRegistry          = "ClaimTopicsRegistry"
	ClaimTopicsRegistryProxy     = "ClaimTopicsRegistryProxy"
	TrustedIssuersRegistry       = "TrustedIssuersRegistry"
	TrustedIssuersRegistryProxy  = "TrustedIssuersRegistryProxy"
	IdentityRegistryStorage      = "IdentityRegistryStorage"
	IdentityRegistryStorageProxy = "IdentityRegistryStorageProxy"
	IdentityRegistry             = "IdentityRegistry"
	IdentityRegistryProxy        = "IdentityRegistryProxy"
	ModularCompliance            = "ModularCompliance"
	ModularComplianceProxy       = "ModularComplianceProxy"
	TREXImplementationAuthority  = "TREXImplementationAuthority"
	TREXFactory                  = "TREXFactory"
	AgentManager                 = "AgentManager"
	Identity                     = "Identity"
	ImplementationAuthority      = "ImplementationAuthority"
	IdentityProxy                = "IdentityProxy"
	IdFactory                    = "IdFactory"
	ClaimIssuer                  = "ClaimIssuer"
)

// SuiteImplementations are the six logic contracts registered together on
// the suite authority.
var SuiteImplementations = []string{
	Token,
	ClaimTopicsRegistry,
	IdentityRegistry,
	IdentityRegistryStorage,
	TrustedIssuersRegistry,
	ModularCompliance,
}

// RequiredForSuite lists every artifact the full deployment path needs.
var RequiredForSuite = []string{
	Token, TokenProxy,
	ClaimTopicsRegistry, ClaimTopicsRegistryProxy,
	TrustedIssuersRegistry, TrustedIssuersRegistryProxy,
	IdentityRegistryStorage, IdentityRegistryStorageProxy,
	IdentityRegistry, IdentityRegistryProxy,
	ModularCompliance, ModularComplianceProxy,
	TREXImplementationAuthority,
	Identity, ImplementationAuthority, IdentityProxy,
	ClaimIssuer,
}

// Claim key purposes and types of the identity contracts.
const (
	KeyPurposeManagement = 1
	KeyPurposeAction     = 2
	KeyPurposeClaim      = 3
	KeyTypeECDSA         = 1
)

// SuiteDeployedEvent is emitted by TREXFactory.deployTREXSuite.
const SuiteDeployedEvent = "TREXSuiteDeployed"

//go:embed abi/*.json
var abiFS embed.FS

var (
	abiMu    sync.Mutex
	abiCache = map[string]*abi.ABI{}
)

// ABI returns the parsed embedded ABI for a contract identifier.
func ABI(name string) (*abi.ABI, error) {
	abiMu.Lock()
	defer abiMu.Unlock()

	if parsed, ok := abiCache[name]; ok {
		return parsed, nil
	}

	raw, err := abiFS.ReadFile(path.Join("abi", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("no embedded ABI for %s: %w", name, err)
	}

	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid embedded ABI for %s: %w", name, err)
	}

	abiCache[name] = &parsed
	return &parsed, nil
}

// MustABI is ABI for identifiers known at compile time.
func MustABI(name string) *abi.ABI {
	parsed, err := ABI(name)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Names lists the identifiers with an embedded ABI.
func Names() []string {
	entries, err := abiFS.ReadDir("abi")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names
}

// Version is the authority version tuple.
type Version struct {
	Major uint8 `abi:"major"`
	Minor uint8 `abi:"minor"`
	Patch uint8 `abi:"patch"`
}

// TREXContracts is the implementation set registered atomically per version.
type TREXContracts struct {
	TokenImplementation common.Address `abi:"tokenImplementation"`
	CtrImplementation   common.Address `abi:"ctrImplementation"`
	IrImplementation    common.Address `abi:"irImplementation"`
	IrsImplementation   common.Address `abi:"irsImplementation"`
	TirImplementation   common.Address `abi:"tirImplementation"`
	McImplementation    common.Address `abi:"mcImplementation"`
}

// FactoryTokenDetails is the token parameter tuple of TREXFactory.deployTREXSuite.
type FactoryTokenDetails struct {
	Owner              common.Address   `abi:"owner"`
	Name               string           `abi:"name"`
	Symbol             string           `abi:"symbol"`
	Decimals           uint8            `abi:"decimals"`
	Irs                common.Address   `abi:"irs"`
	ONCHAINID          common.Address   `abi:"ONCHAINID"`
	IrAgents           []common.Address `abi:"irAgents"`
	TokenAgents        []common.Address `abi:"tokenAgents"`
	ComplianceModules  []common.Address `abi:"complianceModules"`
	ComplianceSettings [][]byte         `abi:"complianceSettings"`
}

// FactoryClaimDetails is the claim parameter tuple of TREXFactory.deployTREXSuite.
type FactoryClaimDetails struct {
	ClaimTopics  []*big.Int       `abi:"claimTopics"`
	Issuers      []common.Address `abi:"issuers"`
	IssuerClaims [][]*big.Int     `abi:"issuerClaims"`
}
