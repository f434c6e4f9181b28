package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/events"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// MaxFactoryEntries bounds the claim topics, trusted issuers and agents of
// each kind that TREXFactory accepts in one deployment.
const MaxFactoryEntries = 5

// FactoryRequest describes one suite to deploy through TREXFactory.
type FactoryRequest struct {
	Factory common.Address
	Salt    interfaces.DeploymentSalt
	Token   interfaces.TokenDetails
	// Owner receives ownership of every contract of the suite.
	Owner common.Address
	// IdentityRegistryStorage reuses an existing storage when set.
	IdentityRegistryStorage common.Address
	// OnchainID is created by the factory when zero.
	OnchainID   common.Address
	IRAgents    []common.Address
	TokenAgents []common.Address
	Topics      []*big.Int
	Issuers     []common.Address
	// IssuerTopics holds the topics each issuer is trusted for, by index.
	IssuerTopics [][]*big.Int
}

func (r *FactoryRequest) validate() error {
	if err := interfaces.RequireNonZero("factory", r.Factory); err != nil {
		return err
	}
	if err := interfaces.RequireNonZero("suite owner", r.Owner); err != nil {
		return err
	}
	if _, err := interfaces.NewDeploymentSalt(string(r.Salt)); err != nil {
		return err
	}
	if _, err := interfaces.NewTokenDetails(r.Token.Name, r.Token.Symbol, int(r.Token.Decimals)); err != nil {
		return err
	}
	if len(r.Issuers) != len(r.IssuerTopics) {
		return fmt.Errorf("%w: %d issuers but %d issuer topic lists", interfaces.ErrValidation, len(r.Issuers), len(r.IssuerTopics))
	}
	limits := []struct {
		name string
		n    int
	}{
		{"claim topics", len(interfaces.UniqueTopics(r.Topics))},
		{"trusted issuers", len(r.Issuers)},
		{"IR agents", len(r.IRAgents)},
		{"token agents", len(r.TokenAgents)},
	}
	for _, l := range limits {
		if l.n > MaxFactoryEntries {
			return fmt.Errorf("%w: %d %s, the factory accepts at most %d", interfaces.ErrValidation, l.n, l.name, MaxFactoryEntries)
		}
	}
	return nil
}

// FactoryDeployment is the result of a factory run. When Existing is set the
// factory already had a suite for the salt, nothing was submitted and only
// Suite.Token (and TokenOnchainID when readable) are known.
type FactoryDeployment struct {
	Existing bool                       `json:"existing"`
	Suite    interfaces.SuiteAddressSet `json:"suite"`
	TxHash   common.Hash                `json:"txHash,omitempty"`
}

// FactoryDeployer deploys suites through TREXFactory and provisions factories.
type FactoryDeployer struct {
	rt      *Runtime
	guard   *Guard
	decoder *events.Decoder
}

func NewFactoryDeployer(rt *Runtime) *FactoryDeployer {
	return &FactoryDeployer{
		rt:      rt,
		guard:   NewGuard(rt),
		decoder: events.NewDecoder(contracts.MustABI(contracts.TREXFactory), rt.Log),
	}
}

// Deploy checks the factory for an existing suite under the salt and, when
// there is none, deploys one in a single transaction. The suite addresses
// are recovered from the TREXSuiteDeployed event and the token OnchainID is
// read from the token.
func (d *FactoryDeployer) Deploy(ctx context.Context, req FactoryRequest, signer interfaces.Signer) (result *FactoryDeployment, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	stages := &stageTracker{rt: d.rt}
	stages.begin("guard")
	defer func() {
		err = stages.wrap(err)
		d.rt.Metrics.ObserveRun("factory", err, time.Since(start))
	}()

	if existing, ok := d.guard.CheckExisting(ctx, req.Factory, req.Salt); ok {
		d.rt.Log.Info("Suite already deployed for salt, nothing to do",
			slog.String("salt", req.Salt.String()),
			slog.String("token", existing.Hex()))
		found := &FactoryDeployment{Existing: true, Suite: interfaces.SuiteAddressSet{Token: existing}}
		if oid, qerr := d.rt.queryAddress(ctx, existing, contracts.Token, "onchainID"); qerr == nil {
			found.Suite.TokenOnchainID = oid
		}
		return found, nil
	}
	stages.done("guard")

	tokenDetails := contracts.FactoryTokenDetails{
		Owner:              req.Owner,
		Name:               req.Token.Name,
		Symbol:             req.Token.Symbol,
		Decimals:           req.Token.Decimals,
		Irs:                req.IdentityRegistryStorage,
		ONCHAINID:          req.OnchainID,
		IrAgents:           nonNilAddresses(req.IRAgents),
		TokenAgents:        nonNilAddresses(req.TokenAgents),
		ComplianceModules:  []common.Address{},
		ComplianceSettings: [][]byte{},
	}
	issuerTopics := req.IssuerTopics
	if issuerTopics == nil {
		issuerTopics = [][]*big.Int{}
	}
	claimDetails := contracts.FactoryClaimDetails{
		ClaimTopics:  append([]*big.Int{}, interfaces.UniqueTopics(req.Topics)...),
		Issuers:      nonNilAddresses(req.Issuers),
		IssuerClaims: issuerTopics,
	}

	stages.begin("factory-deploy")
	receipt, err := d.rt.submit(ctx, req.Factory, contracts.TREXFactory, "deployTREXSuite", signer,
		req.Salt.String(), tokenDetails, claimDetails)
	if err != nil {
		return nil, err
	}
	stages.done("factory-deploy")

	stages.begin("decode")

	suite, err := d.decoder.ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, events.DefaultSuiteFieldMap)
	if err != nil {
		return nil, fmt.Errorf("recovering suite addresses: %w", err)
	}

	suite.TokenOnchainID, err = d.rt.queryAddress(ctx, suite.Token, contracts.Token, "onchainID")
	if err != nil {
		return nil, fmt.Errorf("reading token OnchainID: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	stages.done("decode")

	d.rt.Log.Info("Suite deployed through factory",
		slog.String("salt", req.Salt.String()),
		slog.String("token", suite.Token.Hex()),
		slog.String("tx", receipt.TxHash.Hex()))
	return &FactoryDeployment{Suite: suite, TxHash: receipt.TxHash}, nil
}

// Provision deploys IdFactory and TREXFactory over the given authorities and
// authorizes the TREXFactory to create token identities.
func (d *FactoryDeployer) Provision(ctx context.Context, trexAuthority, identityAuthority common.Address, signer interfaces.Signer) (interfaces.FactoryAddresses, error) {
	var out interfaces.FactoryAddresses

	idFactory, err := d.rt.deploy(ctx, contracts.IdFactory, signer, identityAuthority)
	if err != nil {
		return out, err
	}
	out.IdFactory = idFactory

	trexFactory, err := d.rt.deploy(ctx, contracts.TREXFactory, signer, trexAuthority, idFactory)
	if err != nil {
		return out, err
	}
	out.TREXFactory = trexFactory

	if _, err := d.rt.submit(ctx, idFactory, contracts.IdFactory, "addTokenFactory", signer, trexFactory); err != nil {
		return out, err
	}
	return out, nil
}

func nonNilAddresses(addrs []common.Address) []common.Address {
	if addrs == nil {
		return []common.Address{}
	}
	return addrs
}
