package deployer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/claims"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/signers"
)

// Participant is an investor onboarded after linking.
type Participant struct {
	Name    string
	Country uint16
	// Mint is the amount minted to the participant. Zero skips minting.
	Mint *big.Int
}

// SuiteConfig parameterizes a full deployment run.
type SuiteConfig struct {
	Token   interfaces.TokenDetails
	Version interfaces.VersionTriple
	Topics  []*big.Int
	// ClaimData is the payload of every claim issued to participants.
	ClaimData    []byte
	Participants []Participant
	// AgentManager deploys an AgentManager owned by the token agent and
	// grants the token admin on it.
	AgentManager bool
	// Factories provisions IdFactory and TREXFactory over the authorities.
	Factories bool
	// ClaimSigner signs claims. The claim issuer role signs when nil.
	ClaimSigner interfaces.Signer
}

// participantName keeps participant names usable in exported variable names.
var participantName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the configuration before any transaction is sent.
func (c *SuiteConfig) Validate() error {
	if _, err := interfaces.NewTokenDetails(c.Token.Name, c.Token.Symbol, int(c.Token.Decimals)); err != nil {
		return err
	}
	if len(interfaces.UniqueTopics(c.Topics)) == 0 {
		return fmt.Errorf("%w: at least one claim topic is required", interfaces.ErrValidation)
	}
	seen := map[string]bool{}
	for i, p := range c.Participants {
		if p.Name == "" {
			return fmt.Errorf("%w: participant %d has no name", interfaces.ErrValidation, i)
		}
		if !participantName.MatchString(p.Name) {
			return fmt.Errorf("%w: participant name %q may only contain letters, digits, '-' and '_'", interfaces.ErrValidation, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate participant %q", interfaces.ErrValidation, p.Name)
		}
		seen[p.Name] = true
		if p.Mint != nil && p.Mint.Sign() < 0 {
			return fmt.Errorf("%w: participant %q has a negative mint amount", interfaces.ErrValidation, p.Name)
		}
	}
	return nil
}

// SuiteDeployer runs the full deployment path.
type SuiteDeployer struct {
	rt          *Runtime
	roles       *signers.Resolver
	authorities *AuthorityDeployer
	proxies     *ProxyDeployer
	linker      *Linker
	factories   *FactoryDeployer
	claims      *claims.Engine
}

func NewSuiteDeployer(rt *Runtime, roles *signers.Resolver) *SuiteDeployer {
	return &SuiteDeployer{
		rt:          rt,
		roles:       roles,
		authorities: NewAuthorityDeployer(rt),
		proxies:     NewProxyDeployer(rt),
		linker:      NewLinker(rt),
		factories:   NewFactoryDeployer(rt),
		claims:      claims.NewEngine(rt.Ledger, rt.Log).WithMetrics(rt.Metrics),
	}
}

type roleSigners struct {
	deployer, issuer, agent, admin, claimIssuer interfaces.Signer
}

// Deploy runs roles, authorities, proxies, claim issuer, linking,
// participant onboarding and optional factories, in that order. On failure
// the partial address table is logged and returned alongside the error.
func (d *SuiteDeployer) Deploy(ctx context.Context, cfg SuiteConfig) (table *interfaces.AddressTable, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := d.rt.Artifacts.Require(contracts.RequiredForSuite...); err != nil {
		return nil, err
	}
	if cfg.AgentManager {
		if err := d.rt.Artifacts.Require(contracts.AgentManager); err != nil {
			return nil, err
		}
	}
	if cfg.Factories {
		if err := d.rt.Artifacts.Require(contracts.IdFactory, contracts.TREXFactory); err != nil {
			return nil, err
		}
	}
	wallets := make([]interfaces.Signer, len(cfg.Participants))
	for i, p := range cfg.Participants {
		if wallets[i], err = d.roles.Participant(i); err != nil {
			return nil, fmt.Errorf("participant %q: %w", p.Name, err)
		}
	}

	start := time.Now()
	table = &interfaces.AddressTable{}
	stages := &stageTracker{rt: d.rt}
	defer func() {
		err = stages.wrap(err)
		d.rt.Metrics.ObserveRun("full", err, time.Since(start))
		d.rt.Progress.SetTable(table)
		if err != nil {
			partial, _ := json.Marshal(table)
			d.rt.Log.Error("Suite deployment failed", "err", err, slog.String("partial", string(partial)))
		}
	}()

	// roles
	stages.begin("roles")
	resolved, err := d.roles.ResolveAll()
	if err != nil {
		return table, err
	}
	rs := roleSigners{
		deployer:    resolved[interfaces.RoleDeployer].Signer,
		issuer:      resolved[interfaces.RoleTokenIssuer].Signer,
		agent:       resolved[interfaces.RoleTokenAgent].Signer,
		admin:       resolved[interfaces.RoleTokenAdmin].Signer,
		claimIssuer: resolved[interfaces.RoleClaimIssuer].Signer,
	}
	for role, res := range resolved {
		table.Accounts.Set(role, res.Signer.Address())
	}
	claimSigner := cfg.ClaimSigner
	if claimSigner == nil {
		claimSigner = rs.claimIssuer
	}
	stages.done("roles")

	// implementations and authorities
	stages.begin("authorities")
	idImpl, idAuthority, err := d.authorities.DeployIdentityAuthority(ctx, rs.deployer)
	if err != nil {
		return table, err
	}
	table.Authorities.IdentityImplementationAuthority = idAuthority

	impls, trexAuthority, err := d.authorities.DeployTREXAuthority(ctx, cfg.Version, rs.deployer)
	if err != nil {
		return table, err
	}
	impls.Identity = idImpl
	table.Authorities.Implementations = impls
	table.Authorities.TREXImplementationAuthority = trexAuthority
	table.Authorities.Version = cfg.Version
	stages.done("authorities")
	d.rt.Progress.SetTable(table)

	// proxies
	stages.begin("proxies")
	tokenOID, err := d.proxies.DeployIdentityProxy(ctx, idAuthority, rs.issuer.Address(), rs.deployer)
	if err != nil {
		return table, err
	}
	table.Suite.TokenOnchainID = tokenOID

	suite, err := d.proxies.DeploySuiteProxies(ctx, trexAuthority, cfg.Token, tokenOID, rs.deployer)
	table.Suite = suite
	if err != nil {
		return table, err
	}
	stages.done("proxies")
	d.rt.Progress.SetTable(table)

	// claim issuer
	stages.begin("claim-issuer")
	claimIssuer, err := d.rt.deploy(ctx, contracts.ClaimIssuer, rs.claimIssuer, rs.claimIssuer.Address())
	if err != nil {
		return table, err
	}
	table.Identities.ClaimIssuer = claimIssuer
	if err := d.claims.RegisterSigningKey(ctx, claimIssuer, claimSigner.Address(), rs.claimIssuer); err != nil {
		return table, err
	}
	stages.done("claim-issuer")

	// agent manager
	if cfg.AgentManager {
		stages.begin("agent-manager")
		table.AgentManager, err = d.rt.deploy(ctx, contracts.AgentManager, rs.agent, suite.Token)
		if err != nil {
			return table, err
		}
		stages.done("agent-manager")
	}

	// linking
	plan := LinkPlan{
		Suite:        suite,
		Agent:        rs.agent.Address(),
		Topics:       cfg.Topics,
		ClaimIssuer:  claimIssuer,
		AgentManager: table.AgentManager,
		AgentAdmin:   rs.admin.Address(),
	}
	stages.begin("link")
	if err := d.linker.Link(ctx, plan, rs.deployer, rs.agent); err != nil {
		return table, err
	}
	stages.done("link")

	// participants
	for i, p := range cfg.Participants {
		stages.begin("participant:" + p.Name)
		onboarded, err := d.onboard(ctx, wallets[i], p, cfg, suite, idAuthority, claimIssuer, claimSigner, rs)
		if onboarded != nil {
			table.Identities.Participants = append(table.Identities.Participants, *onboarded)
		}
		if err != nil {
			return table, fmt.Errorf("onboarding participant %q: %w", p.Name, err)
		}
		stages.done("participant:" + p.Name)
	}

	// factories
	if cfg.Factories {
		stages.begin("factories")
		table.Factories, err = d.factories.Provision(ctx, trexAuthority, idAuthority, rs.deployer)
		if err != nil {
			return table, err
		}
		stages.done("factories")
	}

	stages.begin("address-table")
	if err := table.Suite.Validate(); err != nil {
		return table, err
	}
	d.rt.Log.Info("Suite deployed",
		slog.String("token", suite.Token.Hex()),
		slog.String("identityRegistry", suite.IdentityRegistry.Hex()),
		slog.Int("participants", len(table.Identities.Participants)))
	return table, nil
}

// onboard deploys the participant identity, adds one claim per topic,
// registers the identity and mints.
func (d *SuiteDeployer) onboard(ctx context.Context, wallet interfaces.Signer, p Participant, cfg SuiteConfig, suite interfaces.SuiteAddressSet,
	idAuthority, claimIssuer common.Address, claimSigner interfaces.Signer, rs roleSigners,
) (*interfaces.ParticipantIdentity, error) {
	out := &interfaces.ParticipantIdentity{Name: p.Name, Wallet: wallet.Address(), Country: p.Country}

	var err error
	out.Identity, err = d.proxies.DeployIdentityProxy(ctx, idAuthority, wallet.Address(), rs.deployer)
	if err != nil {
		return out, err
	}

	for _, topic := range interfaces.UniqueTopics(cfg.Topics) {
		req := claims.Request{Identity: out.Identity, Issuer: claimIssuer, Topic: topic, Data: cfg.ClaimData}
		if _, err := d.claims.IssueClaim(ctx, req, claimSigner, wallet); err != nil {
			return out, err
		}
	}

	if _, err := d.rt.submit(ctx, suite.IdentityRegistry, contracts.IdentityRegistry, "registerIdentity", rs.agent,
		wallet.Address(), out.Identity, p.Country); err != nil {
		return out, err
	}

	if p.Mint != nil && p.Mint.Sign() > 0 {
		if _, err := d.rt.submit(ctx, suite.Token, contracts.Token, "mint", rs.agent, wallet.Address(), p.Mint); err != nil {
			return out, err
		}
	}

	d.rt.Log.Info("Participant onboarded",
		slog.String("name", p.Name),
		slog.String("wallet", wallet.Address().Hex()),
		slog.String("identity", out.Identity.Hex()))
	return out, nil
}
