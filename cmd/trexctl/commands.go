package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/claims"
	"github.com/ruteri/trex-suite-provisioning/cmd/flags"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/deployer"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/ledger"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/urfave/cli/v2"
)

var flagIssuers = &cli.StringSliceFlag{
	Name:  "issuer",
	Usage: "trusted ClaimIssuer contract for every claim topic, may be repeated",
}

var flagIdentity = &cli.StringFlag{
	Name:     "identity",
	Required: true,
	Usage:    "identity contract the claim is about",
}

var flagClaimIssuer = &cli.StringFlag{
	Name:    "claim-issuer-contract",
	EnvVars: []string{"CLAIM_ISSUER_CONTRACT_ADDRESS"},
	Usage:   "ClaimIssuer contract the claim is attributed to",
}

var flagTopic = &cli.StringFlag{
	Name:  "topic",
	Value: "CLAIM_TOPIC",
	Usage: "claim topic as a number, 0x hex, or a name hashed with keccak256",
}

var flagClaimData = &cli.StringFlag{
	Name:  "data",
	Value: "Some claim public data.",
	Usage: "claim data",
}

var flagSubmitterKey = &cli.StringFlag{
	Name:    "submitter-key",
	EnvVars: []string{"CLAIM_SUBMITTER_PRIVATE_KEY"},
	Usage:   "key of the identity wallet submitting the claim, the deployer when empty",
}

var deploySuiteCommand = &cli.Command{
	Name:  "deploy-suite",
	Usage: "Deploy a complete suite from compiled artifacts and onboard participants",
	Flags: flags.DeployFlags,
	Action: func(cCtx *cli.Context) (err error) {
		s, err := newSession(cCtx)
		if err != nil {
			return err
		}
		defer s.close()
		s.progress.Start(s.runID, "full")
		defer func() { s.progress.Finish(err) }()

		artifacts, err := flags.LoadArtifacts(cCtx.Context, s.cfg, s.backend)
		if err != nil {
			return err
		}
		suiteCfg, err := s.cfg.SuiteConfig()
		if err != nil {
			return err
		}

		table, err := deployer.NewSuiteDeployer(s.runtime(artifacts), s.roles).Deploy(cCtx.Context, suiteCfg)
		if err != nil {
			return err
		}
		if salt, serr := s.cfg.DeploymentSalt(); serr == nil {
			table.Salt = salt
		}
		return s.publish(cCtx.Context, cCtx.App.Writer, table)
	},
}

var deployFactorySuiteCommand = &cli.Command{
	Name:  "deploy-factory-suite",
	Usage: "Deploy a suite through TREXFactory, reporting the existing one when the salt is taken",
	Flags: append([]cli.Flag{flags.SaltFlag, flags.FactoryAddrFlag, flagIssuers}, flags.DeployFlags...),
	Action: func(cCtx *cli.Context) (err error) {
		s, err := newSession(cCtx)
		if err != nil {
			return err
		}
		defer s.close()
		s.progress.Start(s.runID, "factory")
		defer func() { s.progress.Finish(err) }()

		req, err := factoryRequest(cCtx, s)
		if err != nil {
			return err
		}
		deployerRole, err := s.roles.Resolve(interfaces.RoleDeployer)
		if err != nil {
			return err
		}

		result, err := deployer.NewFactoryDeployer(s.runtime(contracts.NewArtifactSet())).Deploy(cCtx.Context, req, deployerRole.Signer)
		if err != nil {
			return err
		}

		table := &interfaces.AddressTable{Salt: req.Salt, Suite: result.Suite}
		table.Factories.TREXFactory = req.Factory
		table.Accounts, err = s.roles.Addresses()
		if err != nil {
			return err
		}
		s.progress.SetTable(table)
		if result.Existing {
			fmt.Fprintf(cCtx.App.ErrWriter, "suite already deployed for salt %q, no transaction sent\n", req.Salt.String())
		}
		return s.publish(cCtx.Context, cCtx.App.Writer, table)
	},
}

func factoryRequest(cCtx *cli.Context, s *session) (deployer.FactoryRequest, error) {
	var req deployer.FactoryRequest

	factory, err := s.cfg.Factory()
	if err != nil {
		return req, fmt.Errorf("factory address: %w", err)
	}
	salt, err := s.cfg.DeploymentSalt()
	if err != nil {
		return req, err
	}
	token, err := s.cfg.TokenDetails()
	if err != nil {
		return req, err
	}
	topics, err := s.cfg.Topics()
	if err != nil {
		return req, err
	}
	addrs, err := s.roles.Addresses()
	if err != nil {
		return req, err
	}

	req = deployer.FactoryRequest{
		Factory:     factory,
		Salt:        salt,
		Token:       token,
		Owner:       addrs.Deployer,
		IRAgents:    []common.Address{addrs.TokenAgent},
		TokenAgents: []common.Address{addrs.TokenAgent},
		Topics:      topics,
	}
	for _, raw := range cCtx.StringSlice(flagIssuers.Name) {
		issuer, err := interfaces.ValidateAddress(raw)
		if err != nil {
			return req, fmt.Errorf("issuer: %w", err)
		}
		req.Issuers = append(req.Issuers, issuer)
		req.IssuerTopics = append(req.IssuerTopics, topics)
	}
	return req, nil
}

var checkExistingCommand = &cli.Command{
	Name:  "check-existing",
	Usage: "Report whether the factory already deployed a suite for the salt",
	Flags: []cli.Flag{flags.SaltFlag, flags.FactoryAddrFlag, flags.RpcUrlFlag, flags.ConfigFileFlag},
	Action: func(cCtx *cli.Context) error {
		log, _ := flags.SetupLogger(cCtx)
		cfg, err := flags.LoadConfig(cCtx)
		if err != nil {
			return err
		}
		factory, err := cfg.Factory()
		if err != nil {
			return fmt.Errorf("factory address: %w", err)
		}
		salt, err := cfg.DeploymentSalt()
		if err != nil {
			return err
		}

		l, err := ledger.Dial(cCtx.Context, cfg.RPCURL, log)
		if err != nil {
			return err
		}
		guard := deployer.NewGuard(deployer.NewRuntime(l, contracts.NewArtifactSet(), log))
		if token, ok := guard.CheckExisting(cCtx.Context, factory, salt); ok {
			fmt.Fprintf(cCtx.App.Writer, "export TOKEN_ADDRESS=%s\n", token.Hex())
			return nil
		}
		fmt.Fprintf(cCtx.App.ErrWriter, "no suite deployed for salt %q\n", salt.String())
		return nil
	},
}

var issueClaimCommand = &cli.Command{
	Name:  "issue-claim",
	Usage: "Sign a claim with the claim issuer key and add it to an identity",
	Flags: []cli.Flag{
		flagIdentity, flagClaimIssuer, flagTopic, flagClaimData, flagSubmitterKey,
		flags.RpcUrlFlag, flags.ConfigFileFlag, flags.ConfirmTimeoutFlag, flags.DevSeedFlag, flags.PoolSizeFlag,
	},
	Action: func(cCtx *cli.Context) error {
		log, _ := flags.SetupLogger(cCtx)
		cfg, err := flags.LoadConfig(cCtx)
		if err != nil {
			return err
		}

		req, err := claimRequest(cCtx)
		if err != nil {
			return err
		}
		if req.Issuer, err = interfaces.ValidateAddress(cCtx.String(flagClaimIssuer.Name)); err != nil {
			return fmt.Errorf("claim issuer contract: %w", err)
		}

		roles, err := flags.Resolver(cCtx, log)
		if err != nil {
			return err
		}
		issuerKey, err := roles.Resolve(interfaces.RoleClaimIssuer)
		if err != nil {
			return err
		}
		var submitter interfaces.Signer
		if key := cCtx.String(flagSubmitterKey.Name); key != "" {
			if submitter, err = signers.NewKeySignerFromHex(key); err != nil {
				return err
			}
		} else {
			res, err := roles.Resolve(interfaces.RoleDeployer)
			if err != nil {
				return err
			}
			submitter = res.Signer
		}

		l, err := ledger.Dial(cCtx.Context, cfg.RPCURL, log)
		if err != nil {
			return err
		}
		l.WithConfirmTimeout(cfg.ConfirmTimeout)

		claim, err := claims.NewEngine(l, log).IssueClaim(cCtx.Context, req, issuerKey.Signer, submitter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cCtx.App.Writer, "0x%s\n", hex.EncodeToString(claim.Signature))
		return nil
	},
}

var verifyClaimCommand = &cli.Command{
	Name:  "verify-claim",
	Usage: "Recompute a claim digest and check its signature without touching the ledger",
	Flags: []cli.Flag{
		flagIdentity, flagTopic, flagClaimData,
		&cli.StringFlag{Name: "signature", Required: true, Usage: "0x hex claim signature"},
		&cli.StringFlag{Name: "signer", Usage: "expected signing key address"},
	},
	Action: func(cCtx *cli.Context) error {
		req, err := claimRequest(cCtx)
		if err != nil {
			return err
		}
		sig, err := hex.DecodeString(strings.TrimPrefix(cCtx.String("signature"), "0x"))
		if err != nil {
			return fmt.Errorf("%w: invalid signature hex: %v", interfaces.ErrValidation, err)
		}

		digest, err := claims.Digest(req.Identity, req.Topic, req.Data)
		if err != nil {
			return err
		}
		recovered, err := claims.RecoverSigner(digest, sig)
		if err != nil {
			return err
		}
		fmt.Fprintf(cCtx.App.Writer, "digest: %s\nsigner: %s\n", digest.Hex(), recovered.Hex())

		if expected := cCtx.String("signer"); expected != "" {
			addr, err := interfaces.ValidateAddress(expected)
			if err != nil {
				return err
			}
			if !claims.VerifySigner(addr, digest, sig) {
				return fmt.Errorf("%w: claim was signed by %s, not %s", interfaces.ErrValidation, recovered.Hex(), addr.Hex())
			}
		}
		return nil
	},
}

func claimRequest(cCtx *cli.Context) (claims.Request, error) {
	var req claims.Request
	identity, err := interfaces.ValidateAddress(cCtx.String(flagIdentity.Name))
	if err != nil {
		return req, fmt.Errorf("identity: %w", err)
	}
	topic, err := interfaces.ParseClaimTopic(cCtx.String(flagTopic.Name))
	if err != nil {
		return req, err
	}
	return claims.Request{
		Identity: identity,
		Topic:    topic,
		Scheme:   big.NewInt(claims.SchemeECDSA),
		Data:     []byte(cCtx.String(flagClaimData.Name)),
	}, nil
}

var validateAddressCommand = &cli.Command{
	Name:      "validate-address",
	Usage:     "Print the checksummed form of each address, failing on the first invalid one",
	ArgsUsage: "ADDRESS...",
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() == 0 {
			return fmt.Errorf("%w: no address given", interfaces.ErrValidation)
		}
		for _, arg := range cCtx.Args().Slice() {
			addr, err := interfaces.ValidateAddress(arg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, addr.Hex())
		}
		return nil
	},
}

var rolesCommand = &cli.Command{
	Name:  "roles",
	Usage: "Show which signer each role resolves to",
	Flags: []cli.Flag{flags.DevSeedFlag, flags.PoolSizeFlag},
	Action: func(cCtx *cli.Context) error {
		log, _ := flags.SetupLogger(cCtx)
		roles, err := flags.Resolver(cCtx, log)
		if err != nil {
			return err
		}
		for _, role := range interfaces.AllRoles {
			res, err := roles.Resolve(role)
			if err != nil {
				return fmt.Errorf("%s: %w", role, err)
			}
			fmt.Fprintf(cCtx.App.Writer, "%-13s %s (%s)\n", role, res.Signer.Address().Hex(), res.Source)
			log.Debug("Role resolved", slog.String("role", role.String()), slog.String("source", res.Source.String()))
		}
		return nil
	},
}
