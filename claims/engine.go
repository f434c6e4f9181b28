package claims

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/metrics"
)

// Request describes a claim to issue on an identity contract.
type Request struct {
	Identity common.Address
	// Issuer is the ClaimIssuer contract the claim is attributed to.
	Issuer common.Address
	Topic  *big.Int
	Scheme *big.Int
	Data   []byte
	URI    string
}

// Engine signs claims and submits them to identity contracts.
type Engine struct {
	ledger  interfaces.Ledger
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(ledger interfaces.Ledger, log *slog.Logger) *Engine {
	return &Engine{ledger: ledger, log: log}
}

// WithMetrics enables claim outcome counters.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Sign builds the claim for req signed by issuerKey. Nothing is submitted.
func Sign(req Request, issuerKey interfaces.Signer) (*interfaces.Claim, error) {
	if err := interfaces.RequireNonZero("identity", req.Identity); err != nil {
		return nil, err
	}
	if err := interfaces.RequireNonZero("claim issuer", req.Issuer); err != nil {
		return nil, err
	}
	if issuerKey == nil {
		return nil, fmt.Errorf("%w: claim issuer signing key is required", interfaces.ErrPrecondition)
	}

	digest, err := Digest(req.Identity, req.Topic, req.Data)
	if err != nil {
		return nil, err
	}
	sig, err := SignDigest(issuerKey, digest)
	if err != nil {
		return nil, err
	}

	scheme := req.Scheme
	if scheme == nil {
		scheme = big.NewInt(SchemeECDSA)
	}
	data := req.Data
	if data == nil {
		data = []byte{}
	}
	return &interfaces.Claim{
		Identity:  req.Identity,
		Topic:     new(big.Int).Set(req.Topic),
		Scheme:    scheme,
		Issuer:    req.Issuer,
		Signature: sig,
		Data:      data,
		URI:       req.URI,
	}, nil
}

// Preflight checks locally that claim was signed by signingKey.
func (e *Engine) Preflight(claim *interfaces.Claim, signingKey common.Address) error {
	digest, err := Digest(claim.Identity, claim.Topic, claim.Data)
	if err != nil {
		return err
	}
	if !VerifySigner(signingKey, digest, claim.Signature) {
		return fmt.Errorf("%w: claim signature does not recover to %s", interfaces.ErrValidation, signingKey.Hex())
	}
	return nil
}

// IssueClaim signs req with issuerKey, verifies the signature and submits
// addClaim to the identity as submitter, which must hold a management or
// claim key on that identity.
func (e *Engine) IssueClaim(ctx context.Context, req Request, issuerKey, submitter interfaces.Signer) (*interfaces.Claim, error) {
	claim, err := Sign(req, issuerKey)
	if err != nil {
		e.metrics.IncClaim("invalid")
		return nil, err
	}
	if err := e.Preflight(claim, issuerKey.Address()); err != nil {
		e.metrics.IncClaim("invalid")
		return nil, err
	}

	_, err = e.ledger.Submit(ctx, claim.Identity, contracts.MustABI(contracts.Identity), "addClaim", submitter,
		claim.Topic, claim.Scheme, claim.Issuer, claim.Signature, claim.Data, claim.URI)
	if err != nil {
		e.metrics.IncClaim("failed")
		return nil, fmt.Errorf("adding claim on %s: %w", claim.Identity.Hex(), err)
	}

	e.metrics.IncClaim("issued")
	e.log.Info("Claim issued",
		slog.String("identity", claim.Identity.Hex()),
		slog.String("issuer", claim.Issuer.Hex()),
		slog.String("topic", claim.Topic.String()))
	return claim, nil
}

// RegisterSigningKey adds key as a claim signing key on the ClaimIssuer
// contract. It is a no-op when the key already has the claim purpose.
func (e *Engine) RegisterSigningKey(ctx context.Context, claimIssuer, key common.Address, manager interfaces.Signer) error {
	issuerABI := contracts.MustABI(contracts.ClaimIssuer)
	keyHash := KeyHash(key)

	out, err := e.ledger.Call(ctx, claimIssuer, issuerABI, "keyHasPurpose", keyHash, big.NewInt(contracts.KeyPurposeClaim))
	if err == nil && len(out) == 1 {
		if has, ok := out[0].(bool); ok && has {
			e.log.Debug("Claim key already registered", slog.String("key", key.Hex()))
			return nil
		}
	}

	_, err = e.ledger.Submit(ctx, claimIssuer, issuerABI, "addKey", manager,
		keyHash, big.NewInt(contracts.KeyPurposeClaim), big.NewInt(contracts.KeyTypeECDSA))
	if err != nil {
		return fmt.Errorf("registering claim key %s: %w", key.Hex(), err)
	}
	e.log.Info("Claim signing key registered", slog.String("issuer", claimIssuer.Hex()), slog.String("key", key.Hex()))
	return nil
}

// IsClaimValid asks the issuer contract whether claim is still valid.
func (e *Engine) IsClaimValid(ctx context.Context, claim *interfaces.Claim) (bool, error) {
	out, err := e.ledger.Call(ctx, claim.Issuer, contracts.MustABI(contracts.ClaimIssuer), "isClaimValid",
		claim.Identity, claim.Topic, claim.Signature, claim.Data)
	if err != nil {
		return false, fmt.Errorf("querying claim validity: %w", err)
	}
	valid, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isClaimValid result %T", out[0])
	}
	return valid, nil
}
