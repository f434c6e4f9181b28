package ledgertest

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	chain     *Chain
	artifacts *contracts.ArtifactSet
	owner     *signers.KeySigner
}

func newFixture(t *testing.T) *fixture {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fixture{t: t, ctx: context.Background(), chain: NewChain(), artifacts: Artifacts(), owner: signers.NewKeySigner(key)}
}

func newSigner(t *testing.T) *signers.KeySigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signers.NewKeySigner(key)
}

func (f *fixture) deploy(name string, args ...interface{}) common.Address {
	a, err := f.artifacts.Get(name)
	require.NoError(f.t, err)
	addr, err := f.chain.Deploy(f.ctx, a, f.owner, args...)
	require.NoError(f.t, err, name)
	return addr
}

func (f *fixture) submit(signer interfaces.Signer, addr common.Address, name, method string, args ...interface{}) error {
	_, err := f.chain.Submit(f.ctx, addr, contracts.MustABI(name), method, signer, args...)
	return err
}

func (f *fixture) call(addr common.Address, name, method string, args ...interface{}) interface{} {
	out, err := f.chain.Call(f.ctx, addr, contracts.MustABI(name), method, args...)
	require.NoError(f.t, err, method)
	return out[0]
}

func (f *fixture) authority() common.Address {
	impls := map[string]common.Address{}
	for _, name := range contracts.SuiteImplementations {
		impls[name] = f.deploy(name)
	}
	ia := f.deploy(contracts.TREXImplementationAuthority, true, common.Address{}, common.Address{})
	require.NoError(f.t, f.submit(f.owner, ia, contracts.TREXImplementationAuthority, "addAndUseTREXVersion",
		contracts.Version{Major: 4},
		contracts.TREXContracts{
			TokenImplementation: impls[contracts.Token],
			CtrImplementation:   impls[contracts.ClaimTopicsRegistry],
			IrImplementation:    impls[contracts.IdentityRegistry],
			IrsImplementation:   impls[contracts.IdentityRegistryStorage],
			TirImplementation:   impls[contracts.TrustedIssuersRegistry],
			McImplementation:    impls[contracts.ModularCompliance],
		}))
	return ia
}

func signClaim(t *testing.T, signer *signers.KeySigner, subject common.Address, topic *big.Int, data []byte) []byte {
	packed, err := claimDigestArgs.Pack(subject, topic, data)
	require.NoError(t, err)
	sig, err := signer.SignHash(accounts.TextHash(crypto.Keccak256(packed)))
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func TestProxyRequiresActiveAuthority(t *testing.T) {
	f := newFixture(t)
	ia := f.deploy(contracts.TREXImplementationAuthority, true, common.Address{}, common.Address{})

	a, err := f.artifacts.Get(contracts.ClaimTopicsRegistryProxy)
	require.NoError(t, err)
	_, err = f.chain.Deploy(f.ctx, a, f.owner, ia)
	require.ErrorIs(t, err, interfaces.ErrReverted)

	ia = f.authority()
	ctr := f.deploy(contracts.ClaimTopicsRegistryProxy, ia)
	assert.Equal(t, contracts.ClaimTopicsRegistryProxy, f.chain.Kind(ctr))

	version := f.call(ia, contracts.TREXImplementationAuthority, "getCurrentVersion").(contracts.Version)
	assert.Equal(t, uint8(4), version.Major)
}

func TestAccessControlAndFailures(t *testing.T) {
	f := newFixture(t)
	ia := f.authority()
	ctr := f.deploy(contracts.ClaimTopicsRegistryProxy, ia)
	stranger := newSigner(t)

	err := f.submit(stranger, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", big.NewInt(7))
	require.ErrorIs(t, err, interfaces.ErrReverted)
	assert.Contains(t, err.Error(), "not the owner")

	require.NoError(t, f.submit(f.owner, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", big.NewInt(7)))
	err = f.submit(f.owner, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", big.NewInt(7))
	require.ErrorIs(t, err, interfaces.ErrReverted)

	f.chain.FailOn("addClaimTopic", interfaces.ErrConfirmation)
	err = f.submit(f.owner, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", big.NewInt(8))
	require.ErrorIs(t, err, interfaces.ErrConfirmation)
	require.NoError(t, f.submit(f.owner, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", big.NewInt(8)))

	topics := f.call(ctr, contracts.ClaimTopicsRegistry, "getClaimTopics").([]*big.Int)
	assert.Len(t, topics, 2)

	_, err = f.chain.Submit(f.ctx, ctr, contracts.MustABI(contracts.ClaimTopicsRegistry), "addClaimTopic", nil, big.NewInt(9))
	require.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
}

func TestVerificationFlow(t *testing.T) {
	f := newFixture(t)
	ia := f.authority()
	ctr := f.deploy(contracts.ClaimTopicsRegistryProxy, ia)
	tir := f.deploy(contracts.TrustedIssuersRegistryProxy, ia)
	irs := f.deploy(contracts.IdentityRegistryStorageProxy, ia)
	mc := f.deploy(contracts.ModularComplianceProxy, ia)
	ir := f.deploy(contracts.IdentityRegistryProxy, ia, tir, ctr, irs)
	tok := f.deploy(contracts.TokenProxy, ia, ir, mc, "Bond", "BND", uint8(0), common.Address{})

	assert.Equal(t, tok, f.call(mc, contracts.ModularCompliance, "getTokenBound"))
	assert.Equal(t, true, f.call(tok, contracts.Token, "paused"))

	topic := interfaces.TopicFromName("KYC")
	issuerKey := newSigner(t)
	issuer := f.deploy(contracts.ClaimIssuer, f.owner.Address())
	require.NoError(t, f.submit(f.owner, issuer, contracts.ClaimIssuer, "addKey",
		[32]byte(KeyOf(issuerKey.Address())), big.NewInt(contracts.KeyPurposeClaim), big.NewInt(contracts.KeyTypeECDSA)))

	require.NoError(t, f.submit(f.owner, ctr, contracts.ClaimTopicsRegistry, "addClaimTopic", topic))
	require.NoError(t, f.submit(f.owner, tir, contracts.TrustedIssuersRegistry, "addTrustedIssuer", issuer, []*big.Int{topic}))
	require.NoError(t, f.submit(f.owner, ir, contracts.IdentityRegistry, "addAgent", f.owner.Address()))

	investor := newSigner(t)
	idImpl := f.deploy(contracts.Identity, f.owner.Address(), true)
	idAuth := f.deploy(contracts.ImplementationAuthority, idImpl)
	investorID := f.deploy(contracts.IdentityProxy, idAuth, investor.Address())

	err := f.submit(f.owner, ir, contracts.IdentityRegistry, "registerIdentity", investor.Address(), investorID, uint16(250))
	require.ErrorIs(t, err, interfaces.ErrReverted, "storage not bound yet")
	require.NoError(t, f.submit(f.owner, irs, contracts.IdentityRegistryStorage, "bindIdentityRegistry", ir))
	require.NoError(t, f.submit(f.owner, ir, contracts.IdentityRegistry, "registerIdentity", investor.Address(), investorID, uint16(250)))
	assert.Equal(t, false, f.call(ir, contracts.IdentityRegistry, "isVerified", investor.Address()))

	data := []byte("kyc ok")
	forged := signClaim(t, newSigner(t), investorID, topic, data)
	err = f.submit(investor, investorID, contracts.Identity, "addClaim", topic, big.NewInt(1), issuer, forged, data, "")
	require.ErrorIs(t, err, interfaces.ErrReverted)

	sig := signClaim(t, issuerKey, investorID, topic, data)
	assert.Equal(t, true, f.call(issuer, contracts.ClaimIssuer, "isClaimValid", investorID, topic, sig, data))
	receipt, err := f.chain.Submit(f.ctx, investorID, contracts.MustABI(contracts.Identity), "addClaim", investor, topic, big.NewInt(1), issuer, sig, data, "")
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, contracts.MustABI(contracts.Identity).Events["ClaimAdded"].ID, receipt.Logs[0].Topics[0])

	assert.Equal(t, true, f.call(ir, contracts.IdentityRegistry, "isVerified", investor.Address()))

	agent := newSigner(t)
	require.NoError(t, f.submit(f.owner, tok, contracts.Token, "addAgent", agent.Address()))
	require.NoError(t, f.submit(agent, tok, contracts.Token, "unpause"))
	require.NoError(t, f.submit(agent, tok, contracts.Token, "mint", investor.Address(), big.NewInt(100)))
	err = f.submit(agent, tok, contracts.Token, "mint", agent.Address(), big.NewInt(1))
	require.ErrorIs(t, err, interfaces.ErrReverted)
	assert.Equal(t, int64(100), f.call(tok, contracts.Token, "balanceOf", investor.Address()).(*big.Int).Int64())
}

func TestFactoryDeploysOncePerSalt(t *testing.T) {
	f := newFixture(t)
	ia := f.authority()
	idImpl := f.deploy(contracts.Identity, f.owner.Address(), true)
	idAuth := f.deploy(contracts.ImplementationAuthority, idImpl)
	idf := f.deploy(contracts.IdFactory, idAuth)
	factory := f.deploy(contracts.TREXFactory, ia, idf)
	require.NoError(t, f.submit(f.owner, idf, contracts.IdFactory, "addTokenFactory", factory))

	details := contracts.FactoryTokenDetails{
		Owner: f.owner.Address(), Name: "Bond", Symbol: "BND", Decimals: 6,
		IrAgents: []common.Address{f.owner.Address()}, TokenAgents: []common.Address{f.owner.Address()},
		ComplianceSettings: [][]byte{},
	}
	claims := contracts.FactoryClaimDetails{ClaimTopics: []*big.Int{}, IssuerClaims: [][]*big.Int{}}

	receipt, err := f.chain.Submit(f.ctx, factory, contracts.MustABI(contracts.TREXFactory), "deployTREXSuite", f.owner, "salt-1", details, claims)
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 2)

	event := contracts.MustABI(contracts.TREXFactory).Events[contracts.SuiteDeployedEvent]
	suiteLog := receipt.Logs[1]
	assert.Equal(t, event.ID, suiteLog.Topics[0])
	tokenAddr := common.BytesToAddress(suiteLog.Topics[1].Bytes())
	assert.Equal(t, tokenAddr, f.call(factory, contracts.TREXFactory, "getToken", "salt-1"))
	assert.Equal(t, contracts.TokenProxy, f.chain.Kind(tokenAddr))

	oid := f.call(tokenAddr, contracts.Token, "onchainID").(common.Address)
	assert.Equal(t, contracts.IdentityProxy, f.chain.Kind(oid))

	_, err = f.chain.Submit(f.ctx, factory, contracts.MustABI(contracts.TREXFactory), "deployTREXSuite", f.owner, "salt-1", details, claims)
	require.ErrorIs(t, err, interfaces.ErrReverted)
	assert.Equal(t, common.Address{}, f.call(factory, contracts.TREXFactory, "getToken", "other"))
}
