package signers

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyHex(t *testing.T) (string, *KeySigner) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(crypto.FromECDSA(key)), NewKeySigner(key)
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestKeySigner(t *testing.T) {
	keyHex, expected := newKeyHex(t)

	s, err := NewKeySignerFromHex(keyHex)
	require.NoError(t, err)
	assert.Equal(t, expected.Address(), s.Address())

	hash := crypto.Keccak256([]byte("payload"))
	sig, err := s.SignHash(hash)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))

	opts, err := s.TransactOpts(context.Background(), big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, s.Address(), opts.From)

	_, err = NewKeySignerFromHex("0xnothex")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestDerivePool(t *testing.T) {
	a, err := DerivePool([]byte("dev seed"), 6)
	require.NoError(t, err)
	b, err := DerivePool([]byte("dev seed"), 6)
	require.NoError(t, err)
	c, err := DerivePool([]byte("other seed"), 6)
	require.NoError(t, err)

	require.Equal(t, 6, a.Len())
	seen := map[string]bool{}
	for i := 0; i < a.Len(); i++ {
		sa, _ := a.At(i)
		sb, _ := b.At(i)
		sc, _ := c.At(i)
		assert.Equal(t, sa.Address(), sb.Address())
		assert.NotEqual(t, sa.Address(), sc.Address())
		seen[sa.Address().Hex()] = true
	}
	assert.Len(t, seen, 6)

	_, ok := a.At(6)
	assert.False(t, ok)
	_, err = DerivePool(nil, 1)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestResolverPrecedence(t *testing.T) {
	pool, err := DerivePool([]byte("pool"), len(interfaces.AllRoles))
	require.NoError(t, err)
	agentKeyHex, agentKey := newKeyHex(t)

	log, _ := bufferLogger()
	r := NewResolver(log, map[interfaces.Role]string{interfaces.RoleTokenAgent: agentKeyHex}, pool)

	// Explicit key wins over the pooled signer at the same index.
	res, err := r.Resolve(interfaces.RoleTokenAgent)
	require.NoError(t, err)
	assert.Equal(t, SourceKey, res.Source)
	assert.Equal(t, agentKey.Address(), res.Signer.Address())

	// No key: the pooled signer at the role index is used.
	res, err = r.Resolve(interfaces.RoleClaimIssuer)
	require.NoError(t, err)
	assert.Equal(t, SourcePool, res.Source)
	pooled, _ := pool.At(interfaces.RoleClaimIssuer.PoolIndex())
	assert.Equal(t, pooled.Address(), res.Signer.Address())
}

func TestResolverFallbackWarnsOncePerRole(t *testing.T) {
	deployerKeyHex, deployer := newKeyHex(t)
	log, buf := bufferLogger()
	r := NewResolver(log, map[interfaces.Role]string{interfaces.RoleDeployer: deployerKeyHex}, nil)

	for i := 0; i < 3; i++ {
		for _, role := range []interfaces.Role{interfaces.RoleTokenIssuer, interfaces.RoleTokenAdmin} {
			res, err := r.Resolve(role)
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, res.Source)
			assert.Equal(t, deployer.Address(), res.Signer.Address())
		}
	}

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "level=WARN"))
	assert.Equal(t, 1, strings.Count(out, "role=token-issuer env=TOKEN_ISSUER_PRIVATE_KEY"))
	assert.Equal(t, 1, strings.Count(out, "role=token-admin env=TOKEN_ADMIN_PRIVATE_KEY"))
}

func TestResolverRequiresDeployer(t *testing.T) {
	log, _ := bufferLogger()
	r := NewResolver(log, nil, nil)

	_, err := r.Resolve(interfaces.RoleDeployer)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)
	_, err = r.Resolve(interfaces.RoleTokenAgent)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)

	r = NewResolver(log, map[interfaces.Role]string{interfaces.RoleDeployer: "zz"}, nil)
	_, err = r.Resolve(interfaces.RoleDeployer)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestResolverAddressesAndParticipants(t *testing.T) {
	pool, err := DerivePool([]byte("pool"), len(interfaces.AllRoles)+1)
	require.NoError(t, err)
	log, _ := bufferLogger()
	r := NewResolver(log, nil, pool)

	addrs, err := r.Addresses()
	require.NoError(t, err)
	deployer, _ := pool.At(0)
	issuer, _ := pool.At(1)
	assert.Equal(t, deployer.Address(), addrs.Deployer)
	assert.Equal(t, issuer.Address(), addrs.TokenIssuer)

	p, err := r.Participant(0)
	require.NoError(t, err)
	expected, _ := pool.At(len(interfaces.AllRoles))
	assert.Equal(t, expected.Address(), p.Address())

	_, err = r.Participant(1)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)
}

func TestKeysFromEnv(t *testing.T) {
	env := map[string]string{
		"DEPLOYER_PRIVATE_KEY":     "0x01",
		"TOKEN_AGENT_PRIVATE_KEY":  "  ",
		"CLAIM_ISSUER_PRIVATE_KEY": "0x02",
	}
	keys := KeysFromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, map[interfaces.Role]string{
		interfaces.RoleDeployer:    "0x01",
		interfaces.RoleClaimIssuer: "0x02",
	}, keys)
}
