package contracts

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedABIs(t *testing.T) {
	names := Names()
	for _, name := range RequiredForSuite {
		assert.Contains(t, names, name)
	}

	for _, name := range names {
		parsed, err := ABI(name)
		require.NoError(t, err, name)
		assert.NotNil(t, parsed)
	}

	_, err := ABI("DoesNotExist")
	assert.Error(t, err)
}

func TestPackVersionRegistration(t *testing.T) {
	ia := MustABI(TREXImplementationAuthority)
	input, err := ia.Pack("addAndUseTREXVersion",
		Version{Major: 4},
		TREXContracts{
			TokenImplementation: common.HexToAddress("0x01"),
			CtrImplementation:   common.HexToAddress("0x02"),
			IrImplementation:    common.HexToAddress("0x03"),
			IrsImplementation:   common.HexToAddress("0x04"),
			TirImplementation:   common.HexToAddress("0x05"),
			McImplementation:    common.HexToAddress("0x06"),
		})
	require.NoError(t, err)
	// selector + 3 version words + 6 address words
	assert.Len(t, input, 4+9*32)
}

func TestPackFactoryDeployment(t *testing.T) {
	factory := MustABI(TREXFactory)
	_, err := factory.Pack("deployTREXSuite", "salt",
		FactoryTokenDetails{
			Owner:              common.HexToAddress("0x01"),
			Name:               "TREXDINO",
			Symbol:             "TREX",
			IrAgents:           []common.Address{common.HexToAddress("0x02")},
			TokenAgents:        []common.Address{common.HexToAddress("0x02")},
			ComplianceModules:  []common.Address{},
			ComplianceSettings: [][]byte{},
		},
		FactoryClaimDetails{
			ClaimTopics:  []*big.Int{big.NewInt(1)},
			Issuers:      []common.Address{common.HexToAddress("0x03")},
			IssuerClaims: [][]*big.Int{{big.NewInt(1)}},
		})
	require.NoError(t, err)

	_, ok := factory.Events[SuiteDeployedEvent]
	assert.True(t, ok)
}

func writeArtifact(t *testing.T, dir, name, bytecode string) string {
	t.Helper()
	doc := map[string]interface{}{
		"contractName": name,
		"abi":          json.RawMessage(`[{"type":"constructor","inputs":[{"name":"a","type":"address"}],"stateMutability":"nonpayable"}]`),
		"bytecode":     bytecode,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	p := filepath.Join(dir, name+".json")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestParseArtifact(t *testing.T) {
	a, err := ParseArtifact([]byte(`{"contractName":"X","abi":[],"bytecode":"0x6001"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "X", a.Name)
	assert.Equal(t, []byte{0x60, 0x01}, a.Bytecode)

	a, err = ParseArtifact([]byte(`{"abi":[],"bytecode":{"object":"6002"}}`), "Y")
	require.NoError(t, err)
	assert.Equal(t, "Y", a.Name)
	assert.Equal(t, []byte{0x60, 0x02}, a.Bytecode)

	for _, doc := range []string{
		`not json`,
		`{"contractName":"X","abi":[],"bytecode":"0x"}`,
		`{"contractName":"X","abi":[],"bytecode":"0x73__$lib$__"}`,
		`{"contractName":"X","abi":{},"bytecode":"0x6001"}`,
	} {
		_, err := ParseArtifact([]byte(doc), "")
		assert.ErrorIs(t, err, interfaces.ErrValidation, doc)
	}
}

func TestLoadArtifactsDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "contracts", "token")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeArtifact(t, sub, Token, "0x6001")
	writeArtifact(t, dir, "IToken", "0x")
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Token.dbg.json"), []byte(`{}`), 0o644))

	set, err := LoadArtifactsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{Token}, set.Names())

	a, err := set.Get(Token)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, a.Bytecode)

	_, err = set.Get(TokenProxy)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)
	assert.ErrorIs(t, set.Require(Token, TokenProxy), interfaces.ErrPrecondition)
	assert.NoError(t, set.Require(Token))
}

func TestManifestRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeArtifact(t, dir, Token, "0x6001")
	writeArtifact(t, dir, TokenProxy, "0x6002")

	set, err := LoadArtifactsDir(dir)
	require.NoError(t, err)

	backend, err := storage.NewFileBackend(filepath.Join(dir, "store"), slog.Default())
	require.NoError(t, err)

	manifest, err := PublishArtifacts(ctx, backend, set)
	require.NoError(t, err)
	assert.Len(t, manifest.Contracts, 2)

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	parsed, err := ParseManifest(data)
	require.NoError(t, err)

	resolved, err := parsed.Resolve(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, set.Names(), resolved.Names())

	// An entry pointing at content stored under another name is rejected.
	parsed.Contracts[Token] = manifest.Contracts[TokenProxy]
	_, err = parsed.Resolve(ctx, backend)
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	_, err = ParseManifest([]byte(`{"contracts":{}}`))
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}
