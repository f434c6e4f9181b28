package flags

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/trex-suite-provisioning/config"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func clearRoleKeys(t *testing.T) {
	for _, role := range interfaces.AllRoles {
		t.Setenv(role.EnvKey(), "")
	}
}

func runWith(t *testing.T, args []string, action func(*cli.Context) error) {
	t.Helper()
	app := &cli.App{
		Name:   "test",
		Flags:  append(append([]cli.Flag{SaltFlag, FactoryAddrFlag}, CommonFlags...), DeployFlags...),
		Action: action,
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
}

func writeArtifact(t *testing.T, dir, name string) {
	t.Helper()
	doc := map[string]interface{}{
		"contractName": name,
		"abi":          json.RawMessage(`[]`),
		"bytecode":     "0x6001",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
}

func TestResolverUsesDevSeed(t *testing.T) {
	clearRoleKeys(t)

	runWith(t, []string{"--dev-seed", "0x0102030405", "--dev-participants", "2"}, func(cCtx *cli.Context) error {
		r, err := Resolver(cCtx, testLog)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, role := range interfaces.AllRoles {
			res, err := r.Resolve(role)
			require.NoError(t, err)
			assert.Equal(t, signers.SourcePool, res.Source, role.String())
			seen[res.Signer.Address().Hex()] = true
		}
		assert.Len(t, seen, len(interfaces.AllRoles))

		_, err = r.Participant(1)
		assert.NoError(t, err)
		_, err = r.Participant(2)
		assert.ErrorIs(t, err, interfaces.ErrPrecondition)
		return nil
	})
}

func TestResolverRejectsBadSeed(t *testing.T) {
	clearRoleKeys(t)

	runWith(t, []string{"--dev-seed", "not-hex"}, func(cCtx *cli.Context) error {
		_, err := Resolver(cCtx, testLog)
		assert.ErrorIs(t, err, interfaces.ErrValidation)
		return nil
	})
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("DEPLOYMENT_SALT", "")
	t.Setenv("DEPLOYMENT_CONFIG", "")

	runWith(t, []string{"--salt", "suite-1", "--rpc-url", "http://node:8545", "--confirm-timeout", "30s"}, func(cCtx *cli.Context) error {
		cfg, err := LoadConfig(cCtx)
		require.NoError(t, err)
		assert.Equal(t, "suite-1", cfg.Salt)
		assert.Equal(t, "http://node:8545", cfg.RPCURL)
		assert.Equal(t, "30s", cfg.ConfirmTimeout.String())
		assert.Equal(t, config.DefaultTokenName, cfg.Token.Name)
		return nil
	})
}

func TestLoadArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeArtifact(t, dir, contracts.Token)

	_, err := LoadArtifacts(ctx, &config.DeploymentConfig{}, nil)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)

	set, err := LoadArtifacts(ctx, &config.DeploymentConfig{ArtifactsDir: dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.Token}, set.Names())

	storeDir := filepath.Join(t.TempDir(), "store")
	cfg := &config.DeploymentConfig{Storage: []string{"file://" + storeDir}}
	backend, err := StorageBackend(cfg, testLog)
	require.NoError(t, err)

	manifest, err := contracts.PublishArtifacts(ctx, backend, set)
	require.NoError(t, err)
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	id, err := backend.Store(ctx, data, interfaces.ArtifactType)
	require.NoError(t, err)

	cfg.ArtifactManifest = id.String()
	_, err = LoadArtifacts(ctx, cfg, nil)
	assert.ErrorIs(t, err, interfaces.ErrPrecondition)

	resolved, err := LoadArtifacts(ctx, cfg, backend)
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.Token}, resolved.Names())
}

func TestStorageBackendOptional(t *testing.T) {
	backend, err := StorageBackend(&config.DeploymentConfig{}, testLog)
	require.NoError(t, err)
	assert.Nil(t, backend)

	_, err = StorageBackend(&config.DeploymentConfig{Storage: []string{"ftp://nope"}}, testLog)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
