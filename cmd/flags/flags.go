package flags

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/trex-suite-provisioning/common"
	"github.com/ruteri/trex-suite-provisioning/config"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/httpserver"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/ruteri/trex-suite-provisioning/storage"
	"github.com/urfave/cli/v2"
)

// SetupLogger builds the logger from the log flags. The second return value
// is the run id, empty unless --log-uid is set.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger, runID string) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		runID = uuid.Must(uuid.NewRandom()).String()
		logger = logger.With("uid", runID)
	}
	return logger, runID
}

// ConfigureServer returns the status server configuration, or nil when no
// listen address was given.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, gatherer prometheus.Gatherer) *httpserver.HTTPServerConfig {
	listenAddr := cCtx.String(StatusAddrFlag.Name)
	if listenAddr == "" {
		return nil
	}

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		Gatherer:                 gatherer,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// LoadConfig reads the deployment file and applies flag overrides.
func LoadConfig(cCtx *cli.Context) (*config.DeploymentConfig, error) {
	cfg, err := config.Load(cCtx.String(ConfigFileFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(RpcUrlFlag.Name) || cfg.RPCURL == "" {
		cfg.RPCURL = cCtx.String(RpcUrlFlag.Name)
	}
	if cCtx.IsSet(SaltFlag.Name) {
		cfg.Salt = cCtx.String(SaltFlag.Name)
	}
	if cCtx.IsSet(FactoryAddrFlag.Name) {
		cfg.FactoryAddress = cCtx.String(FactoryAddrFlag.Name)
	}
	if cCtx.IsSet(ConfirmTimeoutFlag.Name) {
		cfg.ConfirmTimeout = cCtx.Duration(ConfirmTimeoutFlag.Name)
	}
	if cCtx.IsSet(ArtifactsDirFlag.Name) {
		cfg.ArtifactsDir = cCtx.String(ArtifactsDirFlag.Name)
	}
	if cCtx.IsSet(ArtifactManifestFlag.Name) {
		cfg.ArtifactManifest = cCtx.String(ArtifactManifestFlag.Name)
	}
	if uris := cCtx.StringSlice(StorageFlag.Name); len(uris) > 0 {
		cfg.Storage = uris
	}
	return cfg, nil
}

// StorageBackend builds a replicating backend over the configured URIs, or
// returns nil when none are configured.
func StorageBackend(cfg *config.DeploymentConfig, logger *slog.Logger) (interfaces.StorageBackend, error) {
	if len(cfg.Storage) == 0 {
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(cfg.Storage))
	for _, uri := range cfg.Storage {
		loc, err := interfaces.NewStorageBackendLocation(strings.TrimSpace(uri))
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

// LoadArtifacts resolves compiled artifacts from the manifest when one is
// configured, otherwise from the artifacts directory.
func LoadArtifacts(ctx context.Context, cfg *config.DeploymentConfig, backend interfaces.StorageBackend) (*contracts.ArtifactSet, error) {
	if cfg.ArtifactManifest == "" {
		if cfg.ArtifactsDir == "" {
			return nil, fmt.Errorf("%w: an artifacts directory or manifest is required", interfaces.ErrPrecondition)
		}
		return contracts.LoadArtifactsDir(cfg.ArtifactsDir)
	}

	if backend == nil {
		return nil, fmt.Errorf("%w: an artifact manifest requires at least one storage backend", interfaces.ErrPrecondition)
	}
	id, err := interfaces.NewContentIDFromHex(cfg.ArtifactManifest)
	if err != nil {
		return nil, err
	}
	data, err := backend.Fetch(ctx, id, interfaces.ArtifactType)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact manifest: %w", err)
	}
	manifest, err := contracts.ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return manifest.Resolve(ctx, backend)
}

// Resolver builds the role resolver from the role key environment and the
// optional development seed.
func Resolver(cCtx *cli.Context, logger *slog.Logger) (*signers.Resolver, error) {
	var pool *signers.Pool
	if seedHex := cCtx.String(DevSeedFlag.Name); seedHex != "" {
		seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid dev seed: %v", interfaces.ErrValidation, err)
		}
		pool, err = signers.DerivePool(seed, interfaces.ParticipantPoolIndex(cCtx.Int(PoolSizeFlag.Name)))
		if err != nil {
			return nil, err
		}
	}
	return signers.NewResolver(logger, signers.KeysFromEnv(os.LookupEnv), pool), nil
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"DEPLOYMENT_CONFIG"},
	Usage:   "optional YAML deployment file",
}

var RpcUrlFlag = &cli.StringFlag{
	Name:    "rpc-url",
	Value:   "http://127.0.0.1:8545",
	EnvVars: []string{"RPC_URL"},
	Usage:   "address to connect to RPC",
}

var SaltFlag = &cli.StringFlag{
	Name:    "salt",
	EnvVars: []string{"DEPLOYMENT_SALT"},
	Usage:   "deployment salt identifying the suite in the factory",
}

var FactoryAddrFlag = &cli.StringFlag{
	Name:    "factory",
	EnvVars: []string{"FACTORY_ADDRESS"},
	Usage:   "TREXFactory contract address",
}

var ConfirmTimeoutFlag = &cli.DurationFlag{
	Name:    "confirm-timeout",
	Value:   config.DefaultConfirmTimeout,
	EnvVars: []string{"CONFIRM_TIMEOUT"},
	Usage:   "how long to wait for each transaction to be mined",
}

var ArtifactsDirFlag = &cli.StringFlag{
	Name:    "artifacts-dir",
	EnvVars: []string{"ARTIFACTS_DIR"},
	Usage:   "directory with compiled Hardhat or Foundry artifacts",
}

var ArtifactManifestFlag = &cli.StringFlag{
	Name:  "artifact-manifest",
	Usage: "content id of an artifact manifest in the storage backends",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:  "storage",
	Usage: "storage backend URI (file://, s3://, ipfs://, vault://), may be repeated",
}

var DevSeedFlag = &cli.StringFlag{
	Name:    "dev-seed",
	EnvVars: []string{"DEV_SEED"},
	Usage:   "hex seed deriving a pooled signer per role and participant (development chains only)",
}

var PoolSizeFlag = &cli.IntFlag{
	Name:  "dev-participants",
	Value: 8,
	Usage: "number of participant signers derived from the dev seed",
}

var StatusAddrFlag = &cli.StringFlag{
	Name:  "status-addr",
	Usage: "address to serve run status and metrics on, disabled when empty",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "trexctl",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint on the status server",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var DeployFlags = []cli.Flag{
	ConfigFileFlag,
	RpcUrlFlag,
	ConfirmTimeoutFlag,
	ArtifactsDirFlag,
	ArtifactManifestFlag,
	StorageFlag,
	DevSeedFlag,
	PoolSizeFlag,
	StatusAddrFlag,
	PprofFlag,
}
