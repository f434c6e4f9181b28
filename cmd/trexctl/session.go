package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/trex-suite-provisioning/cmd/flags"
	"github.com/ruteri/trex-suite-provisioning/config"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/deployer"
	"github.com/ruteri/trex-suite-provisioning/httpserver"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/ledger"
	"github.com/ruteri/trex-suite-provisioning/metrics"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/urfave/cli/v2"
)

// session holds what every ledger-bound command needs.
type session struct {
	log      *slog.Logger
	runID    string
	cfg      *config.DeploymentConfig
	ledger   *ledger.EthLedger
	metrics  *metrics.Metrics
	progress *deployer.Progress
	backend  interfaces.StorageBackend
	roles    *signers.Resolver
	server   *httpserver.Server
}

func newSession(cCtx *cli.Context) (*session, error) {
	logger, runID := flags.SetupLogger(cCtx)
	if runID == "" {
		runID = uuid.Must(uuid.NewRandom()).String()
	}

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return nil, err
	}

	backend, err := flags.StorageBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	roles, err := flags.Resolver(cCtx, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	l, err := ledger.Dial(cCtx.Context, cfg.RPCURL, logger)
	if err != nil {
		return nil, err
	}
	l.WithConfirmTimeout(cfg.ConfirmTimeout).WithMetrics(m)

	s := &session{
		log:      logger,
		runID:    runID,
		cfg:      cfg,
		ledger:   l,
		metrics:  m,
		progress: deployer.NewProgress(),
		backend:  backend,
		roles:    roles,
	}

	if srvCfg := flags.ConfigureServer(cCtx, logger, reg); srvCfg != nil {
		s.server, err = httpserver.New(srvCfg, s.progress)
		if err != nil {
			return nil, err
		}
		s.server.RunInBackground()
	}
	return s, nil
}

// runtime builds the orchestration runtime over artifacts.
func (s *session) runtime(artifacts *contracts.ArtifactSet) *deployer.Runtime {
	rt := deployer.NewRuntime(s.ledger, artifacts, s.log).WithMetrics(s.metrics)
	rt.Progress = s.progress
	return rt
}

func (s *session) close() {
	if s.server != nil {
		s.server.Shutdown()
	}
}

// publish prints the address table and stores it in the configured backends.
func (s *session) publish(ctx context.Context, out io.Writer, table *interfaces.AddressTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	fmt.Fprint(out, table.ExportLines())

	if s.backend == nil {
		return nil
	}
	id, err := s.backend.Store(ctx, data, interfaces.AddressBookType)
	if err != nil {
		return fmt.Errorf("storing address book: %w", err)
	}
	s.log.Info("Address book stored",
		slog.String("contentID", id.String()),
		slog.String("backend", s.backend.Name()))
	return nil
}
