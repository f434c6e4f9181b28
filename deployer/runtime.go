package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/metrics"
)

// Runtime bundles the dependencies shared by the deployers.
type Runtime struct {
	Ledger    interfaces.Ledger
	Artifacts *contracts.ArtifactSet
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Progress  *Progress
}

// NewRuntime creates a runtime with a fresh progress tracker.
func NewRuntime(ledger interfaces.Ledger, artifacts *contracts.ArtifactSet, log *slog.Logger) *Runtime {
	return &Runtime{
		Ledger:    ledger,
		Artifacts: artifacts,
		Log:       log,
		Progress:  NewProgress(),
	}
}

// WithMetrics records step counters on m.
func (rt *Runtime) WithMetrics(m *metrics.Metrics) *Runtime {
	rt.Metrics = m
	return rt
}

func (rt *Runtime) deploy(ctx context.Context, name string, signer interfaces.Signer, args ...interface{}) (common.Address, error) {
	artifact, err := rt.Artifacts.Get(name)
	if err != nil {
		return common.Address{}, err
	}

	addr, err := rt.Ledger.Deploy(ctx, artifact, signer, args...)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying %s: %w", name, err)
	}

	rt.Log.Info("Contract deployed",
		slog.String("contract", name),
		slog.String("address", addr.Hex()),
		slog.String("from", signer.Address().Hex()))
	return addr, nil
}

func (rt *Runtime) submit(ctx context.Context, contract common.Address, abiName, method string, signer interfaces.Signer, args ...interface{}) (*types.Receipt, error) {
	contractABI, err := contracts.ABI(abiName)
	if err != nil {
		return nil, err
	}

	receipt, err := rt.Ledger.Submit(ctx, contract, contractABI, method, signer, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", abiName, method, err)
	}

	rt.Log.Debug("Transaction confirmed",
		slog.String("contract", abiName),
		slog.String("method", method),
		slog.String("address", contract.Hex()),
		slog.String("tx", receipt.TxHash.Hex()))
	return receipt, nil
}

func (rt *Runtime) query(ctx context.Context, contract common.Address, abiName, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := contracts.ABI(abiName)
	if err != nil {
		return nil, err
	}
	out, err := rt.Ledger.Call(ctx, contract, contractABI, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", abiName, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s.%s: empty result", abiName, method)
	}
	return out[0], nil
}

func (rt *Runtime) queryAddress(ctx context.Context, contract common.Address, abiName, method string, args ...interface{}) (common.Address, error) {
	v, err := rt.query(ctx, contract, abiName, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s.%s: unexpected result type %T", abiName, method, v)
	}
	return addr, nil
}

// step marks a completed stage in the progress tracker and metrics.
func (rt *Runtime) step(stage string) {
	rt.Progress.Complete(stage)
	rt.Metrics.IncStep(stage)
}
