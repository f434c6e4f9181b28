package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/metrics"
)

// DefaultConfirmTimeout bounds the wait for one confirmation.
const DefaultConfirmTimeout = 2 * time.Minute

// EthLedger implements interfaces.Ledger against an Ethereum JSON-RPC node
// or a simulated backend.
type EthLedger struct {
	client         bind.ContractBackend
	backend        bind.DeployBackend
	chainID        *big.Int
	confirmTimeout time.Duration
	log            *slog.Logger
	metrics        *metrics.Metrics
}

// NewEthLedger creates a ledger over a contract backend (reads and
// submission) and a deploy backend (receipts and code).
func NewEthLedger(client bind.ContractBackend, backend bind.DeployBackend, chainID *big.Int, log *slog.Logger) *EthLedger {
	return &EthLedger{
		client:         client,
		backend:        backend,
		chainID:        chainID,
		confirmTimeout: DefaultConfirmTimeout,
		log:            log,
	}
}

// Dial connects to rpcURL and reads the chain ID.
func Dial(ctx context.Context, rpcURL string, log *slog.Logger) (*EthLedger, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to %s: %v", interfaces.ErrPrecondition, rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: cannot read chain id from %s: %v", interfaces.ErrPrecondition, rpcURL, err)
	}

	log.Info("Connected to ledger", slog.String("rpc", rpcURL), slog.String("chainID", chainID.String()))
	return NewEthLedger(client, client, chainID, log), nil
}

// WithConfirmTimeout sets how long Deploy and Submit wait for a receipt.
func (l *EthLedger) WithConfirmTimeout(d time.Duration) *EthLedger {
	if d > 0 {
		l.confirmTimeout = d
	}
	return l
}

// WithMetrics attaches transaction metrics.
func (l *EthLedger) WithMetrics(m *metrics.Metrics) *EthLedger {
	l.metrics = m
	return l
}

// ChainID returns the chain the ledger signs for.
func (l *EthLedger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// Deploy creates a contract from artifact and waits for its receipt.
func (l *EthLedger) Deploy(ctx context.Context, artifact *interfaces.Artifact, signer interfaces.Signer, args ...interface{}) (common.Address, error) {
	opts, err := l.transactOpts(ctx, signer)
	if err != nil {
		return common.Address{}, err
	}

	start := time.Now()
	addr, tx, _, err := bind.DeployContract(opts, artifact.ABI, artifact.Bytecode, l.client, args...)
	if err != nil {
		l.metrics.ObserveTransaction("deploy", "error", time.Since(start))
		return common.Address{}, fmt.Errorf("deploying %s: %w", artifact.Name, classifySendError(err))
	}

	l.log.Debug("Deployment submitted",
		slog.String("contract", artifact.Name),
		slog.String("tx", tx.Hash().Hex()),
		slog.String("address", addr.Hex()))

	receipt, err := l.confirm(ctx, "deploy", tx, start)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying %s: %w", artifact.Name, err)
	}
	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}

	code, err := l.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: reading code of %s at %s: %v", interfaces.ErrConfirmation, artifact.Name, addr.Hex(), err)
	}
	if len(code) == 0 {
		return common.Address{}, fmt.Errorf("%w: %s at %s has no code after deployment", interfaces.ErrReverted, artifact.Name, addr.Hex())
	}

	l.log.Info("Contract deployed",
		slog.String("contract", artifact.Name),
		slog.String("address", addr.Hex()),
		slog.Uint64("gasUsed", receipt.GasUsed))

	return addr, nil
}

// Submit sends method on contract and waits for its receipt. For a mined
// but reverted transaction the receipt is returned alongside ErrReverted.
func (l *EthLedger) Submit(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, signer interfaces.Signer, args ...interface{}) (*types.Receipt, error) {
	opts, err := l.transactOpts(ctx, signer)
	if err != nil {
		return nil, err
	}

	bound := bind.NewBoundContract(contract, *contractABI, l.client, l.client, l.client)

	start := time.Now()
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		l.metrics.ObserveTransaction("call", "error", time.Since(start))
		return nil, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), classifySendError(err))
	}

	l.log.Debug("Transaction submitted",
		slog.String("method", method),
		slog.String("to", contract.Hex()),
		slog.String("tx", tx.Hash().Hex()))

	receipt, err := l.confirm(ctx, "call", tx, start)
	if err != nil {
		return receipt, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), err)
	}

	return receipt, nil
}

// Call performs a read-only query at the latest block.
func (l *EthLedger) Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	bound := bind.NewBoundContract(contract, *contractABI, l.client, l.client, l.client)

	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("querying %s on %s: %w", method, contract.Hex(), err)
	}
	return out, nil
}

func (l *EthLedger) transactOpts(ctx context.Context, signer interfaces.Signer) (*bind.TransactOpts, error) {
	if signer == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	opts, err := signer.TransactOpts(ctx, l.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrNoTransactOpts, err)
	}
	return opts, nil
}

// confirm waits for one confirmation of tx within the configured timeout.
func (l *EthLedger) confirm(ctx context.Context, kind string, tx *types.Transaction, start time.Time) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, l.backend, tx)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		l.metrics.ObserveTransaction(kind, outcome, time.Since(start))
		return nil, fmt.Errorf("%w: tx %s: %v", interfaces.ErrConfirmation, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		l.metrics.ObserveTransaction(kind, "reverted", time.Since(start))
		return receipt, fmt.Errorf("%w: tx %s in block %s", interfaces.ErrReverted, tx.Hash().Hex(), receipt.BlockNumber)
	}

	l.metrics.ObserveTransaction(kind, "confirmed", time.Since(start))
	return receipt, nil
}

// classifySendError maps gas estimation failures caused by a revert to
// ErrReverted so callers see one error class for rejected calls.
func classifySendError(err error) error {
	if strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %v", interfaces.ErrReverted, err)
	}
	return err
}
