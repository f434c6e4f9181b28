package ledger

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/ruteri/trex-suite-provisioning/metrics"
	"github.com/ruteri/trex-suite-provisioning/signers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hand-assembled init code: each deploys the runtime that follows it.
const (
	// runtime: STOP
	stopCode = "0x60016000f3"
	// runtime: return uint256(42) for any call
	answerCode = "0x600a600c600039600a6000f3" + "602a60005260206000f3"
	// runtime: revert for any call
	revertCode = "0x6005600c60003960056000f3" + "60006000fd"
	// init code that reverts
	failingInit = "0x60006000fd"
)

const answerABI = `[
	{"type":"function","name":"answer","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"poke","inputs":[{"name":"v","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

type testChain struct {
	backend *simulated.Backend
	signer  *signers.KeySigner
	ledger  *EthLedger
	reg     *prometheus.Registry
	stop    chan struct{}
}

// setupTestChain starts a simulated chain with one funded account.
// With autoCommit a background goroutine seals blocks so confirmation
// waits complete.
func setupTestChain(t *testing.T, autoCommit bool) *testChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := signers.NewKeySigner(key)

	balance, _ := new(big.Int).SetString("10000000000000000000", 10)
	backend := simulated.NewBackend(map[common.Address]types.Account{
		signer.Address(): {Balance: balance},
	}, simulated.WithBlockGasLimit(8_000_000))

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewEthLedger(backend.Client(), backend.Client(), big.NewInt(1337), logger).
		WithMetrics(metrics.New(reg)).
		WithConfirmTimeout(10 * time.Second)

	tc := &testChain{backend: backend, signer: signer, ledger: l, reg: reg, stop: make(chan struct{})}

	if autoCommit {
		go func() {
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-tc.stop:
					return
				case <-ticker.C:
					backend.Commit()
				}
			}
		}()
	}

	t.Cleanup(func() {
		close(tc.stop)
		backend.Close()
	})
	return tc
}

func artifact(t *testing.T, name, code string) *interfaces.Artifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(answerABI))
	require.NoError(t, err)
	return &interfaces.Artifact{Name: name, ABI: parsed, Bytecode: hexutil.MustDecode(code)}
}

func TestEthLedger_DeployAndCall(t *testing.T) {
	tc := setupTestChain(t, true)
	ctx := context.Background()

	addr, err := tc.ledger.Deploy(ctx, artifact(t, "Answer", answerCode), tc.signer)
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, addr)

	a := artifact(t, "Answer", answerCode)
	out, err := tc.ledger.Call(ctx, addr, &a.ABI, "answer")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(42), out[0])

	receipt, err := tc.ledger.Submit(ctx, addr, &a.ABI, "poke", tc.signer, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(tc.ledger.metrics.Transactions.WithLabelValues("deploy", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tc.ledger.metrics.Transactions.WithLabelValues("call", "confirmed")))
}

func TestEthLedger_DeployEmptyRuntime(t *testing.T) {
	tc := setupTestChain(t, true)

	addr, err := tc.ledger.Deploy(context.Background(), artifact(t, "Stop", stopCode), tc.signer)
	require.NoError(t, err)

	code, err := tc.backend.Client().CodeAt(context.Background(), addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, code)
}

func TestEthLedger_Reverts(t *testing.T) {
	tc := setupTestChain(t, true)
	ctx := context.Background()

	_, err := tc.ledger.Deploy(ctx, artifact(t, "Broken", failingInit), tc.signer)
	assert.ErrorIs(t, err, interfaces.ErrReverted)

	a := artifact(t, "Reverter", revertCode)
	addr, err := tc.ledger.Deploy(ctx, a, tc.signer)
	require.NoError(t, err)

	_, err = tc.ledger.Submit(ctx, addr, &a.ABI, "poke", tc.signer, big.NewInt(1))
	assert.ErrorIs(t, err, interfaces.ErrReverted)

	_, err = tc.ledger.Call(ctx, addr, &a.ABI, "answer")
	assert.Error(t, err)
}

func TestEthLedger_ConfirmationTimeout(t *testing.T) {
	tc := setupTestChain(t, false)
	tc.ledger.WithConfirmTimeout(300 * time.Millisecond)

	_, err := tc.ledger.Deploy(context.Background(), artifact(t, "Stop", stopCode), tc.signer)
	assert.ErrorIs(t, err, interfaces.ErrConfirmation)
	assert.Equal(t, 1.0, testutil.ToFloat64(tc.ledger.metrics.Transactions.WithLabelValues("deploy", "timeout")))
}

func TestEthLedger_NoSigner(t *testing.T) {
	tc := setupTestChain(t, false)

	_, err := tc.ledger.Deploy(context.Background(), artifact(t, "Stop", stopCode), nil)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)

	a := artifact(t, "Stop", stopCode)
	_, err = tc.ledger.Submit(context.Background(), common.HexToAddress("0x01"), &a.ABI, "poke", nil, big.NewInt(1))
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
}
