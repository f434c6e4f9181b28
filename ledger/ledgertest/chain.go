// Package ledgertest provides Chain, an in-memory ledger that emulates the
// T-REX and OnchainID contracts closely enough to exercise deployment
// orchestration: proxies refuse to deploy behind an empty authority, access
// control is enforced per sender, claims are checked against the issuer's
// keys and the factory emits a real ABI-encoded TREXSuiteDeployed log.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// Call is one confirmed state-changing transaction.
type Call struct {
	Contract common.Address
	Kind     string
	Method   string
	From     common.Address
	Args     []interface{}
}

// Deployment is one confirmed contract creation.
type Deployment struct {
	Address common.Address
	Name    string
	From    common.Address
}

// Chain implements interfaces.Ledger in memory.
type Chain struct {
	mu          sync.Mutex
	contracts   map[common.Address]contract
	nonces      map[common.Address]uint64
	block       uint64
	calls       []Call
	deployments []Deployment
	queries     []string
	failures    map[string]error
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{
		contracts: make(map[common.Address]contract),
		nonces:    make(map[common.Address]uint64),
		failures:  make(map[string]error),
	}
}

// Artifacts returns an artifact set for every embedded ABI with placeholder
// bytecode, suitable for deploying on a Chain.
func Artifacts() *contracts.ArtifactSet {
	set := contracts.NewArtifactSet()
	for _, name := range contracts.Names() {
		a, err := contracts.NewArtifact(name, []byte{0x00})
		if err != nil {
			panic(err)
		}
		set.Add(a, nil)
	}
	return set
}

// FailOn makes the next transaction calling method (or deploying a contract
// named method) fail with err.
func (c *Chain) FailOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = err
}

// Calls returns the confirmed transactions in order.
func (c *Chain) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Deployments returns the confirmed deployments in order.
func (c *Chain) Deployments() []Deployment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Deployment(nil), c.deployments...)
}

// TxCount is the number of confirmed deployments and calls.
func (c *Chain) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls) + len(c.deployments)
}

// Queries returns the read-only methods called so far.
func (c *Chain) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// Kind returns the contract name deployed at addr, or "".
func (c *Chain) Kind(addr common.Address) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.contracts[addr]; ok {
		return ct.kind()
	}
	return ""
}

// Deploy implements interfaces.Ledger.
func (c *Chain) Deploy(ctx context.Context, artifact *interfaces.Artifact, signer interfaces.Signer, args ...interface{}) (common.Address, error) {
	if signer == nil {
		return common.Address{}, interfaces.ErrNoTransactOpts
	}
	if err := ctx.Err(); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", interfaces.ErrConfirmation, err)
	}
	if _, err := artifact.ABI.Pack("", args...); err != nil {
		return common.Address{}, fmt.Errorf("deploying %s: %w", artifact.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure(artifact.Name); err != nil {
		return common.Address{}, fmt.Errorf("deploying %s: %w", artifact.Name, err)
	}

	from := signer.Address()
	addr := c.nextAddress(from)
	ct, err := c.construct(artifact.Name, addr, from, args)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploying %s: %w", artifact.Name, err)
	}

	c.contracts[addr] = ct
	c.block++
	c.deployments = append(c.deployments, Deployment{Address: addr, Name: artifact.Name, From: from})
	return addr, nil
}

// Submit implements interfaces.Ledger.
func (c *Chain) Submit(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, signer interfaces.Signer, args ...interface{}) (*types.Receipt, error) {
	if signer == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrConfirmation, err)
	}
	if _, err := contractABI.Pack(method, args...); err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeFailure(method); err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), err)
	}

	ct, ok := c.contracts[contract]
	if !ok {
		return nil, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), revert("no contract at address"))
	}

	from := signer.Address()
	logs, err := ct.submit(c, from, method, args)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, contract.Hex(), err)
	}

	c.block++
	c.nonces[from]++
	c.calls = append(c.calls, Call{Contract: contract, Kind: ct.kind(), Method: method, From: from, Args: args})

	txHash := crypto.Keccak256Hash(contract.Bytes(), []byte(method), new(big.Int).SetUint64(c.block).Bytes())
	for i, l := range logs {
		l.TxHash = txHash
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		Logs:        logs,
	}, nil
}

// Call implements interfaces.Ledger.
func (c *Chain) Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if _, err := contractABI.Pack(method, args...); err != nil {
		return nil, fmt.Errorf("querying %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = append(c.queries, method)
	if err := c.takeFailure(method); err != nil {
		return nil, fmt.Errorf("querying %s on %s: %w", method, contract.Hex(), err)
	}

	ct, ok := c.contracts[contract]
	if !ok {
		return nil, fmt.Errorf("querying %s on %s: %w", method, contract.Hex(), revert("no contract at address"))
	}
	out, err := ct.call(c, method, args)
	if err != nil {
		return nil, fmt.Errorf("querying %s on %s: %w", method, contract.Hex(), err)
	}
	return out, nil
}

func (c *Chain) takeFailure(key string) error {
	if err, ok := c.failures[key]; ok {
		delete(c.failures, key)
		return err
	}
	return nil
}

func (c *Chain) nextAddress(from common.Address) common.Address {
	addr := crypto.CreateAddress(from, c.nonces[from])
	c.nonces[from]++
	return addr
}

func revert(reason string) error {
	return fmt.Errorf("%w: execution reverted: %s", interfaces.ErrReverted, reason)
}

func badArgs(method string) error {
	return fmt.Errorf("%w: unexpected arguments for %s", interfaces.ErrValidation, method)
}

func lookup[T contract](c *Chain, addr common.Address) (T, bool) {
	ct, ok := c.contracts[addr].(T)
	return ct, ok
}
