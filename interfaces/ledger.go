package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Artifact is a compiled contract: its identifier, ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Signer is one signing identity. Every action taken under a role goes
// through the same Signer for the whole run.
type Signer interface {
	// Address returns the account address controlled by the signer.
	Address() common.Address

	// TransactOpts returns fresh transaction options bound to ctx.
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// SignHash signs a 32-byte hash, returning r||s||v with v in {0,1}.
	SignHash(hash []byte) ([]byte, error)
}

// Ledger is the set of primitives the orchestrator needs from a chain.
// Deploy and Submit block until the transaction has one confirmation.
type Ledger interface {
	// Deploy creates a contract and returns its address once confirmed.
	Deploy(ctx context.Context, artifact *Artifact, signer Signer, args ...interface{}) (common.Address, error)

	// Submit sends a state-changing call and returns the confirmed receipt.
	// A reverted transaction is reported as ErrReverted.
	Submit(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, signer Signer, args ...interface{}) (*types.Receipt, error)

	// Call performs a read-only query without a transaction.
	Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}
