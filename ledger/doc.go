// Package ledger implements the deploy, submit and query primitives on top
// of go-ethereum. Every state-changing operation blocks until its
// transaction has one confirmation. A confirmation timeout or a reverted
// transaction is reported as an error and is never retried.
//
// MockLedger is a testify mock of interfaces.Ledger. The ledgertest
// subpackage provides an in-memory T-REX chain for orchestration tests.
package ledger
