package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockLedger mocks interfaces.Ledger. Expectations match on the contract
// name or address, the method, the signer address and the argument slice.
type MockLedger struct {
	mock.Mock
}

// Deploy mocks the Deploy method
func (m *MockLedger) Deploy(ctx context.Context, artifact *interfaces.Artifact, signer interfaces.Signer, args ...interface{}) (common.Address, error) {
	ret := m.Called(artifact.Name, signer.Address(), args)
	return ret.Get(0).(common.Address), ret.Error(1)
}

// Submit mocks the Submit method
func (m *MockLedger) Submit(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, signer interfaces.Signer, args ...interface{}) (*types.Receipt, error) {
	ret := m.Called(contract, method, signer.Address(), args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*types.Receipt), ret.Error(1)
}

// Call mocks the Call method
func (m *MockLedger) Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	ret := m.Called(contract, method, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]interface{}), ret.Error(1)
}
