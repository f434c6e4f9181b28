package events

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token = common.HexToAddress("0x1000000000000000000000000000000000000001")
	ir    = common.HexToAddress("0x1000000000000000000000000000000000000002")
	irs   = common.HexToAddress("0x1000000000000000000000000000000000000003")
	tir   = common.HexToAddress("0x1000000000000000000000000000000000000004")
	ctr   = common.HexToAddress("0x1000000000000000000000000000000000000005")
	mc    = common.HexToAddress("0x1000000000000000000000000000000000000006")
)

func newDecoder() *Decoder {
	return NewDecoder(contracts.MustABI(contracts.TREXFactory), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func suiteLog(t *testing.T, tokenAddr, irAddr common.Address) *types.Log {
	t.Helper()
	event := contracts.MustABI(contracts.TREXFactory).Events[contracts.SuiteDeployedEvent]
	data, err := event.Inputs.NonIndexed().Pack(irAddr, irs, tir, ctr, mc)
	require.NoError(t, err)
	return &types.Log{
		Address: common.HexToAddress("0xfac"),
		Topics:  []common.Hash{event.ID, common.BytesToHash(tokenAddr.Bytes()), crypto.Keccak256Hash([]byte("salt"))},
		Data:    data,
	}
}

func unrelatedLogs(t *testing.T) []*types.Log {
	event := contracts.MustABI(contracts.TREXFactory).Events[contracts.SuiteDeployedEvent]
	return []*types.Log{
		{
			Address: token,
			Topics:  []common.Hash{crypto.Keccak256Hash([]byte("OwnershipTransferred(address,address)")), {}, {}},
		},
		{Address: ir},
		{
			// Same signature but a truncated payload.
			Address: common.HexToAddress("0xbad"),
			Topics:  []common.Hash{event.ID, common.BytesToHash(token.Bytes()), {}},
			Data:    []byte{0x01, 0x02},
		},
	}
}

func TestExtractSuiteAddressesAmongUnrelatedLogs(t *testing.T) {
	receipt := &types.Receipt{Logs: append(unrelatedLogs(t), suiteLog(t, token, ir))}

	suite, err := newDecoder().ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, DefaultSuiteFieldMap)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SuiteAddressSet{
		Token:                   token,
		IdentityRegistry:        ir,
		IdentityRegistryStorage: irs,
		TrustedIssuersRegistry:  tir,
		ClaimTopicsRegistry:     ctr,
		Compliance:              mc,
	}, suite)
}

func TestExtractUsesFirstMatch(t *testing.T) {
	other := common.HexToAddress("0x2000000000000000000000000000000000000001")
	receipt := &types.Receipt{Logs: []*types.Log{suiteLog(t, token, ir), suiteLog(t, other, ir)}}

	suite, err := newDecoder().ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, DefaultSuiteFieldMap)
	require.NoError(t, err)
	assert.Equal(t, token, suite.Token)
}

func TestExtractPositionalFallback(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{suiteLog(t, token, ir)}}
	fields := FieldMap{
		FieldToken:            {Name: "tokenAddress", Index: 0},
		FieldIdentityRegistry: {Name: "", Index: 1},
	}

	suite, err := newDecoder().ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, fields)
	require.NoError(t, err)
	assert.Equal(t, token, suite.Token)
	assert.Equal(t, ir, suite.IdentityRegistry)
	assert.Equal(t, common.Address{}, suite.Compliance)

	_, err = newDecoder().ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, FieldMap{FieldToken: {Name: "missing", Index: 9}})
	assert.ErrorIs(t, err, interfaces.ErrEventNotFound)

	_, err = newDecoder().ExtractSuiteAddresses(receipt, contracts.SuiteDeployedEvent, FieldMap{FieldToken: {Name: "_salt"}})
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestExtractFailures(t *testing.T) {
	d := newDecoder()

	_, err := d.ExtractSuiteAddresses(&types.Receipt{Logs: unrelatedLogs(t)}, contracts.SuiteDeployedEvent, DefaultSuiteFieldMap)
	assert.ErrorIs(t, err, interfaces.ErrEventNotFound)

	_, err = d.ExtractSuiteAddresses(nil, contracts.SuiteDeployedEvent, DefaultSuiteFieldMap)
	assert.ErrorIs(t, err, interfaces.ErrEventNotFound)

	_, err = d.ExtractSuiteAddresses(&types.Receipt{}, "NoSuchEvent", DefaultSuiteFieldMap)
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	zeroIR := &types.Receipt{Logs: []*types.Log{suiteLog(t, token, common.Address{})}}
	suite, err := d.ExtractSuiteAddresses(zeroIR, contracts.SuiteDeployedEvent, DefaultSuiteFieldMap)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
	assert.Equal(t, interfaces.SuiteAddressSet{}, suite, "no partial result")
}
