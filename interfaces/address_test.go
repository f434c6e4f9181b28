package interfaces

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	checksummed := addr.Hex()

	tests := []struct {
		name    string
		input   string
		want    common.Address
		wantErr bool
	}{
		{name: "checksummed", input: checksummed, want: addr},
		{name: "lowercase", input: strings.ToLower(checksummed), want: addr},
		{name: "uppercase body", input: "0x" + strings.ToUpper(checksummed[2:]), want: addr},
		{name: "no prefix", input: strings.ToLower(checksummed[2:]), want: addr},
		{name: "surrounding spaces", input: "  " + checksummed + " ", want: addr},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "0x1234", wantErr: true},
		{name: "not hex", input: "0x" + strings.Repeat("z", 40), wantErr: true},
		{name: "zero", input: "0x0000000000000000000000000000000000000000", wantErr: true},
		{name: "bad checksum", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, checksummed, got.Hex())
		})
	}
}

func TestValidateAddressKnownChecksums(t *testing.T) {
	// EIP-55 reference vectors.
	for _, s := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		got, err := ValidateAddress(s)
		require.NoError(t, err)
		assert.Equal(t, s, got.Hex())
	}
}

func TestRequireNonZero(t *testing.T) {
	assert.ErrorIs(t, RequireNonZero("token", common.Address{}), ErrValidation)
	assert.NoError(t, RequireNonZero("token", common.HexToAddress("0x01")))
}
