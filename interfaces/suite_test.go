package interfaces

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeploymentSalt(t *testing.T) {
	salt, err := NewDeploymentSalt("  trex-demo \n")
	require.NoError(t, err)
	assert.Equal(t, DeploymentSalt("trex-demo"), salt)

	for _, s := range []string{"", "   ", "\t\n"} {
		_, err := NewDeploymentSalt(s)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestNewTokenDetails(t *testing.T) {
	d, err := NewTokenDetails("TREXDINO", "TREX", 18)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d.Decimals)

	_, err = NewTokenDetails("TREXDINO", "TREX", 19)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewTokenDetails("TREXDINO", "TREX", -1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewTokenDetails(" ", "TREX", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("4.0.0")
	require.NoError(t, err)
	assert.Equal(t, VersionTriple{Major: 4}, v)
	assert.Equal(t, "4.0.0", v.String())

	v, err = ParseVersion("v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, VersionTriple{1, 2, 3}, v)

	for _, s := range []string{"4.0", "4.0.0.1", "a.b.c", "256.0.0"} {
		_, err := ParseVersion(s)
		assert.ErrorIs(t, err, ErrValidation, s)
	}
}

func TestParseClaimTopic(t *testing.T) {
	v, err := ParseClaimTopic("42")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)

	v, err = ParseClaimTopic("0x2a")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)

	v, err = ParseClaimTopic("CLAIM_TOPIC")
	require.NoError(t, err)
	assert.Equal(t, TopicFromName("CLAIM_TOPIC"), v)

	_, err = ParseClaimTopic("")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseClaimTopic("0xzz")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUniqueTopics(t *testing.T) {
	got := UniqueTopics([]*big.Int{big.NewInt(7), big.NewInt(1), big.NewInt(7), nil, big.NewInt(1)})
	assert.Equal(t, []*big.Int{big.NewInt(7), big.NewInt(1)}, got)
}

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	assert.Equal(t, "CLAIM_ISSUER_PRIVATE_KEY", RoleClaimIssuer.EnvKey())
	assert.Equal(t, "DEPLOYER_PRIVATE_KEY", RoleDeployer.EnvKey())
	assert.Equal(t, 5, ParticipantPoolIndex(0))

	_, err := ParseRole("auditor")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSuiteAddressSetValidate(t *testing.T) {
	set := SuiteAddressSet{
		Token:                   common.HexToAddress("0x01"),
		IdentityRegistry:        common.HexToAddress("0x02"),
		IdentityRegistryStorage: common.HexToAddress("0x03"),
		TrustedIssuersRegistry:  common.HexToAddress("0x04"),
		ClaimTopicsRegistry:     common.HexToAddress("0x05"),
		Compliance:              common.HexToAddress("0x06"),
		TokenOnchainID:          common.HexToAddress("0x07"),
	}
	require.NoError(t, set.Validate())

	set.Compliance = common.Address{}
	err := set.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "MODULAR_COMPLIANCE_ADDRESS")
}

func TestAddressTableExportLines(t *testing.T) {
	table := &AddressTable{
		Accounts: RoleAddresses{Deployer: common.HexToAddress("0xaa")},
		Suite:    SuiteAddressSet{Token: common.HexToAddress("0xbb")},
		Identities: IdentityAddresses{Participants: []ParticipantIdentity{
			{Name: "alice", Wallet: common.HexToAddress("0xcc"), Identity: common.HexToAddress("0xdd")},
		}},
	}

	out := table.ExportLines()
	assert.Contains(t, out, "export DEPLOYER_ADDRESS="+common.HexToAddress("0xaa").Hex()+"\n")
	assert.Contains(t, out, "export TOKEN_ADDRESS="+common.HexToAddress("0xbb").Hex()+"\n")
	assert.Contains(t, out, "export ALICE_IDENTITY_ADDRESS="+common.HexToAddress("0xdd").Hex()+"\n")
	assert.NotContains(t, out, "IDENTITY_REGISTRY_ADDRESS")
	assert.Equal(t, 4, strings.Count(out, "export "))
}

func TestAddressTableExportKeysAreShellSafe(t *testing.T) {
	table := &AddressTable{
		Identities: IdentityAddresses{Participants: []ParticipantIdentity{
			{Name: "bob-jr", Wallet: common.HexToAddress("0x01")},
			{Name: "alice smith", Wallet: common.HexToAddress("0x02")},
			{Name: "eve$(id);", Wallet: common.HexToAddress("0x03")},
		}},
	}

	out := table.ExportLines()
	assert.Contains(t, out, "export BOB_JR_WALLET_ADDRESS=")
	assert.Contains(t, out, "export ALICE_SMITH_WALLET_ADDRESS=")
	assert.Contains(t, out, "export EVE__ID___WALLET_ADDRESS=")
	assert.NotContains(t, out, "$(")
	for _, v := range table.Env() {
		assert.Regexp(t, `^[A-Z0-9_]+$`, v.Key)
	}
}
