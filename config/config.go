// Package config loads deployment parameters from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/deployer"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"github.com/spf13/viper"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultTokenName      = "TREXDINO"
	DefaultTokenSymbol    = "TREX"
	DefaultTokenDecimals  = 0
	DefaultClaimTopic     = "CLAIM_TOPIC"
	DefaultClaimData      = "Some claim public data."
	DefaultVersion        = "4.0.0"
	DefaultMintAmount     = "1000"
	DefaultConfirmTimeout = 2 * time.Minute
)

// envBindings maps configuration keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"network":         "NETWORK",
	"rpc_url":         "RPC_URL",
	"salt":            "DEPLOYMENT_SALT",
	"factory_address": "FACTORY_ADDRESS",
	"token.name":      "TOKEN_NAME",
	"token.symbol":    "TOKEN_SYMBOL",
	"token.decimals":  "TOKEN_DECIMALS",
	"mint_amount":     "MINT_AMOUNT",
	"version":         "TREX_VERSION",
	"artifacts_dir":   "ARTIFACTS_DIR",
	"confirm_timeout": "CONFIRM_TIMEOUT",
}

type TokenConfig struct {
	Name     string `mapstructure:"name" json:"name"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Decimals int    `mapstructure:"decimals" json:"decimals"`
}

type ParticipantConfig struct {
	Name    string `mapstructure:"name" json:"name"`
	Country uint16 `mapstructure:"country" json:"country"`
	// Mint overrides mint_amount for this participant.
	Mint string `mapstructure:"mint" json:"mint,omitempty"`
}

// DeploymentConfig is the full set of deployment parameters.
type DeploymentConfig struct {
	Network        string              `mapstructure:"network" json:"network"`
	RPCURL         string              `mapstructure:"rpc_url" json:"rpcUrl"`
	Salt           string              `mapstructure:"salt" json:"salt,omitempty"`
	FactoryAddress string              `mapstructure:"factory_address" json:"factoryAddress,omitempty"`
	Token          TokenConfig         `mapstructure:"token" json:"token"`
	Version        string              `mapstructure:"version" json:"version"`
	ClaimTopics    []string            `mapstructure:"claim_topics" json:"claimTopics"`
	ClaimData      string              `mapstructure:"claim_data" json:"claimData"`
	MintAmount     string              `mapstructure:"mint_amount" json:"mintAmount"`
	Participants   []ParticipantConfig `mapstructure:"participants" json:"participants"`
	AgentManager   bool                `mapstructure:"agent_manager" json:"agentManager"`
	Factories      bool                `mapstructure:"factories" json:"factories"`
	ArtifactsDir   string              `mapstructure:"artifacts_dir" json:"artifactsDir,omitempty"`
	// ArtifactManifest is the content ID of a manifest in the storage backends.
	ArtifactManifest string        `mapstructure:"artifact_manifest" json:"artifactManifest,omitempty"`
	Storage          []string      `mapstructure:"storage" json:"storage,omitempty"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout" json:"confirmTimeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "localhost")
	v.SetDefault("rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("token.name", DefaultTokenName)
	v.SetDefault("token.symbol", DefaultTokenSymbol)
	v.SetDefault("token.decimals", DefaultTokenDecimals)
	v.SetDefault("version", DefaultVersion)
	v.SetDefault("claim_topics", []string{DefaultClaimTopic})
	v.SetDefault("claim_data", DefaultClaimData)
	v.SetDefault("mint_amount", DefaultMintAmount)
	v.SetDefault("participants", []map[string]interface{}{
		{"name": "alice", "country": 42},
		{"name": "bob", "country": 666},
	})
	v.SetDefault("agent_manager", true)
	v.SetDefault("factories", false)
	v.SetDefault("confirm_timeout", DefaultConfirmTimeout)
}

// Load reads path when it is not empty, then applies environment overrides.
func Load(path string) (*DeploymentConfig, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading deployment config %s: %w", path, err)
		}
	}

	var cfg DeploymentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding deployment config: %v", interfaces.ErrValidation, err)
	}
	return &cfg, nil
}

// TokenDetails validates the token section.
func (c *DeploymentConfig) TokenDetails() (interfaces.TokenDetails, error) {
	return interfaces.NewTokenDetails(c.Token.Name, c.Token.Symbol, c.Token.Decimals)
}

// Topics parses the claim topics, dropping duplicates.
func (c *DeploymentConfig) Topics() ([]*big.Int, error) {
	topics := make([]*big.Int, 0, len(c.ClaimTopics))
	for _, raw := range c.ClaimTopics {
		t, err := interfaces.ParseClaimTopic(raw)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	topics = interfaces.UniqueTopics(topics)
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: no claim topics configured", interfaces.ErrValidation)
	}
	return topics, nil
}

// DeploymentSalt validates the salt.
func (c *DeploymentConfig) DeploymentSalt() (interfaces.DeploymentSalt, error) {
	return interfaces.NewDeploymentSalt(c.Salt)
}

// Factory validates the factory address.
func (c *DeploymentConfig) Factory() (common.Address, error) {
	return interfaces.ValidateAddress(c.FactoryAddress)
}

// SuiteConfig converts the configuration into full deployment parameters.
func (c *DeploymentConfig) SuiteConfig() (deployer.SuiteConfig, error) {
	var out deployer.SuiteConfig

	token, err := c.TokenDetails()
	if err != nil {
		return out, err
	}
	version, err := interfaces.ParseVersion(c.Version)
	if err != nil {
		return out, err
	}
	topics, err := c.Topics()
	if err != nil {
		return out, err
	}
	defaultMint, err := parseAmount(c.MintAmount)
	if err != nil {
		return out, err
	}

	out = deployer.SuiteConfig{
		Token:        token,
		Version:      version,
		Topics:       topics,
		ClaimData:    []byte(c.ClaimData),
		AgentManager: c.AgentManager,
		Factories:    c.Factories,
	}
	for _, p := range c.Participants {
		mint := defaultMint
		if strings.TrimSpace(p.Mint) != "" {
			if mint, err = parseAmount(p.Mint); err != nil {
				return out, fmt.Errorf("participant %q: %w", p.Name, err)
			}
		}
		out.Participants = append(out.Participants, deployer.Participant{
			Name:    strings.TrimSpace(p.Name),
			Country: p.Country,
			Mint:    mint,
		})
	}
	return out, out.Validate()
}

func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid amount %q", interfaces.ErrValidation, s)
	}
	return v, nil
}
