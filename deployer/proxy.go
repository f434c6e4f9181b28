package deployer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// ProxyDeployer deploys proxies behind an implementation authority.
type ProxyDeployer struct {
	rt *Runtime
}

func NewProxyDeployer(rt *Runtime) *ProxyDeployer {
	return &ProxyDeployer{rt: rt}
}

// DeployProxy deploys proxy with the authority as first constructor argument
// followed by args. The address is returned once the deployment is confirmed.
func (d *ProxyDeployer) DeployProxy(ctx context.Context, proxy string, authority common.Address, args []interface{}, signer interfaces.Signer) (common.Address, error) {
	if err := interfaces.RequireNonZero(proxy+" authority", authority); err != nil {
		return common.Address{}, err
	}
	return d.rt.deploy(ctx, proxy, signer, append([]interface{}{authority}, args...)...)
}

// DeployIdentityProxy deploys an OnchainID identity whose management key is
// managementKey.
func (d *ProxyDeployer) DeployIdentityProxy(ctx context.Context, authority, managementKey common.Address, signer interfaces.Signer) (common.Address, error) {
	if err := interfaces.RequireNonZero("identity management key", managementKey); err != nil {
		return common.Address{}, err
	}
	impl, err := d.rt.queryAddress(ctx, authority, contracts.ImplementationAuthority, "getImplementation")
	if err != nil {
		return common.Address{}, err
	}
	if impl == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: identity authority %s has no implementation", interfaces.ErrPrecondition, authority.Hex())
	}
	return d.DeployProxy(ctx, contracts.IdentityProxy, authority, []interface{}{managementKey}, signer)
}

// DeploySuiteProxies deploys the six suite proxies in dependency order:
// storage and the registries first, then the identity registry over them,
// then the token over the identity registry and compliance.
func (d *ProxyDeployer) DeploySuiteProxies(ctx context.Context, authority common.Address, token interfaces.TokenDetails, onchainID common.Address, signer interfaces.Signer) (interfaces.SuiteAddressSet, error) {
	suite := interfaces.SuiteAddressSet{TokenOnchainID: onchainID}

	impl, err := d.rt.queryAddress(ctx, authority, contracts.TREXImplementationAuthority, "getTokenImplementation")
	if err != nil {
		return suite, err
	}
	if impl == (common.Address{}) {
		return suite, fmt.Errorf("%w: suite authority %s has no active version", interfaces.ErrPrecondition, authority.Hex())
	}

	steps := []struct {
		proxy  string
		target *common.Address
		args   func() []interface{}
	}{
		{contracts.IdentityRegistryStorageProxy, &suite.IdentityRegistryStorage, nil},
		{contracts.TrustedIssuersRegistryProxy, &suite.TrustedIssuersRegistry, nil},
		{contracts.ClaimTopicsRegistryProxy, &suite.ClaimTopicsRegistry, nil},
		{contracts.ModularComplianceProxy, &suite.Compliance, nil},
		{contracts.IdentityRegistryProxy, &suite.IdentityRegistry, func() []interface{} {
			return []interface{}{suite.TrustedIssuersRegistry, suite.ClaimTopicsRegistry, suite.IdentityRegistryStorage}
		}},
		{contracts.TokenProxy, &suite.Token, func() []interface{} {
			return []interface{}{suite.IdentityRegistry, suite.Compliance, token.Name, token.Symbol, token.Decimals, onchainID}
		}},
	}

	for _, s := range steps {
		var args []interface{}
		if s.args != nil {
			args = s.args()
		}
		addr, err := d.DeployProxy(ctx, s.proxy, authority, args, signer)
		if err != nil {
			return suite, err
		}
		*s.target = addr
	}
	return suite, nil
}
