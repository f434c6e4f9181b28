package deployer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/trex-suite-provisioning/contracts"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// AuthorityDeployer deploys implementations and the authorities in front of them.
type AuthorityDeployer struct {
	rt *Runtime
}

func NewAuthorityDeployer(rt *Runtime) *AuthorityDeployer {
	return &AuthorityDeployer{rt: rt}
}

// DeployAuthorityFor deploys the implementation contract, waits for it, then
// deploys the authority pointing at it.
//
// Parameters:
//   - implementation: artifact name of the logic contract
//   - initArgs: constructor arguments of the logic contract
//   - authority: artifact name of the authority, constructed with the
//     implementation address as its only argument
//   - signer: deploys both contracts and owns the authority
func (d *AuthorityDeployer) DeployAuthorityFor(ctx context.Context, implementation string, initArgs []interface{}, authority string, signer interfaces.Signer) (common.Address, common.Address, error) {
	impl, err := d.rt.deploy(ctx, implementation, signer, initArgs...)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	auth, err := d.rt.deploy(ctx, authority, signer, impl)
	if err != nil {
		return impl, common.Address{}, err
	}
	return impl, auth, nil
}

// DeployIdentityAuthority deploys the OnchainID Identity library and its
// ImplementationAuthority.
func (d *AuthorityDeployer) DeployIdentityAuthority(ctx context.Context, signer interfaces.Signer) (common.Address, common.Address, error) {
	return d.DeployAuthorityFor(ctx, contracts.Identity, []interface{}{signer.Address(), true}, contracts.ImplementationAuthority, signer)
}

// DeployTREXAuthority deploys the six suite implementations and a reference
// TREXImplementationAuthority, then registers and activates version with all
// six implementations in one call.
func (d *AuthorityDeployer) DeployTREXAuthority(ctx context.Context, version interfaces.VersionTriple, signer interfaces.Signer) (interfaces.ImplementationAddresses, common.Address, error) {
	var impls interfaces.ImplementationAddresses
	targets := map[string]*common.Address{
		contracts.Token:                   &impls.Token,
		contracts.ClaimTopicsRegistry:     &impls.ClaimTopicsRegistry,
		contracts.IdentityRegistry:        &impls.IdentityRegistry,
		contracts.IdentityRegistryStorage: &impls.IdentityRegistryStorage,
		contracts.TrustedIssuersRegistry:  &impls.TrustedIssuersRegistry,
		contracts.ModularCompliance:       &impls.ModularCompliance,
	}

	for _, name := range contracts.SuiteImplementations {
		addr, err := d.rt.deploy(ctx, name, signer)
		if err != nil {
			return impls, common.Address{}, err
		}
		*targets[name] = addr
	}

	authority, err := d.rt.deploy(ctx, contracts.TREXImplementationAuthority, signer, true, common.Address{}, common.Address{})
	if err != nil {
		return impls, common.Address{}, err
	}

	trex := contracts.TREXContracts{
		TokenImplementation: impls.Token,
		CtrImplementation:   impls.ClaimTopicsRegistry,
		IrImplementation:    impls.IdentityRegistry,
		IrsImplementation:   impls.IdentityRegistryStorage,
		TirImplementation:   impls.TrustedIssuersRegistry,
		McImplementation:    impls.ModularCompliance,
	}
	if err := requireCompleteVersion(trex); err != nil {
		return impls, authority, err
	}

	v := contracts.Version{Major: version.Major, Minor: version.Minor, Patch: version.Patch}
	if _, err := d.rt.submit(ctx, authority, contracts.TREXImplementationAuthority, "addAndUseTREXVersion", signer, v, trex); err != nil {
		return impls, authority, err
	}

	d.rt.Log.Info("Suite version activated", "version", version.String(), "authority", authority.Hex())
	return impls, authority, nil
}

// requireCompleteVersion refuses to activate a version with any
// implementation unset.
func requireCompleteVersion(trex contracts.TREXContracts) error {
	for name, addr := range map[string]common.Address{
		contracts.Token:                   trex.TokenImplementation,
		contracts.ClaimTopicsRegistry:     trex.CtrImplementation,
		contracts.IdentityRegistry:        trex.IrImplementation,
		contracts.IdentityRegistryStorage: trex.IrsImplementation,
		contracts.TrustedIssuersRegistry:  trex.TirImplementation,
		contracts.ModularCompliance:       trex.McImplementation,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: %s implementation missing from version", interfaces.ErrPrecondition, name)
		}
	}
	return nil
}
