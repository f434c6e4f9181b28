// Package deployer orchestrates the deployment of a T-REX suite.
//
// The orchestration runs strictly sequentially: every deployment and every
// wiring call is confirmed before the next one is submitted, because later
// steps depend on the addresses and state produced by earlier ones.
//
// The building blocks, leaves first:
//
//   - AuthorityDeployer deploys implementation contracts and the
//     implementation authorities pointing at them. The suite authority is
//     activated with all six implementations in a single call.
//   - ProxyDeployer deploys the proxies that resolve their logic through an
//     authority, including OnchainID identity proxies.
//   - Linker performs the ordered post-deployment wiring and unpauses the
//     token last.
//   - Guard asks a TREXFactory whether a suite already exists for a salt.
//   - FactoryDeployer runs the guarded single-transaction factory path and
//     decodes the emitted addresses.
//   - SuiteDeployer runs the full path: roles, authorities, proxies, claim
//     issuer, linking, participant onboarding and optional factories.
//
// There is no retry and no rollback. A failed run reports the last completed
// step and logs the partial address table so an operator can continue by hand.
package deployer
