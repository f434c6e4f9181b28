// Package main (cmd/trexctl) deploys and operates T-REX permissioned token
// suites.
//
// The deploy-suite command runs the whole sequence from compiled artifacts:
// implementations and authorities, the token OnchainID, the suite proxies,
// the claim issuer, registry linking, participant onboarding and optionally
// the factories. The deploy-factory-suite command deploys a suite through an
// existing TREXFactory under a salt and is safe to re-run: when the salt is
// already taken it reports the existing token instead of sending a
// transaction.
//
// Both deployment commands print the resulting address table to stdout as
// JSON followed by shell export lines, for example
//
//	eval "$(trexctl deploy-suite --artifacts-dir ./artifacts | grep ^export)"
//
// Role keys are read from DEPLOYER_PRIVATE_KEY, TOKEN_ISSUER_PRIVATE_KEY,
// TOKEN_AGENT_PRIVATE_KEY, TOKEN_ADMIN_PRIVATE_KEY and
// CLAIM_ISSUER_PRIVATE_KEY. Roles without a key use the signer derived from
// --dev-seed at the role index, or the deployer otherwise.
package main
