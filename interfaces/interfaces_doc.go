// Package interfaces defines the shared types and the contracts between the
// suite provisioning components.
//
// The package carries no orchestration logic. Deployers, the claim engine,
// the event decoder and the command line tool all depend on the types here
// rather than on each other's implementations, which lets the orchestration
// run against a real chain or the in-memory test chain unchanged.
//
// # Primitives
//
//   - Ledger: Deploy, Submit and Call against a chain, each Deploy and Submit
//     waiting for one confirmation
//   - Signer: an account able to produce transaction options and sign hashes
//   - StorageBackend: content-addressed storage for artifacts and address books
//
// # Deployment Types
//
//   - Role and RoleAddresses: the logical actors of a run and their accounts
//   - SuiteAddressSet: the seven contracts making up one token suite
//   - AddressTable: everything a run produced, exportable as environment lines
//   - DeploymentSalt, VersionTriple, TokenDetails: validated inputs
//   - Claim: a signed assertion about an identity
//
// # Error Types
//
// Errors are classified with sentinels so callers can use errors.Is:
//
//   - ErrValidation: malformed input, raised before any network call
//   - ErrPrecondition: a required signer, artifact or contract is missing
//   - ErrConfirmation: a transaction was not mined in time
//   - ErrReverted: a transaction was mined but failed
//   - ErrEventNotFound: an expected event is absent from a receipt
//
// Address inputs always go through ValidateAddress, which rejects malformed,
// zero and badly checksummed strings and returns the checksummed form.
package interfaces
