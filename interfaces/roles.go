package interfaces

import (
	"fmt"
	"strings"
)

// Role is a logical actor of a deployment run.
type Role int

const (
	RoleDeployer Role = iota
	RoleTokenIssuer
	RoleTokenAgent
	RoleTokenAdmin
	RoleClaimIssuer
)

// AllRoles lists roles in pool index order.
var AllRoles = []Role{RoleDeployer, RoleTokenIssuer, RoleTokenAgent, RoleTokenAdmin, RoleClaimIssuer}

// String returns the role name used in flags and logs.
func (r Role) String() string {
	switch r {
	case RoleDeployer:
		return "deployer"
	case RoleTokenIssuer:
		return "token-issuer"
	case RoleTokenAgent:
		return "token-agent"
	case RoleTokenAdmin:
		return "token-admin"
	case RoleClaimIssuer:
		return "claim-issuer"
	default:
		return "unknown"
	}
}

// EnvKey is the environment variable carrying an explicit private key for the role.
func (r Role) EnvKey() string {
	return strings.ToUpper(strings.ReplaceAll(r.String(), "-", "_")) + "_PRIVATE_KEY"
}

// PoolIndex is the position of the role's signer in a pooled signer list.
// Participants take the indexes after the last role.
func (r Role) PoolIndex() int {
	return int(r)
}

// ParseRole parses a role name as returned by String.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if r.String() == strings.ToLower(strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// ParticipantPoolIndex is the pool index of the i-th onboarded participant.
func ParticipantPoolIndex(i int) int {
	return len(AllRoles) + i
}
