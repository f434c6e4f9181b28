package signers

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// Source tells which branch of the resolution chain produced a signer.
type Source int

const (
	// SourceKey means an explicit private key was supplied for the role.
	SourceKey Source = iota
	// SourcePool means the pooled signer at the role index was used.
	SourcePool
	// SourceFallback means the deployer acts for the role.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceKey:
		return "key"
	case SourcePool:
		return "pool"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Resolution is the signer chosen for a role.
type Resolution struct {
	Role   interfaces.Role
	Signer interfaces.Signer
	Source Source
}

// Resolver maps roles to signers with the priority explicit key, then pool
// index, then deployer. Results are memoized, so each role resolves to one
// signer for the lifetime of the resolver and a fallback warning is logged
// at most once per role.
type Resolver struct {
	log  *slog.Logger
	keys map[interfaces.Role]string
	pool *Pool

	mu       sync.Mutex
	resolved map[interfaces.Role]Resolution
}

// NewResolver creates a resolver. keys holds explicit hex private keys by
// role; pool may be nil.
func NewResolver(log *slog.Logger, keys map[interfaces.Role]string, pool *Pool) *Resolver {
	trimmed := make(map[interfaces.Role]string, len(keys))
	for role, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			trimmed[role] = k
		}
	}

	return &Resolver{
		log:      log,
		keys:     trimmed,
		pool:     pool,
		resolved: make(map[interfaces.Role]Resolution),
	}
}

// KeysFromEnv collects the role private keys from an environment lookup
// such as os.LookupEnv.
func KeysFromEnv(lookup func(string) (string, bool)) map[interfaces.Role]string {
	keys := make(map[interfaces.Role]string)
	for _, role := range interfaces.AllRoles {
		if v, ok := lookup(role.EnvKey()); ok && strings.TrimSpace(v) != "" {
			keys[role] = v
		}
	}
	return keys
}

// Resolve returns the signer for role.
func (r *Resolver) Resolve(role interfaces.Role) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(role)
}

func (r *Resolver) resolveLocked(role interfaces.Role) (Resolution, error) {
	if res, ok := r.resolved[role]; ok {
		return res, nil
	}

	if k, ok := r.keys[role]; ok {
		s, err := NewKeySignerFromHex(k)
		if err != nil {
			return Resolution{}, fmt.Errorf("%s: %w", role.EnvKey(), err)
		}
		return r.remember(Resolution{Role: role, Signer: s, Source: SourceKey}), nil
	}

	if s, ok := r.pool.At(role.PoolIndex()); ok {
		return r.remember(Resolution{Role: role, Signer: s, Source: SourcePool}), nil
	}

	if role == interfaces.RoleDeployer {
		return Resolution{}, fmt.Errorf("%w: no deployer signer, set %s or provide a signer pool",
			interfaces.ErrPrecondition, role.EnvKey())
	}

	deployer, err := r.resolveLocked(interfaces.RoleDeployer)
	if err != nil {
		return Resolution{}, err
	}

	r.log.Warn("No signer for role, falling back to deployer",
		slog.String("role", role.String()),
		slog.String("env", role.EnvKey()),
		slog.String("deployer", deployer.Signer.Address().Hex()))

	return r.remember(Resolution{Role: role, Signer: deployer.Signer, Source: SourceFallback}), nil
}

func (r *Resolver) remember(res Resolution) Resolution {
	r.resolved[res.Role] = res
	r.log.Debug("Resolved role signer",
		slog.String("role", res.Role.String()),
		slog.String("source", res.Source.String()),
		slog.String("address", res.Signer.Address().Hex()))
	return res
}

// ResolveAll resolves every role, deployer first.
func (r *Resolver) ResolveAll() (map[interfaces.Role]Resolution, error) {
	out := make(map[interfaces.Role]Resolution, len(interfaces.AllRoles))
	for _, role := range interfaces.AllRoles {
		res, err := r.Resolve(role)
		if err != nil {
			return nil, err
		}
		out[role] = res
	}
	return out, nil
}

// Participant returns the pooled signer of the i-th participant.
func (r *Resolver) Participant(i int) (interfaces.Signer, error) {
	s, ok := r.pool.At(interfaces.ParticipantPoolIndex(i))
	if !ok {
		return nil, fmt.Errorf("%w: no pooled signer for participant %d (pool index %d)",
			interfaces.ErrPrecondition, i, interfaces.ParticipantPoolIndex(i))
	}
	return s, nil
}

// Addresses returns the resolved addresses of every role.
func (r *Resolver) Addresses() (interfaces.RoleAddresses, error) {
	all, err := r.ResolveAll()
	if err != nil {
		return interfaces.RoleAddresses{}, err
	}
	var addrs interfaces.RoleAddresses
	for role, res := range all {
		addrs.Set(role, res.Signer.Address())
	}
	return addrs, nil
}
