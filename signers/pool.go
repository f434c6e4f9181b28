package signers

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
	"golang.org/x/crypto/hkdf"
)

// Pool is an ordered list of pre-supplied signers. Roles and participants
// take fixed indexes, see interfaces.Role.PoolIndex.
type Pool struct {
	signers []interfaces.Signer
}

func NewPool(signers ...interfaces.Signer) *Pool {
	return &Pool{signers: signers}
}

// NewPoolFromHexKeys builds a pool from hex private keys, skipping blanks.
func NewPoolFromHexKeys(keys []string) (*Pool, error) {
	pool := &Pool{}
	for i, k := range keys {
		if k == "" {
			continue
		}
		s, err := NewKeySignerFromHex(k)
		if err != nil {
			return nil, fmt.Errorf("pool key %d: %w", i, err)
		}
		pool.signers = append(pool.signers, s)
	}
	return pool, nil
}

// DerivePool derives n signers from seed with HKDF-SHA256. The same seed
// always yields the same accounts, which makes it suitable for local
// development chains only.
func DerivePool(seed []byte, n int) (*Pool, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: empty pool seed", interfaces.ErrValidation)
	}

	pool := &Pool{signers: make([]interfaces.Signer, 0, n)}
	for i := 0; i < n; i++ {
		reader := hkdf.New(sha256.New, seed, []byte("trex-suite-provisioning"), []byte(fmt.Sprintf("signer/%d", i)))
		for {
			buf := make([]byte, 32)
			if _, err := io.ReadFull(reader, buf); err != nil {
				return nil, fmt.Errorf("deriving signer %d: %w", i, err)
			}
			// Out-of-range scalars are vanishingly rare; read the next block.
			key, err := crypto.ToECDSA(buf)
			if err != nil {
				continue
			}
			pool.signers = append(pool.signers, NewKeySigner(key))
			break
		}
	}
	return pool, nil
}

// At returns the signer at index i.
func (p *Pool) At(i int) (interfaces.Signer, bool) {
	if p == nil || i < 0 || i >= len(p.signers) {
		return nil, false
	}
	return p.signers[i], true
}

// Len returns the number of pooled signers.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.signers)
}
