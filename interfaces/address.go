package interfaces

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress parses a hex address and returns it in checksummed form.
// Malformed strings, the zero address and mixed-case input with a wrong
// checksum are rejected.
func ValidateAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: malformed address %q", ErrValidation, s)
	}

	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrValidation)
	}

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if isMixedCase(raw) && raw != addr.Hex()[2:] {
		return common.Address{}, fmt.Errorf("%w: bad checksum for %q", ErrValidation, s)
	}

	return addr, nil
}

// MustValidateAddress is ValidateAddress for constants in tests and defaults.
func MustValidateAddress(s string) common.Address {
	addr, err := ValidateAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// RequireNonZero fails with ErrValidation when addr is the zero address.
func RequireNonZero(name string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: %s is the zero address", ErrValidation, name)
	}
	return nil
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
