// Package address checks ledger account addresses without any network access.
package address

import (
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
)

// Length is the size of a checksummed base32 account address
const Length = 58

// Normalize trims whitespace and upper-cases the address. Session tokens may carry lower case addresses.
func Normalize(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// Validate checks length, base32 alphabet and the 4-byte public key checksum
func Validate(addr string) error {
	if len(addr) != Length {
		return fmt.Errorf("%w: expected %d characters, got %d", errs.ErrInvalidAddress, Length, len(addr))
	}
	if _, err := types.DecodeAddress(addr); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidAddress, err)
	}
	return nil
}

// IsValid is Validate as a predicate
func IsValid(addr string) bool {
	return Validate(addr) == nil
}

// Decode validates addr and returns its public key form
func Decode(addr string) (types.Address, error) {
	if err := Validate(addr); err != nil {
		return types.Address{}, err
	}
	a, _ := types.DecodeAddress(addr)
	return a, nil
}
