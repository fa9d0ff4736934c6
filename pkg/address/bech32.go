package address

import (
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

// DefaultPrefix is the human-readable part of Symphony account addresses.
const DefaultPrefix = "symphony"

// IsValidBech32Address reports whether address decodes as bech32 with the expected prefix.
func IsValidBech32Address(address, expectedPrefix string) bool {
	hrp, _, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return false
	}
	return hrp == expectedPrefix
}

// Validator returns a predicate bound to a single prefix. Addresses are compared lower-cased.
func Validator(expectedPrefix string) func(string) bool {
	return func(address string) bool {
		return IsValidBech32Address(strings.ToLower(address), expectedPrefix)
	}
}
