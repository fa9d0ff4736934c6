package block

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// Normalize flattens recipients into vesting records. A recipient whose lower-cased address fails
// isValid, or any of whose amounts is not a non-negative integer, is dropped with all its entries.
// Output order follows recipient order, then entry order. The number of dropped recipients is
// returned alongside the records; an empty result is vesting.ErrEmptyInput.
func Normalize(recipients []vesting.VestingRecipient, isValid func(string) bool) ([]vesting.VestingRecord, int, error) {
	records := make([]vesting.VestingRecord, 0, len(recipients))
	dropped := 0

	for _, r := range recipients {
		address := strings.ToLower(strings.TrimSpace(r.Recipient))
		if !isValid(address) {
			dropped++
			continue
		}

		entries := make([]vesting.VestingRecord, 0, len(r.Entries))
		ok := true
		for _, e := range r.Entries {
			amount, err := normalizeAmount(e.Amount)
			if err != nil {
				ok = false
				break
			}
			entries = append(entries, vesting.VestingRecord{Address: address, Amount: amount})
		}
		if !ok {
			dropped++
			continue
		}
		records = append(records, entries...)
	}

	if len(records) == 0 {
		return nil, dropped, vesting.ErrEmptyInput
	}
	return records, dropped, nil
}

// maxAmountDigits is the number of decimal digits of 2^256, the largest magnitude sdkmath.Int holds.
const maxAmountDigits = 78

// normalizeAmount renders an amount as a plain decimal integer without passing through a float.
func normalizeAmount(a vesting.Amount) (string, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return "", fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("negative amount %q", s)
	}
	// Bound the exponent before any rescaling so that "1e999999999" stays cheap.
	exp := int(d.Exponent())
	if exp < -maxAmountDigits || d.NumDigits()+exp > maxAmountDigits {
		return "", fmt.Errorf("amount %q out of range", s)
	}
	if !d.Equal(d.Truncate(0)) {
		return "", fmt.Errorf("fractional amount %q", s)
	}
	bi := d.BigInt()
	if bi.BitLen() > sdkmath.MaxBitLen {
		return "", fmt.Errorf("amount %q exceeds %d bits", s, sdkmath.MaxBitLen)
	}
	return sdkmath.NewIntFromBigInt(bi).String(), nil
}
