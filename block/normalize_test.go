package block

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/pkg/address"
)

func testAddress(t *testing.T, i int) string {
	t.Helper()
	raw := make([]byte, 20)
	raw[0] = byte(i >> 8)
	raw[1] = byte(i)
	addr, err := bech32.ConvertAndEncode(address.DefaultPrefix, raw)
	require.NoError(t, err)
	return addr
}

func entry(amount string) vesting.VestingEntry {
	return vesting.VestingEntry{Amount: vesting.Amount(amount), Denom: "note", Category: "team"}
}

func TestNormalize(t *testing.T) {
	isValid := address.Validator(address.DefaultPrefix)
	a1, a2 := testAddress(t, 1), testAddress(t, 2)

	recipients := []vesting.VestingRecipient{
		{Recipient: strings.ToUpper(a1), Entries: []vesting.VestingEntry{entry("100"), entry("200")}},
		{Recipient: "cosmos1invalid", Entries: []vesting.VestingEntry{entry("5")}},
		{Recipient: a2, Entries: []vesting.VestingEntry{entry("123456789012345678901234567890")}},
	}

	records, dropped, err := Normalize(recipients, isValid)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []vesting.VestingRecord{
		{Address: a1, Amount: "100"},
		{Address: a1, Amount: "200"},
		{Address: a2, Amount: "123456789012345678901234567890"},
	}, records)
}

func TestNormalize_Amounts(t *testing.T) {
	isValid := func(string) bool { return true }

	testCases := []struct {
		amount   string
		expected string
		dropped  bool
	}{
		{"42", "42", false},
		{"1e3", "1000", false},
		{"1.5E2", "150", false},
		{"007", "7", false},
		{"0", "0", false},
		{"1.5", "", true},
		{"-3", "", true},
		{"abc", "", true},
		{"", "", true},
		{"1e77", "1" + strings.Repeat("0", 77), false},
		{maxInt256, maxInt256, false},
		{"1e80", "", true},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639936", "", true},
		{"1e999999999", "", true},
		{"1e-999999999", "", true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("amount %q", tc.amount), func(t *testing.T) {
			recipients := []vesting.VestingRecipient{
				{Recipient: "addr", Entries: []vesting.VestingEntry{entry(tc.amount)}},
			}
			records, dropped, err := Normalize(recipients, isValid)
			if tc.dropped {
				assert.ErrorIs(t, err, vesting.ErrEmptyInput)
				assert.Equal(t, 1, dropped)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tc.expected, records[0].Amount)
		})
	}
}

// maxInt256 is 2^256-1, the largest amount a cosmos-sdk Int holds.
const maxInt256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

func TestNormalize_OversizedAmountDroppedBeforeSubmission(t *testing.T) {
	recipients := make([]vesting.VestingRecipient, 25)
	for i := range recipients {
		recipients[i] = vesting.VestingRecipient{Recipient: testAddress(t, i+1), Entries: []vesting.VestingEntry{entry("1000")}}
	}
	recipients[15].Entries = []vesting.VestingEntry{entry("1e80")}

	records, dropped, err := Normalize(recipients, address.Validator(address.DefaultPrefix))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, records, 24)

	// Every surviving amount is accepted by the funds computation of a batch.
	_, err = batchFunds(records, "note")
	assert.NoError(t, err)
}

func TestNormalize_InvalidAmountDropsWholeRecipient(t *testing.T) {
	recipients := []vesting.VestingRecipient{
		{Recipient: "a", Entries: []vesting.VestingEntry{entry("1"), entry("0.5")}},
		{Recipient: "b", Entries: []vesting.VestingEntry{entry("2")}},
	}
	records, dropped, err := Normalize(recipients, func(string) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []vesting.VestingRecord{{Address: "b", Amount: "2"}}, records)
}

func TestNormalize_Empty(t *testing.T) {
	_, _, err := Normalize(nil, func(string) bool { return true })
	assert.ErrorIs(t, err, vesting.ErrEmptyInput)

	_, dropped, err := Normalize([]vesting.VestingRecipient{{Recipient: "x"}, {Recipient: "y"}}, func(string) bool { return false })
	assert.ErrorIs(t, err, vesting.ErrEmptyInput)
	assert.Equal(t, 2, dropped)
}

func TestNormalize_ParsedJSONKeepsPrecision(t *testing.T) {
	a := testAddress(t, 7)
	input := fmt.Sprintf(`[{"recipient":%q,"entries":[{"amount":98765432109876543210,"denom":"note","category":"seed"}]}]`, a)

	recipients, err := vesting.ParseRecipients(strings.NewReader(input))
	require.NoError(t, err)

	records, _, err := Normalize(recipients, address.Validator(address.DefaultPrefix))
	require.NoError(t, err)
	assert.Equal(t, "98765432109876543210", records[0].Amount)

	// Output length never exceeds input entries and every address passes validation.
	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(input), &raw))
	assert.LessOrEqual(t, len(records), len(raw))
	for _, r := range records {
		assert.True(t, address.IsValidBech32Address(r.Address, address.DefaultPrefix))
	}
}
