package vesting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipients_AmountForms(t *testing.T) {
	input := `[
		{"recipient": "symphony1abc", "discord_id": "42", "entries": [
			{"amount": 123456789012345678901234567890, "denom": "note", "category": "team"},
			{"amount": "1000", "denom": "note", "category": "advisor"},
			{"amount": 1e3, "denom": "note", "category": "seed"}
		]}
	]`

	recipients, err := ParseRecipients(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	require.Len(t, recipients[0].Entries, 3)

	assert.Equal(t, "symphony1abc", recipients[0].Recipient)
	assert.Equal(t, Amount("123456789012345678901234567890"), recipients[0].Entries[0].Amount)
	assert.Equal(t, Amount("1000"), recipients[0].Entries[1].Amount)
	assert.Equal(t, Amount("1e3"), recipients[0].Entries[2].Amount)
}

func TestParseRecipients_InvalidAmount(t *testing.T) {
	_, err := ParseRecipients(strings.NewReader(`[{"recipient": "x", "entries": [{"amount": true}]}]`))
	assert.Error(t, err)
}

func TestNewConfiguration(t *testing.T) {
	conf := NewConfiguration(1, 2025, time.March, 30, "note")

	expectedStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	assert.Equal(t, fmt.Sprintf("%d", expectedStart), conf.StartTime)
	assert.Equal(t, uint64(30*24*60*60), conf.Duration)
	assert.Equal(t, ScheduleSaturatingLinear, conf.Schedule)
	assert.Equal(t, DefaultTitlePrefix, conf.TitlePrefix)
	assert.Equal(t, DefaultDescriptionPrefix, conf.DescriptionPrefix)
	require.NoError(t, conf.Validate())
}

func TestVestingConfiguration_Validate(t *testing.T) {
	valid := NewConfiguration(1, 2025, time.January, 10, "note")

	testCases := []struct {
		name   string
		mutate func(c *VestingConfiguration)
	}{
		{"zero code id", func(c *VestingConfiguration) { c.ContractCodeID = 0 }},
		{"unknown schedule", func(c *VestingConfiguration) { c.Schedule = "cliff" }},
		{"non numeric start", func(c *VestingConfiguration) { c.StartTime = "yesterday" }},
		{"zero duration", func(c *VestingConfiguration) { c.Duration = 0 }},
		{"bad denom", func(c *VestingConfiguration) { c.Denom = "1" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := valid
			tc.mutate(&conf)
			assert.Error(t, conf.Validate())
		})
	}
}

func TestRunError_Unwrap(t *testing.T) {
	original := errors.New("account sequence mismatch")
	err := error(&RunError{
		Batch:   2,
		Results: []BatchResult{{BatchNumber: 1, TransactionHash: "ABC"}},
		Err:     &BatchError{Batch: 2, Code: StatusError, Attempts: 1, Err: original},
	})

	assert.ErrorIs(t, err, original)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Len(t, runErr.Results, 1)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, StatusError, batchErr.Code)
}

func TestStatusCodePredicates(t *testing.T) {
	assert.True(t, StatusIndexingDisabled.Committed())
	assert.False(t, StatusOutOfGas.Committed())
	assert.True(t, StatusInsufficientFees.Retryable())
	assert.False(t, StatusExceedsBlockMaxGas.Retryable())
	assert.True(t, StatusExceedsBlockMaxGas.ShrinksBatch())
	assert.False(t, StatusInsufficientFees.ShrinksBatch())
	assert.Equal(t, "Unknown", StatusCode(99).String())
}

func TestCodedError(t *testing.T) {
	err := error(&CodedError{Code: StatusOutOfGas, Message: "gasWanted: 2000000, gasUsed: 2400000"})
	assert.ErrorIs(t, fmt.Errorf("batch 3: %w", err), ErrOutOfGas)
	assert.NotErrorIs(t, err, ErrInsufficientFees)
	assert.NotErrorIs(t, &CodedError{Code: StatusError, Message: "boom"}, ErrOutOfGas)
	assert.ErrorIs(t, &CodedError{Code: StatusContextCanceled, Message: "context canceled"}, context.Canceled)

	bz, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	var decoded CodedError
	require.NoError(t, json.Unmarshal(bz, &decoded))
	assert.Equal(t, StatusOutOfGas, decoded.Code)
	assert.Equal(t, err.Error(), decoded.Error())
}
