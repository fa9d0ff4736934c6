package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/test/mocks"
)

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected vesting.StatusCode
	}{
		{"nil", nil, vesting.StatusSuccess},
		{"sentinel out of gas", fmt.Errorf("wrapped: %w", vesting.ErrOutOfGas), vesting.StatusOutOfGas},
		{"remote out of gas", errors.New("out of gas in location: WriteFlat; gasWanted: 2000000, gasUsed: 2100000: out of gas"), vesting.StatusOutOfGas},
		{"remote insufficient fees", errors.New("Insufficient fees; got: 100note required: 200note: insufficient fee"), vesting.StatusInsufficientFees},
		{"block max gas", errors.New("tx gas limit 90000000 exceeds block max gas 75000000"), vesting.StatusExceedsBlockMaxGas},
		{"indexing disabled", errors.New("Transaction indexing is disabled"), vesting.StatusIndexingDisabled},
		{"context canceled", context.Canceled, vesting.StatusContextCanceled},
		{"other", errors.New("account sequence mismatch"), vesting.StatusError},
		{"coded error", &vesting.CodedError{Code: vesting.StatusInsufficientFees, Message: "fee below minimum"}, vesting.StatusInsufficientFees},
		{"coded error wins over text", &vesting.CodedError{Code: vesting.StatusError, Message: "contract panicked: out of gas"}, vesting.StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyError(tc.err))
		})
	}
}

func testMsg() vesting.BatchVestingMsg {
	return vesting.BatchVestingMsg{Records: []vesting.VestingRecord{{Address: "symphony1a", Amount: "10"}}}
}

func testFee() vesting.Fee {
	return vesting.Fee{Amount: sdk.NewCoins(sdk.NewCoin("note", sdkmath.NewInt(5000))), Gas: 200000}
}

func TestSubmitWithHelpers(t *testing.T) {
	logger := zerolog.Nop()
	hash := strings.Repeat("AB", 32)

	testCases := []struct {
		name         string
		res          *vesting.ExecuteResult
		err          error
		expectedCode vesting.StatusCode
		expectedHash string
		expectErr    bool
	}{
		{
			name:         "success",
			res:          &vesting.ExecuteResult{TransactionHash: hash, Height: 12},
			expectedCode: vesting.StatusSuccess,
			expectedHash: hash,
		},
		{
			name:         "missing hash",
			res:          &vesting.ExecuteResult{},
			expectedCode: vesting.StatusError,
			expectErr:    true,
		},
		{
			name:         "indexing disabled with embedded hash",
			err:          fmt.Errorf("tx %s: transaction indexing is disabled", strings.ToLower(hash)),
			expectedCode: vesting.StatusIndexingDisabled,
			expectedHash: hash,
		},
		{
			name:         "indexing disabled without hash",
			err:          errors.New("transaction indexing is disabled"),
			expectedCode: vesting.StatusIndexingDisabled,
		},
		{
			name:         "out of gas",
			err:          errors.New("out of gas"),
			expectedCode: vesting.StatusOutOfGas,
			expectErr:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			contract := mocks.NewMockContract(t)
			contract.On("BatchVesting", mock.Anything, mock.Anything, mock.Anything, "memo", mock.Anything).
				Return(tc.res, tc.err).Once()

			result := SubmitWithHelpers(testContext(t), contract, logger, testMsg(), testFee(), "memo", nil)

			assert.Equal(t, tc.expectedCode, result.Code)
			assert.Equal(t, tc.expectedHash, result.TxHash)
			if tc.expectErr {
				assert.Error(t, result.Err)
			} else {
				assert.NoError(t, result.Err)
			}
		})
	}
}
