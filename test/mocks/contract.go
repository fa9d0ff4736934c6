package mocks

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/mock"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// MockContract is a mock implementation of vesting.Contract.
type MockContract struct {
	mock.Mock
}

var _ vesting.Contract = (*MockContract)(nil)

// NewMockContract creates a MockContract whose expectations are asserted on test cleanup.
func NewMockContract(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockContract {
	m := &MockContract{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// BatchVesting provides a mock function with given fields: ctx, msg, fee, memo, funds
func (m *MockContract) BatchVesting(ctx context.Context, msg vesting.BatchVestingMsg, fee vesting.Fee, memo string, funds sdk.Coins) (*vesting.ExecuteResult, error) {
	args := m.Called(ctx, msg, fee, memo, funds)

	var res *vesting.ExecuteResult
	if rf, ok := args.Get(0).(func(context.Context, vesting.BatchVestingMsg, vesting.Fee, string, sdk.Coins) *vesting.ExecuteResult); ok {
		res = rf(ctx, msg, fee, memo, funds)
	} else if v := args.Get(0); v != nil {
		res = v.(*vesting.ExecuteResult)
	}

	return res, args.Error(1)
}
