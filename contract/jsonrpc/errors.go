package jsonrpc

import (
	"github.com/filecoin-project/go-jsonrpc"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
	"github.com/orchestra-labs/vesting-batcher/types"
)

// contractErrorCode is the JSON-RPC error code of a classified contract error.
const contractErrorCode jsonrpc.ErrorCode = 100

// getKnownErrorsMapping returns the errors that keep their type across the wire.
// A *vesting.CodedError travels with its status code in the error meta.
func getKnownErrorsMapping() jsonrpc.Errors {
	errs := jsonrpc.NewErrors()
	errs.Register(contractErrorCode, new(*vesting.CodedError))
	return errs
}

// codedError classifies err so that its status survives serialization.
func codedError(err error) error {
	if err == nil {
		return nil
	}
	return &vesting.CodedError{Code: types.ClassifyError(err), Message: err.Error()}
}
