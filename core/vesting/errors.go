package vesting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when normalization yields no valid vesting record.
	ErrEmptyInput = errors.New("no valid vesting records")
	// ErrOutOfGas is returned when the transaction ran out of gas.
	ErrOutOfGas = errors.New("out of gas")
	// ErrInsufficientFees is returned when the attached fee is below the node's minimum.
	ErrInsufficientFees = errors.New("insufficient fees")
	// ErrExceedsBlockMaxGas is returned when the gas limit is above the block gas cap.
	ErrExceedsBlockMaxGas = errors.New("exceeds block max gas")
	// ErrIndexingDisabled is returned when the node broadcast the transaction but cannot report it.
	ErrIndexingDisabled = errors.New("transaction indexing is disabled")
	// ErrNoTransactionHash is returned when the contract reports success without a hash.
	ErrNoTransactionHash = errors.New("no transaction hash returned")
	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("invalid batch size")
	// ErrInvalidStartBatch is returned when the start batch is outside the partition.
	ErrInvalidStartBatch = errors.New("invalid start batch")
	// ErrCheckpointMismatch is returned when resuming with records that differ from the checkpoint.
	ErrCheckpointMismatch = errors.New("checkpoint does not match vesting records")
)

// StatusCode classifies the outcome of one submission attempt.
type StatusCode uint64

const (
	StatusUnknown StatusCode = iota
	StatusSuccess
	StatusIndexingDisabled
	StatusOutOfGas
	StatusInsufficientFees
	StatusExceedsBlockMaxGas
	StatusContextCanceled
	StatusError
)

// String returns a human-readable status.
func (c StatusCode) String() string {
	switch c {
	case StatusSuccess:
		return "Success"
	case StatusIndexingDisabled:
		return "Indexing Disabled"
	case StatusOutOfGas:
		return "Out Of Gas"
	case StatusInsufficientFees:
		return "Insufficient Fees"
	case StatusExceedsBlockMaxGas:
		return "Exceeds Block Max Gas"
	case StatusContextCanceled:
		return "Context Canceled"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Committed reports whether the transaction is considered on chain.
func (c StatusCode) Committed() bool {
	return c == StatusSuccess || c == StatusIndexingDisabled
}

// Retryable reports whether the submitter may retry with adjusted gas or price.
func (c StatusCode) Retryable() bool {
	return c == StatusOutOfGas || c == StatusInsufficientFees
}

// ShrinksBatch reports whether a terminal failure with this status may be recovered by smaller batches.
func (c StatusCode) ShrinksBatch() bool {
	return c == StatusOutOfGas || c == StatusExceedsBlockMaxGas
}

// ResultSubmit is the classified outcome of one contract call.
type ResultSubmit struct {
	Code    StatusCode
	Message string
	TxHash  string
	Height  int64
	GasUsed uint64
	Err     error
}

// BatchError is the terminal failure of a single batch after the submitter gave up.
type BatchError struct {
	Batch    int
	Code     StatusCode
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempt(s) (%s): %v", e.Batch, e.Attempts, e.Code, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// RunError aborts a run. Results holds every batch committed before the failure.
type RunError struct {
	Batch   int
	Results []BatchResult
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("vesting run aborted at batch %d with %d batch(es) committed: %v", e.Batch, len(e.Results), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// CodedError is a contract error together with its classified status. It keeps the status
// where error wrapping does not survive, such as across JSON-RPC.
type CodedError struct {
	Code    StatusCode
	Message string
}

func (e *CodedError) Error() string {
	return e.Message
}

// Is matches the sentinel error of the status.
func (e *CodedError) Is(target error) bool {
	sentinel := e.Code.sentinel()
	return sentinel != nil && target == sentinel
}

type codedErrorJSON struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message"`
}

// MarshalJSON implements json.Marshaler.
func (e *CodedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(codedErrorJSON{Code: e.Code, Message: e.Message})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *CodedError) UnmarshalJSON(b []byte) error {
	var v codedErrorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.Code, e.Message = v.Code, v.Message
	return nil
}

func (c StatusCode) sentinel() error {
	switch c {
	case StatusIndexingDisabled:
		return ErrIndexingDisabled
	case StatusOutOfGas:
		return ErrOutOfGas
	case StatusInsufficientFees:
		return ErrInsufficientFees
	case StatusExceedsBlockMaxGas:
		return ErrExceedsBlockMaxGas
	case StatusContextCanceled:
		return context.Canceled
	}
	return nil
}
