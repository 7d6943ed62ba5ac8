package walletflow

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the wallet flow.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidRollNumber  = errors.New("invalid roll number")
	ErrInvalidSPin        = errors.New("invalid s-pin")
	ErrInvalidResetCode   = errors.New("invalid reset code")
	ErrInvalidIntent      = errors.New("invalid intent")
	ErrSelfTransfer       = errors.New("cannot send money to yourself")
	ErrNoRecipients       = errors.New("no recipients selected")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrUnrecognizedScan   = errors.New("unrecognized scan result")
	ErrEmptyResetTarget   = errors.New("empty reset target")
	ErrGateBusy           = errors.New("gate busy")
	ErrGateState          = errors.New("invalid gate state")
	ErrCancelBlocked      = errors.New("cancel blocked")
	ErrSettleDwell        = errors.New("settle dwell not elapsed")
	ErrInvalidGateConfig  = errors.New("invalid gate config")
	ErrInvalidFlowConfig  = errors.New("invalid flow config")
	ErrSubmissionConsumed = errors.New("authorized request already consumed")
)

// FlowError wraps a failure with a stable operation code.
type FlowError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (flowError FlowError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", flowError.operation, flowError.subject, flowError.code, flowError.err)
}

// Unwrap returns the underlying error.
func (flowError FlowError) Unwrap() error {
	return flowError.err
}

// Operation returns the operation segment.
func (flowError FlowError) Operation() string {
	return flowError.operation
}

// Subject returns the subject segment.
func (flowError FlowError) Subject() string {
	return flowError.subject
}

// Code returns the stable error code segment.
func (flowError FlowError) Code() string {
	return flowError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return FlowError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
