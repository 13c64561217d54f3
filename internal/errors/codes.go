// Package errors provides structured, machine-readable error handling for the
// ledger services, with a stable mapping onto gRPC status codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lease command errors
	CodeLeaseIDEmpty        Code = "LEASE_ID_EMPTY"
	CodeLeaseUserEmpty      Code = "LEASE_USER_EMPTY"
	CodeLeaseTermInvalid    Code = "LEASE_TERM_INVALID"
	CodeLeaseAmountInvalid  Code = "LEASE_AMOUNT_INVALID"
	CodeLeaseAlreadyExists  Code = "LEASE_ALREADY_EXISTS"
	CodeLeaseNotCreated     Code = "LEASE_NOT_CREATED"
	CodeLeaseTerminated     Code = "LEASE_TERMINATED"
	CodeTerminationRepeated Code = "LEASE_TERMINATION_REPEATED"

	// Payment command errors
	CodePaymentIDEmpty         Code = "PAYMENT_ID_EMPTY"
	CodePaymentAmountInvalid   Code = "PAYMENT_AMOUNT_INVALID"
	CodePaymentDateInvalid     Code = "PAYMENT_DATE_INVALID"
	CodePaymentAlreadyRecorded Code = "PAYMENT_ALREADY_RECORDED"

	// Query errors
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodeAsOfInvalid      Code = "AS_OF_INVALID"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeEventNotFound  Code = "EVENT_NOT_FOUND"
	CodeAppendConflict Code = "APPEND_CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeLeaseIDEmpty,
		CodeLeaseUserEmpty,
		CodeLeaseTermInvalid,
		CodeLeaseAmountInvalid,
		CodePaymentIDEmpty,
		CodePaymentAmountInvalid,
		CodePaymentDateInvalid,
		CodePageTokenInvalid,
		CodeFilterInvalid,
		CodeAsOfInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeLeaseTerminated,
		CodeTerminationRepeated:
		return codes.FailedPrecondition

	// AlreadyExists - duplicate creation or idempotency-key replay
	case CodeLeaseAlreadyExists,
		CodePaymentAlreadyRecorded:
		return codes.AlreadyExists

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeLeaseNotCreated,
		CodeEventNotFound:
		return codes.NotFound

	// Aborted - concurrent append race detected at the store layer
	case CodeAppendConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
