// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of script error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInternal is returned if internal consistency checks fail. In
	// practice this error should never be seen as it would mean there is an
	// error in the engine logic.
	ErrInternal ErrorCode = iota

	// ErrInvalidIndex is returned when an out-of-bounds index is passed to
	// a function.
	ErrInvalidIndex

	// ErrUnsupportedAddress is returned when a concrete type that
	// implements a util.Address is not a supported type.
	ErrUnsupportedAddress

	// ErrNotPushOnly is returned when a signature script contains
	// anything other than data pushes.
	ErrNotPushOnly

	// ErrMalformedPush is returned when a data push opcode tries to push
	// more bytes than are left in the script.
	ErrMalformedPush

	// ErrScriptTooBig is returned if a script is larger than MaxScriptSize.
	ErrScriptTooBig

	// ErrElementTooBig is returned if the size of an element to be pushed
	// exceeds MaxScriptElementSize.
	ErrElementTooBig

	// ErrInvalidStackOperation is returned when a signature script does
	// not push the number of elements its public key script consumes.
	ErrInvalidStackOperation

	// ErrEqualVerify is returned when the public key pushed by a signature
	// script does not hash to the hash committed to by a pay-to-pubkey-hash
	// script.
	ErrEqualVerify

	// ErrEvalFalse is returned when a signature does not verify against
	// the public key and signature hash.
	ErrEvalFalse

	// ErrEarlyReturn is returned when a script that starts with OP_RETURN
	// is spent.
	ErrEarlyReturn

	// ErrNonStandardScript is returned when a public key script is not of
	// a known class and therefore can not be satisfied.
	ErrNonStandardScript

	// ErrPubKeyFormat is returned when the public key does not parse as a
	// serialized Schnorr public key.
	ErrPubKeyFormat

	// ErrSigLength is returned when a signature is not a 64 byte Schnorr
	// signature followed by a hash type byte.
	ErrSigLength

	// ErrSigFormat is returned when a signature does not parse.
	ErrSigFormat

	// ErrInvalidSigHashType is returned when a signature hash type is not
	// one of the supported types.
	ErrInvalidSigHashType

	// numErrorCodes is the maximum error code number used in tests. This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:              "ErrInternal",
	ErrInvalidIndex:          "ErrInvalidIndex",
	ErrUnsupportedAddress:    "ErrUnsupportedAddress",
	ErrNotPushOnly:           "ErrNotPushOnly",
	ErrMalformedPush:         "ErrMalformedPush",
	ErrScriptTooBig:          "ErrScriptTooBig",
	ErrElementTooBig:         "ErrElementTooBig",
	ErrInvalidStackOperation: "ErrInvalidStackOperation",
	ErrEqualVerify:           "ErrEqualVerify",
	ErrEvalFalse:             "ErrEvalFalse",
	ErrEarlyReturn:           "ErrEarlyReturn",
	ErrNonStandardScript:     "ErrNonStandardScript",
	ErrPubKeyFormat:          "ErrPubKeyFormat",
	ErrSigLength:             "ErrSigLength",
	ErrSigFormat:             "ErrSigFormat",
	ErrInvalidSigHashType:    "ErrInvalidSigHashType",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a script-related error. It is used to indicate script
// evaluation failures as well as improper API usage by callers.
//
// The caller can use type assertions on the returned errors to access the
// ErrorCode field to ascertain the specific reason for the error.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a script error with
// the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var scriptErr Error
	if ok := errors.As(err, &scriptErr); ok {
		return scriptErr.ErrorCode == c
	}
	return false
}
