// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package fault defines the closed set of failure kinds the pipeline reports.
// Provider errors are classified into a Kind exactly once, at the edge where
// they enter the system; everything above that boundary switches on the kind.
package fault

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure condition callers are expected to handle.
type Kind uint8

const (
	Unknown             Kind = iota
	TransientRPC             // timeouts, dropped connections, rate limits
	UserDeclined             // wallet rejected the signature request
	InsufficientFunds        // balance below value + gas
	NonceConflict            // stale or duplicate nonce
	GasLimit                 // estimate exceeds the allowance
	ContractReverted         // simulation or execution reverted
	StorageUploadFailed      // content-addressed upload failed
	ServiceUnavailable       // an external generation service failed
	NotFound                 // expected record or event missing
	Unauthorized             // caller does not own the resource
	AlreadyMinted            // generation already carries a token
	InvalidInput             // malformed request
)

var kindNames = [...]string{
	Unknown:             "unknown",
	TransientRPC:        "transient_rpc",
	UserDeclined:        "user_declined",
	InsufficientFunds:   "insufficient_funds",
	NonceConflict:       "nonce_conflict",
	GasLimit:            "gas_limit",
	ContractReverted:    "contract_reverted",
	StorageUploadFailed: "storage_upload_failed",
	ServiceUnavailable:  "service_unavailable",
	NotFound:            "not_found",
	Unauthorized:        "unauthorized",
	AlreadyMinted:       "already_minted",
	InvalidInput:        "invalid_input",
}

var kindMessages = [...]string{
	Unknown:             "Unexpected error",
	TransientRPC:        "Network connection error. Please check your connection and try again",
	UserDeclined:        "Transaction was rejected by the user",
	InsufficientFunds:   "Insufficient funds to complete the transaction",
	NonceConflict:       "Transaction failed due to nonce mismatch. Please try again",
	GasLimit:            "Transaction requires more gas than allowed. Please try again with a higher gas limit",
	ContractReverted:    "Contract execution failed",
	StorageUploadFailed: "Failed to upload to IPFS",
	ServiceUnavailable:  "Service temporarily unavailable",
	NotFound:            "Requested record was not found",
	Unauthorized:        "Not authorized for this payment",
	AlreadyMinted:       "This generation has already been minted",
	InvalidInput:        "Invalid request",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unrecognised names decode as Unknown.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// ParseKind returns the kind with the given name, or Unknown.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return Unknown
}

// Retryable reports whether an operation failing with this kind may be
// attempted again unchanged.
func (k Kind) Retryable() bool {
	return k == TransientRPC
}

// Error is a classified failure. Op names the stage or operation that failed,
// Reason carries best-effort detail such as a decoded revert reason.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

// New creates a classified error without an underlying cause.
func New(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Scope re-labels err with op while keeping whatever kind it already carries.
// Returns nil for a nil error.
func Scope(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the stable user-facing text for the failure.
func (e *Error) Message() string {
	msg := kindMessages[Unknown]
	if int(e.Kind) < len(kindMessages) {
		msg = kindMessages[e.Kind]
	}
	if reason := e.reason(); reason != "" {
		return msg + ": " + reason
	}
	if e.Kind == Unknown && e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) reason() string {
	if e.Reason != "" {
		return e.Reason
	}
	var inner *Error
	if errors.As(e.Err, &inner) {
		return inner.reason()
	}
	return ""
}

// KindOf extracts the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Kind == Unknown && fe.Err != nil {
			return KindOf(fe.Err)
		}
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing text for any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return kindMessages[Unknown] + ": " + err.Error()
}
