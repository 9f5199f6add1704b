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

package txn

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Providers that only surface message text are matched against these tables.
// Fatal phrases are checked before transient ones.
var fatalPhrases = []struct {
	phrase string
	kind   fault.Kind
}{
	{"user rejected", fault.UserDeclined},
	{"user denied", fault.UserDeclined},
	{"rejected the request", fault.UserDeclined},
	{"insufficient funds", fault.InsufficientFunds},
	{"nonce too low", fault.NonceConflict},
	{"nonce too high", fault.NonceConflict},
	{"replacement transaction underpriced", fault.NonceConflict},
	{"already known", fault.NonceConflict},
	{"gas required exceeds allowance", fault.GasLimit},
	{"exceeds block gas limit", fault.GasLimit},
	{"intrinsic gas too low", fault.GasLimit},
}

var transientPhrases = []string{
	"timeout",
	"timed out",
	"network error",
	"connection refused",
	"connection reset",
	"rate limit",
	"too many requests",
	"internal json-rpc error",
	"unexpected eof",
}

// JSON-RPC error codes that indicate an overloaded or failing node.
const (
	codeInternal      = -32603
	codeLimitExceeded = -32005
)

// Classify maps err onto a fault kind, labelled with op. Errors that already
// carry a kind pass through unchanged. Returns nil for a nil error.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if fault.KindOf(err) != fault.Unknown {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.Unknown, op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, f := range fatalPhrases {
		if strings.Contains(msg, f.phrase) {
			return fault.Wrap(f.kind, op, err)
		}
	}
	if reason, ok := revertReason(err); ok {
		return &fault.Error{Kind: fault.ContractReverted, Op: op, Reason: reason, Err: err}
	}
	if isTransient(err) {
		return fault.Wrap(fault.TransientRPC, op, err)
	}
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return fault.Wrap(fault.TransientRPC, op, err)
		}
	}
	if strings.Contains(msg, "revert") {
		return fault.Wrap(fault.ContractReverted, op, err)
	}
	return fault.Wrap(fault.Unknown, op, err)
}

// isAlreadyKnown reports whether a node rejected a send because it already
// holds the same transaction.
func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		return code == codeInternal || code == codeLimitExceeded
	}
	return false
}

// revertReason extracts the Error(string) reason from revert data attached
// to a JSON-RPC error. ok is false when err carries no revert data.
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	var raw []byte
	switch data := dataErr.ErrorData().(type) {
	case string:
		b, decErr := hexutil.Decode(data)
		if decErr != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = data
	default:
		return "", false
	}
	if len(raw) == 0 {
		return "", false
	}
	reason, unpackErr := abi.UnpackRevert(raw)
	if unpackErr != nil {
		return "", true
	}
	return reason, true
}
