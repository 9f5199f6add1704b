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
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Policy bounds how often a transient failure is retried. Delay is fixed
// between attempts; MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy makes one attempt plus three retries, one second apart.
var DefaultPolicy = Policy{MaxAttempts: 4, Delay: time.Second}

// Do runs fn until it succeeds, fails with a non-transient kind, or the
// attempts are exhausted. The returned error is always classified.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := retry(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func retry[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	defer metrics.RPCDuration(op, time.Now())

	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		err = Classify(op, err)
		if !fault.KindOf(err).Retryable() || attempt >= attempts {
			return out, err
		}
		metrics.RPCRetry(op)
		log.Warn("RPC operation failed, retrying", "op", op, "attempt", attempt, "left", attempts-attempt, "err", err)

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, err
		case <-timer.C:
		}
	}
}
