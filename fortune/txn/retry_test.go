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
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{MaxAttempts: 4, Delay: time.Millisecond}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnFatal(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("insufficient funds for gas * price + value")
	})
	assert.Equal(t, 1, calls)
	assert.True(t, fault.Is(err, fault.InsufficientFunds))
}

func TestRetryExhaustion(t *testing.T) {
	calls := 0
	err := fastPolicy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("request timed out")
	})
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
	assert.True(t, fault.Is(err, fault.TransientRPC))
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 10, Delay: time.Hour}.Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("rate limit")
	})
	assert.Equal(t, 1, calls)
	assert.True(t, fault.Is(err, fault.TransientRPC))
}

func TestRetryGenericValue(t *testing.T) {
	calls := 0
	v, err := retry(context.Background(), fastPolicy, "test", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("network error")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
