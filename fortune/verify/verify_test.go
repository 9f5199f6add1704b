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

package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryCacheEvictsOnRead(t *testing.T) {
	clk := &clock{t: time.Unix(1700000000, 0)}
	cache := NewMemoryCacheWithClock[string](clk.now)

	cache.Put("a", "first", time.Minute)
	cache.Put("b", "second", time.Hour)

	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", v)

	clk.advance(time.Minute)
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())

	cache.Delete("b")
	assert.Equal(t, 0, cache.Len())
}

func TestCheckerLifecycle(t *testing.T) {
	clk := &clock{t: time.Unix(1700000000, 0)}
	checker := NewChecker(NewMemoryCacheWithClock[Result](clk.now), 0)

	r, err := checker.Check("0xABC")
	require.NoError(t, err)
	assert.False(t, r.Verified)

	require.NoError(t, checker.Record("0xABC", Result{Verified: true, DateOfBirth: "1990-08-01"}))

	r, err = checker.Check(" 0xabc ")
	require.NoError(t, err)
	assert.True(t, r.Verified)
	assert.Equal(t, "1990-08-01", r.DateOfBirth)

	clk.advance(DefaultTTL)
	r, err = checker.Check("0xabc")
	require.NoError(t, err)
	assert.False(t, r.Verified)
	assert.Empty(t, r.DateOfBirth)
}

func TestCheckerRejectsBadInput(t *testing.T) {
	checker := NewChecker(NewMemoryCache[Result](), time.Hour)

	_, err := checker.Check("")
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))
	assert.Equal(t, fault.InvalidInput, fault.KindOf(checker.Record("", Result{})))
	assert.Equal(t, fault.InvalidInput, fault.KindOf(checker.Record("u", Result{Verified: true, DateOfBirth: "August"})))
}

func TestParseDateOfBirth(t *testing.T) {
	d, err := ParseDateOfBirth("01-08-90")
	require.NoError(t, err)
	assert.Equal(t, time.August, d.Month())
	assert.Equal(t, 1990, d.Year())
}

func TestPoll(t *testing.T) {
	calls := 0
	v, err := Poll(context.Background(), time.Millisecond, 5, func(context.Context) (int, bool, error) {
		calls++
		return calls, calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	calls = 0
	_, err = Poll(context.Background(), time.Millisecond, 2, func(context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	})
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	_, err = Poll(context.Background(), time.Millisecond, 5, func(context.Context) (int, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Poll(ctx, time.Hour, 3, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientWait(t *testing.T) {
	defer gock.Off()
	gock.New("https://app.example").
		Post("/api/verify-self/check").
		JSON(map[string]string{"userId": "0xabc"}).
		Times(2).
		Reply(200).
		JSON(map[string]interface{}{"verified": false})
	gock.New("https://app.example").
		Post("/api/verify-self/check").
		Reply(200).
		JSON(map[string]interface{}{"verified": true, "date_of_birth": "1990-08-01"})

	r, err := NewClient("https://app.example/api/verify-self/check", time.Second).Wait(context.Background(), "0xabc", time.Millisecond, 5)
	require.NoError(t, err)
	assert.Equal(t, "1990-08-01", r.DateOfBirth)
	assert.True(t, gock.IsDone())
}
