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

package api

import (
	"math/big"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigID(n int64) *big.Int { return big.NewInt(n) }

func TestTokens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tokens := NewTokens("secret", time.Hour)
	tokens.now = func() time.Time { return now }
	user := common.HexToAddress("0x00000000000000000000000000000000000a11ce")

	token, err := tokens.Issue(&fortune.PaymentProof{PaymentID: bigID(42), User: user, TxHash: common.HexToHash("0x01")})
	require.NoError(t, err)

	id, got, err := tokens.Parse("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())
	assert.Equal(t, user, got)

	_, _, err = tokens.Parse(token)
	assert.ErrorIs(t, err, errMissingToken)

	_, _, err = NewTokens("other", time.Hour).Parse("Bearer " + token)
	assert.ErrorIs(t, err, errInvalidToken)

	tokens.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, _, err = tokens.Parse("Bearer " + token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestTokensRejectOtherAlgorithms(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	claims := PaymentClaims{PaymentID: "42", UserAddress: common.Address{1}.Hex()}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = tokens.Parse("Bearer " + unsigned)
	assert.ErrorIs(t, err, errInvalidToken)
}
