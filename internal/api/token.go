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
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL bounds how long a verified payment may be used to link a
// generation.
const DefaultTokenTTL = time.Hour

var (
	errMissingToken = errors.New("api: missing bearer token")
	errInvalidToken = errors.New("api: invalid payment token")
)

// PaymentClaims identify a verified payment and its payer.
type PaymentClaims struct {
	PaymentID   string `json:"paymentId"`
	UserAddress string `json:"userAddress"`
	jwt.RegisteredClaims
}

// Tokens issues and checks HS256 payment tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. A zero ttl means DefaultTokenTTL.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a verified payment.
func (t *Tokens) Issue(proof *fortune.PaymentProof) (string, error) {
	now := t.now()
	claims := PaymentClaims{
		PaymentID:   proof.PaymentID.String(),
		UserAddress: proof.User.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   proof.TxHash.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse checks an Authorization header value and returns the payment it
// grants access to.
func (t *Tokens) Parse(header string) (*big.Int, common.Address, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, common.Address{}, errMissingToken
	}
	var claims PaymentClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, common.Address{}, errInvalidToken
	}
	id, ok := new(big.Int).SetString(claims.PaymentID, 10)
	if !ok || !common.IsHexAddress(claims.UserAddress) {
		return nil, common.Address{}, errInvalidToken
	}
	return id, common.HexToAddress(claims.UserAddress), nil
}
