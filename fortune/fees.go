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

package fortune

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// DefaultDecimals is the precision of the native token.
const DefaultDecimals = 18

// Errors for fee parsing and validation.
var (
	ErrInvalidAmount = errors.New("fortune: invalid amount")
	ErrNegativeFee   = errors.New("fortune: fee cannot be negative")
	ErrTooPrecise    = errors.New("fortune: amount has more decimals than the token")
)

// FeeSchedule holds the fees of the image payment and the mint, in the
// smallest unit of the native token.
type FeeSchedule struct {
	ImageFee *big.Int
	MintFee  *big.Int
	Decimals int
	Symbol   string
}

// NewFeeSchedule parses decimal fee strings such as "2.0" at the given
// precision.
func NewFeeSchedule(imageFee, mintFee string, decimals int, symbol string) (*FeeSchedule, error) {
	image, err := ParseAmount(imageFee, decimals)
	if err != nil {
		return nil, fmt.Errorf("image fee: %w", err)
	}
	mint, err := ParseAmount(mintFee, decimals)
	if err != nil {
		return nil, fmt.Errorf("mint fee: %w", err)
	}
	return &FeeSchedule{ImageFee: image, MintFee: mint, Decimals: decimals, Symbol: symbol}, nil
}

// QuoteImage returns the value to send with payForImage.
func (fs *FeeSchedule) QuoteImage() *big.Int {
	return new(big.Int).Set(fs.ImageFee)
}

// QuoteMint returns the value to send with mint.
func (fs *FeeSchedule) QuoteMint() *big.Int {
	return new(big.Int).Set(fs.MintFee)
}

// Format renders an amount with the schedule's precision and symbol.
func (fs *FeeSchedule) Format(v *big.Int) string {
	return FormatAmount(v, fs.Decimals) + " " + fs.Symbol
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParseAmount converts a decimal string to a fixed-point integer scaled by
// 10^decimals. "2", "2.0" and "2.000000000000000000" are the same amount.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return nil, ErrNegativeFee
	}
	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %s", ErrTooPrecise, s)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatAmount renders a fixed-point integer as a decimal string without
// trailing zeros, keeping at least one fractional digit.
func FormatAmount(v *big.Int, decimals int) string {
	if v == nil {
		return "0.0"
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	whole, frac := new(big.Int).QuoRem(abs, pow10(decimals), new(big.Int))

	fs := ""
	if decimals > 0 {
		fs = frac.String()
		fs = strings.Repeat("0", decimals-len(fs)) + fs
		fs = strings.TrimRight(fs, "0")
	}
	if fs == "" {
		fs = "0"
	}
	out := whole.String() + "." + fs
	if neg {
		out = "-" + out
	}
	return out
}
