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

// Package generate produces the text fortune and the card image for a paid
// run. The external services it calls are optional: text falls back to a
// deterministic fortune, and images fall back to the transient URL when
// durable persistence fails.
package generate

import (
	"strings"
	"time"
)

// ZodiacType selects the astrological system a card is drawn from.
type ZodiacType string

const (
	Western ZodiacType = "western"
	Chinese ZodiacType = "chinese"
	Vedic   ZodiacType = "vedic"
	Mayan   ZodiacType = "mayan"
)

// Sign is a zodiac sign with its classical element.
type Sign struct {
	Name    string `json:"name"`
	Element string `json:"element"`
}

type span struct {
	name             string
	startMonth, from int
	endMonth, to     int
}

var westernSpans = []span{
	{"Capricorn", 12, 22, 1, 19},
	{"Aquarius", 1, 20, 2, 18},
	{"Pisces", 2, 19, 3, 20},
	{"Aries", 3, 21, 4, 19},
	{"Taurus", 4, 20, 5, 20},
	{"Gemini", 5, 21, 6, 20},
	{"Cancer", 6, 21, 7, 22},
	{"Leo", 7, 23, 8, 22},
	{"Virgo", 8, 23, 9, 22},
	{"Libra", 9, 23, 10, 22},
	{"Scorpio", 10, 23, 11, 21},
	{"Sagittarius", 11, 22, 12, 21},
}

var vedicSpans = []span{
	{"Mesha (Aries)", 4, 14, 5, 14},
	{"Vrishabha (Taurus)", 5, 15, 6, 14},
	{"Mithuna (Gemini)", 6, 15, 7, 14},
	{"Karka (Cancer)", 7, 15, 8, 14},
	{"Simha (Leo)", 8, 15, 9, 15},
	{"Kanya (Virgo)", 9, 16, 10, 15},
	{"Tula (Libra)", 10, 16, 11, 14},
	{"Vrishchika (Scorpio)", 11, 15, 12, 14},
	{"Dhanu (Sagittarius)", 12, 15, 1, 13},
	{"Makara (Capricorn)", 1, 14, 2, 12},
	{"Kumbha (Aquarius)", 2, 13, 3, 14},
	{"Meena (Pisces)", 3, 15, 4, 13},
}

var signs = map[ZodiacType][]Sign{
	Western: {
		{"Aries", "Fire"}, {"Taurus", "Earth"}, {"Gemini", "Air"}, {"Cancer", "Water"},
		{"Leo", "Fire"}, {"Virgo", "Earth"}, {"Libra", "Air"}, {"Scorpio", "Water"},
		{"Sagittarius", "Fire"}, {"Capricorn", "Earth"}, {"Aquarius", "Air"}, {"Pisces", "Water"},
	},
	// Ordered so that index (year-4) mod 12 is the animal of that year.
	Chinese: {
		{"Rat", "Water"}, {"Ox", "Earth"}, {"Tiger", "Wood"}, {"Rabbit", "Wood"},
		{"Dragon", "Earth"}, {"Snake", "Fire"}, {"Horse", "Fire"}, {"Goat", "Earth"},
		{"Monkey", "Metal"}, {"Rooster", "Metal"}, {"Dog", "Earth"}, {"Pig", "Water"},
	},
	Vedic: {
		{"Mesha (Aries)", "Fire"}, {"Vrishabha (Taurus)", "Earth"}, {"Mithuna (Gemini)", "Air"},
		{"Karka (Cancer)", "Water"}, {"Simha (Leo)", "Fire"}, {"Kanya (Virgo)", "Earth"},
		{"Tula (Libra)", "Air"}, {"Vrishchika (Scorpio)", "Water"}, {"Dhanu (Sagittarius)", "Fire"},
		{"Makara (Capricorn)", "Earth"}, {"Kumbha (Aquarius)", "Air"}, {"Meena (Pisces)", "Water"},
	},
	// The twenty Tzolk'in day signs; elements follow the four directions.
	Mayan: {
		{"Imix", "Fire"}, {"Ik'", "Air"}, {"Ak'bal", "Water"}, {"K'an", "Earth"},
		{"Chikchan", "Fire"}, {"Kimi", "Air"}, {"Manik'", "Water"}, {"Lamat", "Earth"},
		{"Muluk", "Fire"}, {"Ok", "Air"}, {"Chuwen", "Water"}, {"Eb", "Earth"},
		{"Ben", "Fire"}, {"Ix", "Air"}, {"Men", "Water"}, {"K'ib", "Earth"},
		{"Kaban", "Fire"}, {"Etz'nab", "Air"}, {"Kawak", "Water"}, {"Ajaw", "Earth"},
	},
}

// Valid reports whether t is a known zodiac type.
func (t ZodiacType) Valid() bool {
	_, ok := signs[t]
	return ok
}

// Signs returns every sign of the zodiac type.
func Signs(t ZodiacType) []Sign {
	return append([]Sign(nil), signs[t]...)
}

// Lookup finds a sign by name, case-insensitively.
func Lookup(t ZodiacType, name string) (Sign, bool) {
	for _, s := range signs[t] {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Sign{}, false
}

// Element returns the element of a sign, or "cosmic" for an unknown sign.
func Element(t ZodiacType, name string) string {
	if s, ok := Lookup(t, name); ok {
		return s.Element
	}
	return "cosmic"
}

// SignFor derives the sign of a birth date in the given zodiac type.
func SignFor(t ZodiacType, birth time.Time) (Sign, bool) {
	month, day, year := int(birth.Month()), birth.Day(), birth.Year()
	switch t {
	case Western:
		return fromSpans(t, westernSpans, month, day)
	case Vedic:
		return fromSpans(t, vedicSpans, month, day)
	case Chinese:
		idx := ((year-4)%12 + 12) % 12
		return signs[Chinese][idx], true
	case Mayan:
		// Day 0 of the Long Count (JDN 584283) is 4 Ajaw.
		idx := int((julianDay(year, month, day)+16)%20+20) % 20
		return signs[Mayan][idx], true
	}
	return Sign{}, false
}

func fromSpans(t ZodiacType, spans []span, month, day int) (Sign, bool) {
	for _, s := range spans {
		if (month == s.startMonth && day >= s.from) || (month == s.endMonth && day <= s.to) {
			return Lookup(t, s.name)
		}
	}
	return Sign{}, false
}

// julianDay converts a Gregorian date to its Julian day number.
func julianDay(year, month, day int) int64 {
	a := (14 - month) / 12
	y := int64(year + 4800 - a)
	m := int64(month + 12*a - 3)
	return int64(day) + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}
