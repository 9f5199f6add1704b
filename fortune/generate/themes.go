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

package generate

import (
	"strings"
	"time"
)

// Theme identifies a seasonal variant of the card artwork.
type Theme string

const (
	ThemeRegular        Theme = "regular"
	ThemeWinterHolidays Theme = "winter-holidays"
	ThemeNewYear        Theme = "new-year"
)

// ThemeInfo describes a theme and the backdrop it substitutes into the prompt.
type ThemeInfo struct {
	ID          Theme  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Backdrop    string `json:"-"`
}

// Themes lists every theme, regular first.
var Themes = []ThemeInfo{
	{
		ID:          ThemeRegular,
		Name:        "Classic Zodiac",
		Description: "Traditional cosmic and anime style",
		Emoji:       "⭐",
	},
	{
		ID:          ThemeWinterHolidays,
		Name:        "Winter Holidays",
		Description: "Festive December theme with snow & lights",
		Emoji:       "🎄",
		Backdrop: "The mystical cosmic backdrop features elegant white snowflakes falling throughout the scene with detailed crystalline patterns. " +
			"Festive red and green aurora lights with sophisticated gradients blend with the purple and blue nebulae. " +
			"Warm golden holiday lights create a magical winter atmosphere with soft bokeh effects and ethereal glow. " +
			"Delicate frost patterns add seasonal elegance with fine detail and shimmer. " +
			"Maintain the mature, semi-realistic anime art style with detailed shading. " +
			"The elegant character and their majestic spirit animal companion remain the central focus of this festive mystical scene",
	},
	{
		ID:          ThemeNewYear,
		Name:        "New Year",
		Description: "Celebration theme with fireworks & sparkles",
		Emoji:       "🎆",
		Backdrop: "The mystical cosmic backdrop features spectacular firework bursts with intricate light trails and particle effects exploding across the starry sky in rich, vibrant colors. " +
			"Golden and silver metallic confetti with detailed reflections float gracefully through the scene. " +
			"The nebulae shimmer with midnight blue and lustrous gold tones, creating an elegant celebration atmosphere. " +
			"Radiant sparkles illuminate the scene with refined detail. " +
			"Maintain the mature, semi-realistic anime art style with detailed shading. " +
			"The elegant character and their majestic spirit animal companion remain the central focus of this celebratory mystical scene",
	},
}

// ThemeByID returns the theme with the given id.
func ThemeByID(id Theme) (ThemeInfo, bool) {
	for _, t := range Themes {
		if t.ID == id {
			return t, true
		}
	}
	return ThemeInfo{}, false
}

// Available reports whether a theme may be chosen on the given date.
// Regular is always available, winter-holidays during December and new-year
// from December 15 through January 20.
func (id Theme) Available(now time.Time) bool {
	month, day := now.Month(), now.Day()
	switch id {
	case ThemeRegular:
		return true
	case ThemeWinterHolidays:
		return month == time.December
	case ThemeNewYear:
		return (month == time.December && day >= 15) || (month == time.January && day <= 20)
	}
	return false
}

// AvailableThemes returns the themes selectable on the given date.
func AvailableThemes(now time.Time) []ThemeInfo {
	var out []ThemeInfo
	for _, t := range Themes {
		if t.ID.Available(now) {
			out = append(out, t)
		}
	}
	return out
}

const (
	backdropMarker = "Both figures are surrounded by a mesmerizing cosmic backdrop"
	balanceMarker  = "The artwork should maintain a perfect balance"
)

// SeasonalPrompt substitutes the theme's backdrop into base. When base lacks
// the backdrop paragraph the backdrop is appended instead.
func SeasonalPrompt(base string, theme Theme) string {
	info, ok := ThemeByID(theme)
	if !ok || info.Backdrop == "" {
		return base
	}
	start := strings.Index(base, backdropMarker)
	end := strings.Index(base, balanceMarker)
	if start == -1 || end == -1 || end < start {
		return base + "\n\n" + info.Backdrop
	}
	return base[:start] + "Both figures are surrounded by a mesmerizing cosmic setting. " + info.Backdrop + "\n\n" + base[end:]
}
