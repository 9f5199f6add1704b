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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(month time.Month, day int) time.Time {
	return time.Date(2025, month, day, 12, 0, 0, 0, time.UTC)
}

func TestThemeAvailability(t *testing.T) {
	tests := []struct {
		theme Theme
		at    time.Time
		want  bool
	}{
		{ThemeRegular, date(time.June, 1), true},
		{ThemeWinterHolidays, date(time.December, 1), true},
		{ThemeWinterHolidays, date(time.December, 31), true},
		{ThemeWinterHolidays, date(time.January, 1), false},
		{ThemeWinterHolidays, date(time.November, 30), false},
		{ThemeNewYear, date(time.December, 15), true},
		{ThemeNewYear, date(time.December, 14), false},
		{ThemeNewYear, date(time.January, 20), true},
		{ThemeNewYear, date(time.January, 21), false},
		{Theme("halloween"), date(time.October, 31), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.theme)+"/"+tt.at.Format("Jan 2"), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.theme.Available(tt.at))
		})
	}
}

func TestAvailableThemesInDecember(t *testing.T) {
	got := AvailableThemes(date(time.December, 20))
	require.Len(t, got, 3)
	assert.Equal(t, ThemeRegular, got[0].ID)

	got = AvailableThemes(date(time.July, 4))
	require.Len(t, got, 1)
}

func TestImagePromptSubstitutesBackdrop(t *testing.T) {
	regular := ImagePrompt("Leo", Western, ThemeRegular, date(time.December, 20))
	assert.Contains(t, regular, "representing Leo of the western zodiac")
	assert.Contains(t, regular, backdropMarker)
	assert.LessOrEqual(t, len(regular), MaxPromptLength)

	winter := ImagePrompt("Leo", Western, ThemeWinterHolidays, date(time.December, 20))
	assert.NotContains(t, winter, backdropMarker)
	assert.Contains(t, winter, "snowflakes")
	assert.True(t, strings.HasSuffix(winter, regular[strings.Index(regular, balanceMarker):]))
	assert.LessOrEqual(t, len(winter), MaxPromptLength)

	offSeason := ImagePrompt("Leo", Western, ThemeWinterHolidays, date(time.July, 1))
	assert.Equal(t, regular, offSeason)
}

func TestSeasonalPromptAppendsWithoutMarkers(t *testing.T) {
	got := SeasonalPrompt("a short prompt", ThemeNewYear)
	assert.True(t, strings.HasPrefix(got, "a short prompt\n\n"))
	assert.Contains(t, got, "firework")
	assert.Equal(t, "a short prompt", SeasonalPrompt("a short prompt", ThemeRegular))
}

func TestSignFor(t *testing.T) {
	tests := []struct {
		zt    ZodiacType
		birth time.Time
		want  string
	}{
		{Western, time.Date(1990, time.August, 1, 0, 0, 0, 0, time.UTC), "Leo"},
		{Western, time.Date(1990, time.January, 5, 0, 0, 0, 0, time.UTC), "Capricorn"},
		{Western, time.Date(1990, time.December, 25, 0, 0, 0, 0, time.UTC), "Capricorn"},
		{Chinese, time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC), "Rat"},
		{Chinese, time.Date(1988, time.May, 1, 0, 0, 0, 0, time.UTC), "Dragon"},
		{Vedic, time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC), "Dhanu (Sagittarius)"},
		{Vedic, time.Date(1990, time.April, 20, 0, 0, 0, 0, time.UTC), "Mesha (Aries)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.zt)+"/"+tt.want, func(t *testing.T) {
			got, ok := SignFor(tt.zt, tt.birth)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}

	mayan, ok := SignFor(Mayan, time.Date(2012, time.December, 21, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Ajaw", mayan.Name)
}

func TestElementLookup(t *testing.T) {
	assert.Equal(t, "Fire", Element(Western, "leo"))
	assert.Equal(t, "Wood", Element(Chinese, "Tiger"))
	assert.Equal(t, "cosmic", Element(Western, "Ophiuchus"))
	assert.True(t, Mayan.Valid())
	assert.False(t, ZodiacType("celtic").Valid())
	assert.Len(t, Signs(Mayan), 20)
}

func TestFallbackFortune(t *testing.T) {
	assert.Equal(t,
		"As a Leo, your crypto journey looks promising! The stars align for financial growth, and your natural Fire energy will guide you to make wise investment choices. Trust your intuition this week.",
		FallbackFortune("Leo", "Fire"))
}

func TestTextClientFortune(t *testing.T) {
	tests := []struct {
		name     string
		mock     func()
		want     string
		wantKind fault.Kind
	}{
		{
			name: "Success",
			mock: func() {
				gock.New("https://text.example").
					Post("/v1/chat/completions").
					MatchHeader("Authorization", "Bearer key").
					MatchHeader("X-Title", "Zodiac Fortune Teller").
					MatchHeader("HTTP-Referer", "https://zodiaccard.xyz").
					Reply(200).
					JSON(map[string]interface{}{
						"choices": []map[string]interface{}{
							{"message": map[string]string{"role": "assistant", "content": "  The stars favour your next build.  "}},
						},
					})
			},
			want: "The stars favour your next build.",
		},
		{
			name: "ServerError",
			mock: func() {
				gock.New("https://text.example").
					Post("/v1/chat/completions").
					Reply(502).
					BodyString("bad gateway")
			},
			wantKind: fault.ServiceUnavailable,
		},
		{
			name: "Rejected",
			mock: func() {
				gock.New("https://text.example").
					Post("/v1/chat/completions").
					Reply(401).
					JSON(map[string]interface{}{"error": map[string]string{"message": "No auth credentials found", "type": "auth_error"}})
			},
			wantKind: fault.ServiceUnavailable,
		},
		{
			name: "EmptyChoices",
			mock: func() {
				gock.New("https://text.example").
					Post("/v1/chat/completions").
					Reply(200).
					JSON(map[string]interface{}{"choices": []interface{}{}})
			},
			wantKind: fault.ServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mock()

			client := NewTextClient("https://text.example/v1", "key", "", "https://zodiaccard.xyz", time.Second)
			got, err := client.Fortune(context.Background(), FortuneRequest{Username: "alice", Sign: "Leo", ZodiacType: Western})
			if tt.wantKind != fault.Unknown {
				assert.Equal(t, tt.wantKind, fault.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestTextClientUnconfigured(t *testing.T) {
	_, err := NewTextClient("https://text.example", "", "", "", time.Second).Fortune(context.Background(), FortuneRequest{Sign: "Leo"})
	assert.Equal(t, fault.ServiceUnavailable, fault.KindOf(err))
}

func mockModeration(flagged bool) {
	gock.New("https://images.example").
		Post("/v1/moderations").
		Reply(200).
		JSON(map[string]interface{}{
			"id":      "modr-1",
			"model":   "omni-moderation-latest",
			"results": []map[string]interface{}{{"flagged": flagged}},
		})
}

func TestImageClient(t *testing.T) {
	defer gock.Off()
	mockModeration(false)
	gock.New("https://images.example").
		Post("/v1/images/generations").
		MatchHeader("Authorization", "Bearer key").
		MatchType("json").
		Reply(200).
		JSON(map[string]interface{}{
			"created": 1735689600,
			"data":    []map[string]string{{"url": "https://cdn.example/tmp/leo.png"}},
		})

	client := NewImageClient("https://images.example/v1", "key", "", "", time.Second)
	url, err := client.Image(context.Background(), "a leo")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/tmp/leo.png", url)
	assert.True(t, gock.IsDone())
}

func TestImageClientRefusesFlaggedPrompt(t *testing.T) {
	defer gock.Off()
	mockModeration(true)

	client := NewImageClient("https://images.example/v1", "key", "", "", time.Second)
	_, err := client.Image(context.Background(), "a leo")
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))
	assert.Contains(t, err.Error(), "flagged by moderation")
	assert.True(t, gock.IsDone())
}

func TestImageClientRejectsBadPrompts(t *testing.T) {
	client := NewImageClient("https://images.example/v1", "key", "", "", time.Second)

	_, err := client.Image(context.Background(), strings.Repeat("x", MaxPromptLength+1))
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))

	_, err = client.Image(context.Background(), "   ")
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))

	_, err = NewImageClient("https://images.example/v1", "", "", "", time.Second).Image(context.Background(), "a leo")
	assert.Equal(t, fault.ServiceUnavailable, fault.KindOf(err))
}

func TestImageClientFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     map[string]interface{}
		wantKind fault.Kind
	}{
		{
			name:     "ServerError",
			status:   500,
			body:     map[string]interface{}{"error": map[string]string{"message": "Image generation failed", "type": "server_error"}},
			wantKind: fault.ServiceUnavailable,
		},
		{
			name:     "ContentPolicy",
			status:   400,
			body:     map[string]interface{}{"error": map[string]string{"message": "Your request was rejected", "type": "invalid_request_error", "code": "content_policy_violation"}},
			wantKind: fault.InvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			mockModeration(false)
			gock.New("https://images.example").
				Post("/v1/images/generations").
				Reply(tt.status).
				JSON(tt.body)

			_, err := NewImageClient("https://images.example/v1", "key", "", "", time.Second).Image(context.Background(), "a leo")
			assert.Equal(t, tt.wantKind, fault.KindOf(err))
		})
	}
}
