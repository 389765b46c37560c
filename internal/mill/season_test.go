package mill

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCurrentSeasonCovering(t *testing.T) {
	seasons := []Season{
		{ID: 1, Year: "2024", StartDate: day("2024-10-01"), EndDate: day("2025-02-28")},
		{ID: 2, Year: "2025", StartDate: day("2025-10-01"), EndDate: day("2026-02-28")},
	}

	s, ok := CurrentSeason(day("2025-11-15"), seasons)
	require.True(t, ok)
	require.EqualValues(t, 2, s.ID)
}

func TestCurrentSeasonFallsBackToYear(t *testing.T) {
	seasons := []Season{
		{ID: 1, Year: "2024", StartDate: day("2024-10-01"), EndDate: day("2025-02-28")},
		{ID: 2, Year: "2025", StartDate: day("2025-10-01"), EndDate: day("2026-02-28")},
	}

	// Between two campaigns: no range covers the day, same-year season wins.
	s, ok := CurrentSeason(day("2025-06-01"), seasons)
	require.True(t, ok)
	require.EqualValues(t, 2, s.ID)
}

func TestCurrentSeasonMostRecentStart(t *testing.T) {
	seasons := []Season{
		{ID: 1, Year: "2023", StartDate: day("2023-10-01"), EndDate: day("2024-02-28")},
		{ID: 2, Year: "2024", StartDate: day("2024-10-01"), EndDate: day("2025-02-28")},
	}

	s, ok := CurrentSeason(day("2025-06-01"), seasons)
	require.True(t, ok)
	require.EqualValues(t, 2, s.ID)

	_, ok = CurrentSeason(day("2020-01-01"), seasons)
	require.False(t, ok)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.JuiceDensity = decimal.Zero
	require.ErrorIs(t, cfg.Validate(), ErrInvalidDensity)

	cfg = DefaultConfig()
	cfg.MaxRatio = decimal.NewFromInt(1)
	require.Error(t, cfg.Validate())
}

func TestRatioInBand(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.RatioInBand(decimal.NewFromInt(17)))
	require.False(t, cfg.RatioInBand(decimal.NewFromInt(50)))
	require.False(t, cfg.RatioInBand(decimal.NewFromInt(4)))
}
