package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRankEntriesCompletedBeforeProgress(t *testing.T) {
	entries := []LeaderboardEntry{
		{UserID: "p1", Status: StatusCompleted, CurrentYear: 2025, PortfolioValue: money("120000.00")},
		{UserID: "p2", Status: StatusPlaying, CurrentYear: 2023, PortfolioValue: money("150000.00")},
		{UserID: "p3", Status: StatusCompleted, CurrentYear: 2025, PortfolioValue: money("110000.00")},
	}
	rankEntries(entries)

	// A finished player outranks a mid-game player regardless of value.
	require.Equal(t, "p1", entries[0].UserID)
	require.Equal(t, "p3", entries[1].UserID)
	require.Equal(t, "p2", entries[2].UserID)
	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
	}
}

func TestRankEntriesYearBeforeValue(t *testing.T) {
	entries := []LeaderboardEntry{
		{UserID: "behind", Status: StatusPlaying, CurrentYear: 2022, PortfolioValue: money("200000.00")},
		{UserID: "ahead", Status: StatusPlaying, CurrentYear: 2024, PortfolioValue: money("90000.00")},
	}
	rankEntries(entries)
	require.Equal(t, "ahead", entries[0].UserID)
	require.Equal(t, "behind", entries[1].UserID)
}

func TestRankEntriesValueWithinSameYear(t *testing.T) {
	entries := []LeaderboardEntry{
		{UserID: "low", Status: StatusPlaying, CurrentYear: 2023, PortfolioValue: money("95000.00")},
		{UserID: "high", Status: StatusPlaying, CurrentYear: 2023, PortfolioValue: money("140000.00")},
		{UserID: "mid", Status: StatusPlaying, CurrentYear: 2023, PortfolioValue: money("120000.00")},
	}
	rankEntries(entries)
	require.Equal(t, []string{"high", "mid", "low"}, []string{entries[0].UserID, entries[1].UserID, entries[2].UserID})
}

func TestRankEntriesExactTiesAreStable(t *testing.T) {
	entries := []LeaderboardEntry{
		{UserID: "first-seen", Status: StatusPlaying, CurrentYear: 2022, PortfolioValue: money("100000.00")},
		{UserID: "second-seen", Status: StatusPlaying, CurrentYear: 2022, PortfolioValue: money("100000.00")},
	}
	rankEntries(entries)
	require.Equal(t, "first-seen", entries[0].UserID)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, 2, entries[1].Rank)
}

func TestRankEntriesEmpty(t *testing.T) {
	var entries []LeaderboardEntry
	rankEntries(entries)
	require.Empty(t, entries)
}
