package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func singleInstrumentCatalog(t *testing.T, ret string) *Catalog {
	t.Helper()
	cat, err := NewCatalog(
		"test-single",
		[]int{2021},
		[]Instrument{{ID: "fund", Name: "Test Fund", Type: "Equity"}},
		map[int]map[string]decimal.Decimal{
			2021: {"fund": pct(ret)},
		},
		nil,
	)
	require.NoError(t, err)
	return cat
}

func TestValueYearSingleInstrument(t *testing.T) {
	cat := singleInstrumentCatalog(t, "28.27")
	start := decimal.RequireFromString("100000.00")

	out, err := ValueYear(cat, Allocation{"fund": 100}, 2021, start)
	require.NoError(t, err)
	require.Equal(t, "128270.00", out.ValueEnd.StringFixed(2))
	require.Equal(t, "28.27", out.ReturnPct.StringFixed(2))
	require.Len(t, out.Breakdown, 1)
	require.Equal(t, "100000.00", out.Breakdown[0].Allocated.StringFixed(2))
	require.Equal(t, "28270.00", out.Breakdown[0].Contribution.StringFixed(2))
}

func TestValueYearMixedAllocation(t *testing.T) {
	cat := DefaultCatalog()
	start := decimal.RequireFromString("100000.00")

	out, err := ValueYear(cat, Allocation{"equities": 60, "bonds": 30, "cash": 10}, 2021, start)
	require.NoError(t, err)

	// 60000*22.35% + 30000*(-1.5%) + 10000*0.1% = 13410 - 450 + 10
	require.Equal(t, "112970.00", out.ValueEnd.StringFixed(2))
	require.Equal(t, "12.97", out.ReturnPct.StringFixed(2))
	require.Len(t, out.Breakdown, 3)
}

func TestValueYearSkipsZeroWeights(t *testing.T) {
	cat := DefaultCatalog()
	start := decimal.RequireFromString("50000.00")

	out, err := ValueYear(cat, Allocation{"equities": 100, "bonds": 0, "reits": 0}, 2023, start)
	require.NoError(t, err)
	require.Len(t, out.Breakdown, 1)
	require.Equal(t, "equities", out.Breakdown[0].InstrumentID)
}

// The ending value comes from the unrounded contribution sum, so the
// rounded per-instrument contributions may disagree with it by a cent.
func TestValueYearBreakdownRoundsIndependently(t *testing.T) {
	cat, err := NewCatalog(
		"test-pair",
		[]int{2021},
		[]Instrument{
			{ID: "a", Name: "A", Type: "Equity"},
			{ID: "b", Name: "B", Type: "Equity"},
		},
		map[int]map[string]decimal.Decimal{
			2021: {"a": pct("0.025"), "b": pct("0.025")},
		},
		nil,
	)
	require.NoError(t, err)

	start := decimal.RequireFromString("1000.00")
	out, err := ValueYear(cat, Allocation{"a": 50, "b": 50}, 2021, start)
	require.NoError(t, err)

	// Each contribution is exactly 0.125 and rounds half away to 0.13,
	// but the total is computed from 0.25 unrounded.
	require.Equal(t, "0.13", out.Breakdown[0].Contribution.StringFixed(2))
	require.Equal(t, "0.13", out.Breakdown[1].Contribution.StringFixed(2))
	require.Equal(t, "1000.25", out.ValueEnd.StringFixed(2))

	breakdownSum := out.Breakdown[0].Contribution.Add(out.Breakdown[1].Contribution)
	require.Equal(t, "0.26", breakdownSum.StringFixed(2))
	require.False(t, breakdownSum.Equal(out.ValueEnd.Sub(start)))
}

func TestValueYearUnknownYear(t *testing.T) {
	cat := DefaultCatalog()
	_, err := ValueYear(cat, Allocation{"cash": 100}, 1999, decimal.RequireFromString("100000.00"))
	require.ErrorIs(t, err, ErrUnknownYear)
}

func TestOptimalPathDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	steps, err := OptimalPath(cat, decimal.RequireFromString("100000.00"))
	require.NoError(t, err)
	require.Len(t, steps, 4)

	want := []struct {
		year  int
		inst  string
		value string
	}{
		{2021, "reits", "141300.00"},
		{2022, "commodities", "164331.90"},
		{2023, "equities", "204461.75"},
		{2024, "equities", "243718.41"},
	}
	for i, w := range want {
		require.Equal(t, w.year, steps[i].Year)
		require.Equal(t, w.inst, steps[i].InstrumentID)
		require.Equal(t, w.value, steps[i].PortfolioValue.StringFixed(2))
	}
}

func TestOptimalPathTieBreaksOnCatalogOrder(t *testing.T) {
	cat, err := NewCatalog(
		"test-tie",
		[]int{2021},
		[]Instrument{
			{ID: "first", Name: "First", Type: "Equity"},
			{ID: "second", Name: "Second", Type: "Equity"},
		},
		map[int]map[string]decimal.Decimal{
			2021: {"first": pct("10.0"), "second": pct("10.0")},
		},
		nil,
	)
	require.NoError(t, err)

	steps, err := OptimalPath(cat, decimal.RequireFromString("100000.00"))
	require.NoError(t, err)
	require.Equal(t, "first", steps[0].InstrumentID)
}

func TestCompoundReturns(t *testing.T) {
	require.Equal(t, "0.00", CompoundReturns(nil).StringFixed(2))
	require.Equal(t, "5.00", CompoundReturns([]decimal.Decimal{pct("5")}).StringFixed(2))

	// 1.10 * 0.90 = 0.99
	got := CompoundReturns([]decimal.Decimal{pct("10"), pct("-10")})
	require.Equal(t, "-1.00", got.StringFixed(2))
}

// Chaining four single-year valuations must land on the same cumulative
// return as compounding the four realized yearly returns.
func TestCompoundReturnsMatchesChainedValuations(t *testing.T) {
	cat := DefaultCatalog()
	initial := decimal.RequireFromString("100000.00")
	alloc := Allocation{"equities": 100}

	value := initial
	realized := make([]decimal.Decimal, 0, len(cat.Years))
	for _, year := range cat.Years {
		out, err := ValueYear(cat, alloc, year, value)
		require.NoError(t, err)
		value = out.ValueEnd
		realized = append(realized, out.ReturnPct)
	}

	compounded := CompoundReturns(realized)
	chained := CumulativeReturn(initial, value)
	require.True(t, compounded.Equal(chained),
		"compounded %s%% vs chained %s%% (final value %s)", compounded, chained, value)
}

func TestCumulativeReturn(t *testing.T) {
	initial := decimal.RequireFromString("100000.00")
	require.Equal(t, "28.27", CumulativeReturn(initial, decimal.RequireFromString("128270.00")).StringFixed(2))
	require.Equal(t, "-10.00", CumulativeReturn(initial, decimal.RequireFromString("90000.00")).StringFixed(2))
	require.Equal(t, "0.00", CumulativeReturn(decimal.Zero, decimal.RequireFromString("50.00")).StringFixed(2))
}
