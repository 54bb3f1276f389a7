package game

import (
	"github.com/shopspring/decimal"
)

// moneyPlaces is the rounding applied to every monetary figure and every
// percentage: two decimal places, half away from zero. Engine and tests
// share this through roundMoney/roundPct so the behavior cannot drift.
const moneyPlaces = 2

func roundMoney(v decimal.Decimal) decimal.Decimal { return v.Round(moneyPlaces) }
func roundPct(v decimal.Decimal) decimal.Decimal   { return v.Round(moneyPlaces) }

var hundred = decimal.NewFromInt(100)

// BreakdownItem is the per-instrument slice of a year valuation. Allocated
// and Contribution are rounded for display; the ending value is computed
// from the unrounded contribution sum, so the listed contributions may
// differ from valueEnd-valueStart by cents.
type BreakdownItem struct {
	InstrumentID string          `json:"instrument_id"`
	Name         string          `json:"name"`
	Allocated    decimal.Decimal `json:"allocated"`
	ReturnPct    decimal.Decimal `json:"return_pct"`
	Contribution decimal.Decimal `json:"contribution"`
}

// YearValuation is the deterministic outcome of applying an allocation to
// one year of the return table.
type YearValuation struct {
	ValueEnd  decimal.Decimal
	ReturnPct decimal.Decimal
	Breakdown []BreakdownItem
}

// ValueYear converts a percentage allocation into a monetary outcome for
// one year. Pure: no I/O, no state. Zero-weight instruments contribute
// nothing and are omitted from the breakdown. Fails with ErrUnknownYear if
// the catalog has no return row for the year; that is a configuration
// problem, never user input.
func ValueYear(cat *Catalog, alloc Allocation, year int, valueStart decimal.Decimal) (YearValuation, error) {
	var out YearValuation
	total := decimal.Zero

	for _, inst := range cat.Instruments {
		weight := alloc[inst.ID]
		if weight == 0 {
			continue
		}
		ret, err := cat.Return(year, inst.ID)
		if err != nil {
			return out, err
		}
		allocated := valueStart.Mul(decimal.NewFromInt(int64(weight))).Div(hundred)
		contribution := allocated.Mul(ret).Div(hundred)
		total = total.Add(contribution)

		out.Breakdown = append(out.Breakdown, BreakdownItem{
			InstrumentID: inst.ID,
			Name:         inst.Name,
			Allocated:    roundMoney(allocated),
			ReturnPct:    ret,
			Contribution: roundMoney(contribution),
		})
	}

	out.ValueEnd = roundMoney(valueStart.Add(total))
	out.ReturnPct = roundPct(total.Div(valueStart).Mul(hundred))
	return out, nil
}

// OptimalYearStep is one year of the hindsight-optimal trajectory.
type OptimalYearStep struct {
	Year           int             `json:"year"`
	InstrumentID   string          `json:"instrument_id"`
	InstrumentName string          `json:"instrument_name"`
	ReturnPct      decimal.Decimal `json:"return_pct"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// OptimalPath places 100% of the running value into the single best
// instrument of each year. Ties resolve to the first instrument in catalog
// order with the strictly greatest return. Never influenced by player
// choices.
func OptimalPath(cat *Catalog, initialCapital decimal.Decimal) ([]OptimalYearStep, error) {
	steps := make([]OptimalYearStep, 0, len(cat.Years))
	value := initialCapital

	for _, year := range cat.Years {
		best := cat.Instruments[0]
		bestRet, err := cat.Return(year, best.ID)
		if err != nil {
			return nil, err
		}
		for _, inst := range cat.Instruments[1:] {
			ret, err := cat.Return(year, inst.ID)
			if err != nil {
				return nil, err
			}
			if ret.GreaterThan(bestRet) {
				best = inst
				bestRet = ret
			}
		}
		value = roundMoney(value.Mul(decimal.NewFromInt(1).Add(bestRet.Div(hundred))))
		steps = append(steps, OptimalYearStep{
			Year:           year,
			InstrumentID:   best.ID,
			InstrumentName: best.Name,
			ReturnPct:      bestRet,
			PortfolioValue: value,
		})
	}
	return steps, nil
}

// CompoundReturns folds an ordered sequence of yearly percentage returns
// into one cumulative percentage. Used for player totals and fund
// benchmarks alike so the two stay comparable. Empty input compounds to 0.
func CompoundReturns(yearlyPcts []decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	for _, r := range yearlyPcts {
		factor = factor.Mul(decimal.NewFromInt(1).Add(r.Div(hundred)))
	}
	return roundPct(factor.Sub(decimal.NewFromInt(1)).Mul(hundred))
}

// CumulativeReturn is the total growth from initial capital to a final
// value, as a rounded percentage.
func CumulativeReturn(initialCapital, finalValue decimal.Decimal) decimal.Decimal {
	if !initialCapital.IsPositive() {
		return decimal.Zero
	}
	return roundPct(finalValue.Sub(initialCapital).Div(initialCapital).Mul(hundred))
}
