package game

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Instrument is one investable entry of a catalog. The ID is the key used
// in allocation payloads and in the stored weights.
type Instrument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Briefing is the scenario text shown to players before they allocate for
// a year.
type Briefing struct {
	Year        int    `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Catalog bundles the playable years, the instrument set and the historical
// return table for one game variant. It is configuration, loaded once and
// passed explicitly into the valuation engine and validators, so different
// variants can coexist in one process.
type Catalog struct {
	Variant     string
	Years       []int
	Instruments []Instrument

	returns   map[int]map[string]decimal.Decimal
	briefings map[int]Briefing
}

func NewCatalog(variant string, years []int, instruments []Instrument, returns map[int]map[string]decimal.Decimal, briefings map[int]Briefing) (*Catalog, error) {
	if len(years) == 0 {
		return nil, fmt.Errorf("catalog %s: no years defined", variant)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("catalog %s: no instruments defined", variant)
	}
	for i := 1; i < len(years); i++ {
		if years[i] != years[i-1]+1 {
			return nil, fmt.Errorf("catalog %s: years must be consecutive, got %d after %d", variant, years[i], years[i-1])
		}
	}
	for _, y := range years {
		row, ok := returns[y]
		if !ok {
			return nil, fmt.Errorf("catalog %s: missing return row for year %d", variant, y)
		}
		for _, inst := range instruments {
			if _, ok := row[inst.ID]; !ok {
				return nil, fmt.Errorf("catalog %s: missing return for %s in %d", variant, inst.ID, y)
			}
		}
	}
	return &Catalog{
		Variant:     variant,
		Years:       years,
		Instruments: instruments,
		returns:     returns,
		briefings:   briefings,
	}, nil
}

func (c *Catalog) FirstYear() int { return c.Years[0] }
func (c *Catalog) LastYear() int  { return c.Years[len(c.Years)-1] }

// CompletedMarker is the stored current_year of a player who has finished
// every round. It only exists to keep the snapshot chain invariant in the
// database; code branches on player status, never on this value.
func (c *Catalog) CompletedMarker() int { return c.LastYear() + 1 }

func (c *Catalog) HasYear(year int) bool {
	return year >= c.FirstYear() && year <= c.LastYear()
}

// Return looks up the historical return for one instrument in one year.
func (c *Catalog) Return(year int, instrumentID string) (decimal.Decimal, error) {
	row, ok := c.returns[year]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no return table row for year %d", ErrUnknownYear, year)
	}
	ret, ok := row[instrumentID]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no return for instrument %s in year %d", ErrUnknownYear, instrumentID, year)
	}
	return ret, nil
}

func (c *Catalog) InstrumentByID(id string) (Instrument, bool) {
	for _, inst := range c.Instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instrument{}, false
}

// BriefingFor returns the scenario briefing for a year. A completed player
// is shown the last year's briefing.
func (c *Catalog) BriefingFor(year int) Briefing {
	if year > c.LastYear() {
		year = c.LastYear()
	}
	b, ok := c.briefings[year]
	if !ok {
		return Briefing{Year: year}
	}
	return b
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultCatalog is the asset-class variant played over 2021-2024: five
// broad asset classes with realized historical returns.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(
		"asset-classes",
		[]int{2021, 2022, 2023, 2024},
		[]Instrument{
			{ID: "cash", Name: "Cash", Type: "Cash"},
			{ID: "bonds", Name: "Bonds", Type: "Bond"},
			{ID: "equities", Name: "Equities", Type: "Equity"},
			{ID: "commodities", Name: "Commodities", Type: "Commodity"},
			{ID: "reits", Name: "REITs", Type: "RealEstate"},
		},
		map[int]map[string]decimal.Decimal{
			2021: {"cash": pct("0.1"), "bonds": pct("-1.5"), "equities": pct("22.35"), "commodities": pct("40.1"), "reits": pct("41.3")},
			2022: {"cash": pct("0.4"), "bonds": pct("-12.3"), "equities": pct("-17.73"), "commodities": pct("16.3"), "reits": pct("-24.4")},
			2023: {"cash": pct("4.5"), "bonds": pct("5.3"), "equities": pct("24.42"), "commodities": pct("-10.3"), "reits": pct("10.6")},
			2024: {"cash": pct("5.0"), "bonds": pct("-1.7"), "equities": pct("19.2"), "commodities": pct("3.0"), "reits": pct("8.8")},
		},
		map[int]Briefing{
			2021: {
				Year:        2021,
				Title:       "The Year of Strong Recovery",
				Description: "The global economy bounces back from COVID-19. Vaccination programs accelerate, economies reopen, and consumer spending surges. Supply chains struggle to keep up with demand. Energy prices rise. Central banks keep interest rates near zero to support recovery. Real estate markets heat up as remote work reshapes housing demand.",
			},
			2022: {
				Year:        2022,
				Title:       "The Year of Inflation and Tightening",
				Description: "Inflation reaches multi-decade highs across the globe. Central banks respond with aggressive interest rate hikes. The war in Ukraine disrupts energy and food supplies. Bond markets suffer historic losses as yields spike. Technology stocks retreat from pandemic highs. Energy commodities surge on supply fears.",
			},
			2023: {
				Year:        2023,
				Title:       "The Year of Stabilization and Artificial Intelligence",
				Description: "Inflation begins to ease and markets anticipate the end of the rate-hiking cycle. The AI revolution, led by breakthroughs in large language models, drives a tech stock rally. Corporate earnings stabilize. Bond markets begin to recover. Real estate markets cool but remain resilient in key segments.",
			},
			2024: {
				Year:        2024,
				Title:       "The Year of Resilience",
				Description: "The economy proves more resilient than expected. Central banks begin cautious rate cuts. Equity markets continue upward, driven by technology and AI adoption. Bond markets remain volatile with mixed signals on inflation. Commodities stabilize. REITs benefit from the rate-cutting outlook.",
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return cat
}

// CatalogSet resolves a game's variant name to its catalog.
type CatalogSet map[string]*Catalog

func DefaultCatalogSet() CatalogSet {
	def := DefaultCatalog()
	return CatalogSet{def.Variant: def}
}

func (cs CatalogSet) Resolve(variant string) (*Catalog, error) {
	cat, ok := cs[variant]
	if !ok {
		return nil, fmt.Errorf("%w: no catalog registered for variant %q", ErrUnknownVariant, variant)
	}
	return cat, nil
}
