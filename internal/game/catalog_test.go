package game

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	if cat.FirstYear() != 2021 || cat.LastYear() != 2024 {
		t.Fatalf("unexpected year span %d-%d", cat.FirstYear(), cat.LastYear())
	}
	if cat.CompletedMarker() != 2025 {
		t.Fatalf("completed marker = %d", cat.CompletedMarker())
	}
	if len(cat.Instruments) != 5 {
		t.Fatalf("expected 5 instruments, got %d", len(cat.Instruments))
	}
	for _, year := range cat.Years {
		for _, inst := range cat.Instruments {
			if _, err := cat.Return(year, inst.ID); err != nil {
				t.Fatalf("missing return for %s/%d: %v", inst.ID, year, err)
			}
		}
	}
}

func TestCatalogHasYear(t *testing.T) {
	cat := DefaultCatalog()
	if !cat.HasYear(2021) || !cat.HasYear(2024) {
		t.Fatalf("expected playable years in range")
	}
	if cat.HasYear(2020) || cat.HasYear(2025) {
		t.Fatalf("expected years outside range to be rejected")
	}
}

func TestBriefingForClampsToLastYear(t *testing.T) {
	cat := DefaultCatalog()
	b := cat.BriefingFor(cat.CompletedMarker())
	if b.Year != cat.LastYear() {
		t.Fatalf("briefing year = %d, want %d", b.Year, cat.LastYear())
	}
	if b.Title == "" {
		t.Fatalf("expected a briefing title")
	}
}

func TestNewCatalogRejectsGapYears(t *testing.T) {
	_, err := NewCatalog("bad", []int{2021, 2023},
		[]Instrument{{ID: "x", Name: "X", Type: "Equity"}},
		map[int]map[string]decimal.Decimal{
			2021: {"x": pct("1")},
			2023: {"x": pct("1")},
		}, nil)
	if err == nil {
		t.Fatalf("expected non-consecutive years to fail")
	}
}

func TestNewCatalogRejectsIncompleteReturnTable(t *testing.T) {
	_, err := NewCatalog("bad", []int{2021},
		[]Instrument{
			{ID: "x", Name: "X", Type: "Equity"},
			{ID: "y", Name: "Y", Type: "Equity"},
		},
		map[int]map[string]decimal.Decimal{
			2021: {"x": pct("1")},
		}, nil)
	if err == nil {
		t.Fatalf("expected missing instrument return to fail")
	}
}

func TestCatalogSetResolve(t *testing.T) {
	set := DefaultCatalogSet()
	if _, err := set.Resolve("asset-classes"); err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if _, err := set.Resolve("bogus"); err == nil {
		t.Fatalf("expected unknown variant to fail")
	}
}
