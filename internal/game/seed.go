package game

import (
	"context"
)

type seedFundYear struct {
	year      int
	cash      string
	fixed     string
	equity    string
	returnPct string
	sharpe    string
}

type seedFund struct {
	id       int
	name     string
	fundType string
	years    []seedFundYear
}

// Fund type classification follows equity allocation: 0% equity is Bond,
// under 50% is Mixed, 50% and above is Equity.
var seedFunds = []seedFund{
	{965, "DELOS Strategic Investments", "Mixed", []seedFundYear{
		{2021, "16.00", "32.70", "51.30", "10.8500", "0.8100"},
		{2022, "21.30", "26.60", "52.10", "-8.8400", "0.0200"},
		{2023, "18.90", "37.70", "43.40", "13.3100", "0.5200"},
		{2024, "11.00", "39.10", "49.90", "6.2700", "0.3700"},
	}},
	{962, "DELOS Short & Medium-Term", "Bond", []seedFundYear{
		{2021, "21.90", "78.10", "0.00", "-0.0400", "-0.0600"},
		{2022, "21.40", "78.60", "0.00", "-3.9200", "-0.3800"},
		{2023, "16.50", "83.50", "0.00", "4.3100", "0.0300"},
		{2024, "25.90", "74.10", "0.00", "3.3600", "0.5900"},
	}},
	{970, "DELOS Greek Growth", "Bond", []seedFundYear{
		{2021, "15.40", "84.60", "0.00", "0.9200", "0.6900"},
		{2022, "10.10", "89.90", "0.00", "-9.6200", "-0.3200"},
		{2023, "8.20", "91.80", "0.00", "6.4900", "-0.2200"},
		{2024, "12.20", "87.80", "0.00", "4.6900", "0.0600"},
	}},
	{953, "DELOS Blue Chips", "Equity", []seedFundYear{
		{2021, "4.60", "2.40", "93.00", "13.4700", "0.6000"},
		{2022, "2.00", "1.00", "97.00", "4.2700", "0.0700"},
		{2023, "3.20", "0.70", "96.10", "38.3400", "1.0600"},
		{2024, "1.70", "0.00", "98.30", "14.2500", "1.1500"},
	}},
	{916, "DELOS Small Cap", "Equity", []seedFundYear{
		{2021, "1.50", "0.00", "98.50", "12.3500", "0.5900"},
		{2022, "1.70", "0.00", "98.30", "-3.2400", "0.0200"},
		{2023, "1.30", "0.00", "98.70", "38.3900", "0.8900"},
		{2024, "1.50", "0.00", "98.50", "8.4900", "0.8700"},
	}},
	{951, "DELOS Mixed", "Mixed", []seedFundYear{
		{2021, "6.90", "43.30", "49.80", "6.2400", "0.9100"},
		{2022, "16.70", "36.30", "47.00", "-3.5300", "0.0500"},
		{2023, "12.70", "42.80", "44.50", "22.4000", "0.7700"},
		{2024, "2.70", "47.40", "49.90", "7.4300", "0.8500"},
	}},
	{750, "DELOS Synthesis Best Blue", "Bond", []seedFundYear{
		{2021, "18.50", "81.50", "0.00", "-0.8800", "0.1600"},
		{2022, "12.30", "87.70", "0.00", "-4.9600", "-0.9600"},
		{2023, "10.30", "89.70", "0.00", "3.6900", "-0.3900"},
		{2024, "1.90", "98.10", "0.00", "3.1400", "0.2600"},
	}},
	{752, "DELOS Synthesis Best Yellow", "Mixed", []seedFundYear{
		{2021, "7.60", "45.90", "46.50", "10.1600", "1.3400"},
		{2022, "5.00", "49.00", "46.00", "-8.9400", "0.1300"},
		{2023, "17.10", "38.40", "44.50", "7.7500", "0.4200"},
		{2024, "12.90", "40.20", "46.90", "12.0500", "0.4900"},
	}},
	{753, "DELOS Synthesis Best Red", "Equity", []seedFundYear{
		{2021, "4.70", "3.70", "91.50", "22.0900", "1.5700"},
		{2022, "5.60", "2.30", "92.10", "-11.9900", "0.3000"},
		{2023, "8.50", "1.20", "90.30", "11.2100", "0.5600"},
		{2024, "7.70", "1.40", "90.90", "21.2300", "0.5200"},
	}},
	{782, "DELOS Fixed Income Plus", "Bond", []seedFundYear{
		{2021, "16.00", "84.00", "0.00", "-2.8000", "0.2000"},
		{2022, "13.20", "86.80", "0.00", "-17.1300", "-0.9200"},
		{2023, "14.60", "85.40", "0.00", "8.4000", "-0.6100"},
		{2024, "3.80", "96.20", "0.00", "1.4500", "-0.4000"},
	}},
	{924, "NBG Global Equity", "Equity", []seedFundYear{
		{2021, "1.90", "0.00", "98.10", "28.2700", "1.5600"},
		{2022, "3.30", "0.00", "96.70", "-11.7100", "0.3400"},
		{2023, "2.90", "0.00", "97.10", "16.5300", "0.9300"},
		{2024, "2.20", "0.00", "97.80", "16.6600", "0.6000"},
	}},
	{940, "NBG European Allstars", "Equity", []seedFundYear{
		{2021, "9.00", "0.00", "91.00", "19.6500", "0.7100"},
		{2022, "6.30", "0.00", "93.70", "-10.7200", "0.0100"},
		{2023, "6.30", "0.00", "93.70", "16.1500", "0.5700"},
		{2024, "6.30", "0.00", "93.70", "7.1000", "0.2700"},
	}},
}

// SeedDefaults loads the fund benchmark table on first boot. Idempotent:
// an already-populated table is left untouched.
func (s *Service) SeedDefaults(ctx context.Context) error {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(1) FROM fund_benchmarks`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	inserted := 0
	for _, fund := range seedFunds {
		for _, y := range fund.years {
			_, err := s.db.Exec(ctx, `
				INSERT INTO fund_benchmarks (fund_id, fund_name, fund_type, year, return_pct, sharpe_ratio, cash_pct, fixed_income_pct, equity_pct)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (fund_id, year) DO NOTHING
			`, fund.id, fund.name, fund.fundType, y.year, y.returnPct, y.sharpe, y.cash, y.fixed, y.equity)
			if err != nil {
				return err
			}
			inserted++
		}
	}
	s.log.Info("seeded fund benchmarks", "rows", inserted)
	return nil
}

// SeedDevUsers provisions fixed local accounts for running without an auth
// provider. Only invoked when login is disabled in config.
func (s *Service) SeedDevUsers(ctx context.Context) error {
	devUsers := []struct {
		id, email, name, role string
	}{
		{"00000000-0000-0000-0000-000000000001", "admin@dev.local", "Admin User", "admin"},
		{"00000000-0000-0000-0000-000000000002", "player1@dev.local", "Alice Investor", "player"},
		{"00000000-0000-0000-0000-000000000003", "player2@dev.local", "Bob Trader", "player"},
		{"00000000-0000-0000-0000-000000000004", "player3@dev.local", "Carol Analyst", "player"},
		{"00000000-0000-0000-0000-000000000005", "player4@dev.local", "Dave Banker", "player"},
		{"00000000-0000-0000-0000-000000000006", "player5@dev.local", "Eve Advisor", "player"},
	}
	for _, u := range devUsers {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO users (id, email, display_name, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, u.id, u.email, u.name, u.role); err != nil {
			return err
		}
	}
	return nil
}
