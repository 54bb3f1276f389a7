package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Game struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	JoinCode       string             `json:"join_code"`
	Variant        string             `json:"variant"`
	Status         string             `json:"status"`
	InitialCapital decimal.Decimal    `json:"initial_capital"`
	Deadline       *time.Time         `json:"deadline,omitempty"`
	RoundDeadlines map[int]time.Time  `json:"round_deadlines,omitempty"`
	MaxPlayers     *int               `json:"max_players,omitempty"`
	CreatedBy      string             `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	PlayerCount    int                `json:"player_count"`
}

type PlayerProgress struct {
	CurrentYear int        `json:"current_year"`
	Status      string     `json:"status"`
	Hidden      bool       `json:"hidden"`
	JoinedAt    time.Time  `json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type GameDetail struct {
	Game
	PlayerProgress *PlayerProgress `json:"player_progress,omitempty"`
}

type PlayState struct {
	GameID              string          `json:"game_id"`
	GameName            string          `json:"game_name"`
	CurrentYear         int             `json:"current_year"`
	PortfolioValue      decimal.Decimal `json:"portfolio_value"`
	InitialCapital      decimal.Decimal `json:"initial_capital"`
	TotalReturnPct      decimal.Decimal `json:"total_return_pct"`
	Scenario            Briefing        `json:"scenario"`
	CompletedYears      []int           `json:"completed_years"`
	AllocationSubmitted bool            `json:"allocation_submitted"`
	PlayerStatus        string          `json:"player_status"`
	RoundDeadline       *time.Time      `json:"round_deadline,omitempty"`
}

type YearResult struct {
	Year           int             `json:"year"`
	Allocation     Allocation      `json:"allocation"`
	PortfolioStart decimal.Decimal `json:"portfolio_start"`
	PortfolioEnd   decimal.Decimal `json:"portfolio_end"`
	ReturnPct      decimal.Decimal `json:"return_pct"`
	Breakdown      []BreakdownItem `json:"breakdown"`
	NextYear       *int            `json:"next_year,omitempty"`
	PlayerStatus   string          `json:"player_status"`
}

type AllocationRecord struct {
	ID          string     `json:"id"`
	GameID      string     `json:"game_id"`
	UserID      string     `json:"user_id"`
	Year        int        `json:"year"`
	Weights     Allocation `json:"weights"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

type PortfolioSnapshot struct {
	Year       int             `json:"year"`
	ValueStart decimal.Decimal `json:"value_start"`
	ValueEnd   decimal.Decimal `json:"value_end"`
	ReturnPct  decimal.Decimal `json:"return_pct"`
}

type LeaderboardEntry struct {
	Rank           int             `json:"rank"`
	UserID         string          `json:"user_id"`
	DisplayName    string          `json:"display_name"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`
	CurrentYear    int             `json:"current_year"`
	Status         string          `json:"status"`
}

type PlayerFinalResult struct {
	FinalValue     decimal.Decimal     `json:"final_value"`
	TotalReturnPct decimal.Decimal     `json:"total_return_pct"`
	Rank           int                 `json:"rank"`
	TotalPlayers   int                 `json:"total_players"`
	Snapshots      []PortfolioSnapshot `json:"snapshots"`
	Allocations    []AllocationRecord  `json:"allocations"`
}

type FundYear struct {
	Year           int             `json:"year"`
	ReturnPct      decimal.Decimal `json:"return_pct"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio"`
	CashPct        decimal.Decimal `json:"cash_pct"`
	FixedIncomePct decimal.Decimal `json:"fixed_income_pct"`
	EquityPct      decimal.Decimal `json:"equity_pct"`
}

type FundBenchmark struct {
	FundID              int             `json:"fund_id"`
	FundName            string          `json:"fund_name"`
	FundType            string          `json:"fund_type"`
	Years               []FundYear      `json:"years"`
	CumulativeReturnPct decimal.Decimal `json:"cumulative_return_pct"`
	FinalValue          decimal.Decimal `json:"final_value"`
}

type FinalResults struct {
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	PlayerResult   PlayerFinalResult  `json:"player_result"`
	OptimalPath    []OptimalYearStep  `json:"optimal_path"`
	FundBenchmarks []FundBenchmark    `json:"fund_benchmarks"`
}

type CreateGameInput struct {
	AdminID        string
	Name           string
	Variant        string
	InitialCapital decimal.Decimal
	Deadline       *time.Time
	RoundDeadlines map[int]time.Time
	MaxPlayers     *int
	JoinCode       string
}

type UpdateGameInput struct {
	Name           *string
	Deadline       *time.Time
	ClearDeadline  bool
	RoundDeadlines map[int]time.Time
	MaxPlayers     *int
}

type JoinGameInput struct {
	GameID   string
	UserID   string
	JoinCode string
	Hidden   bool
}

type SubmitAllocationInput struct {
	GameID     string
	UserID     string
	Year       int
	Allocation Allocation
}
