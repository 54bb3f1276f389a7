package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"odyssey/internal/game"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type gamesPayload struct {
	Games []game.Game `json:"games"`
}

type leaderboardPayload struct {
	Leaderboard []game.LeaderboardEntry `json:"leaderboard"`
}

type snapshotsPayload struct {
	Snapshots []game.PortfolioSnapshot `json:"snapshots"`
}

type allocationsPayload struct {
	Allocations []game.AllocationRecord `json:"allocations"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func renderGamesList(raw map[string]any) error {
	payload, err := decodeInto[gamesPayload](raw)
	if err != nil {
		return err
	}
	if len(payload.Games) == 0 {
		printInfo("No games available.")
		return nil
	}
	accent.Println("GAMES")
	fmt.Printf("%-36s  %-24s  %-10s  %-8s  %s\n", "ID", "NAME", "STATUS", "PLAYERS", "CAPITAL")
	for _, g := range payload.Games {
		players := fmt.Sprintf("%d", g.PlayerCount)
		if g.MaxPlayers != nil {
			players = fmt.Sprintf("%d/%d", g.PlayerCount, *g.MaxPlayers)
		}
		fmt.Printf("%-36s  %-24s  %-10s  %-8s  %s\n",
			g.ID, truncate(g.Name, 24), g.Status, players, g.InitialCapital.StringFixed(2))
	}
	return nil
}

func renderGameCreated(raw map[string]any) error {
	g, err := decodeInto[game.Game](raw)
	if err != nil {
		return err
	}
	printSuccess("Game created.")
	fmt.Printf("ID:        %s\n", g.ID)
	fmt.Printf("Join code: %s\n", accent.Sprint(g.JoinCode))
	fmt.Printf("Variant:   %s\n", g.Variant)
	fmt.Printf("Capital:   %s\n", g.InitialCapital.StringFixed(2))
	return nil
}

func renderGameDetail(raw map[string]any) error {
	detail, err := decodeInto[game.GameDetail](raw)
	if err != nil {
		return err
	}
	accent.Println(detail.Name)
	fmt.Printf("ID:      %s\n", detail.ID)
	fmt.Printf("Status:  %s\n", detail.Status)
	fmt.Printf("Players: %d\n", detail.PlayerCount)
	fmt.Printf("Capital: %s\n", detail.InitialCapital.StringFixed(2))
	if detail.JoinCode != "" {
		fmt.Printf("Code:    %s\n", detail.JoinCode)
	}
	if detail.Deadline != nil {
		fmt.Printf("Ends:    %s\n", detail.Deadline.Format("2006-01-02 15:04 MST"))
	}
	if p := detail.PlayerProgress; p != nil {
		fmt.Println()
		if p.Status == "completed" {
			printSuccess("You have completed this game.")
		} else {
			fmt.Printf("Your year: %d\n", p.CurrentYear)
		}
	}
	return nil
}

func renderPlayState(raw map[string]any) error {
	state, err := decodeInto[game.PlayState](raw)
	if err != nil {
		return err
	}
	accent.Printf("%s — year %d\n", state.GameName, state.CurrentYear)
	fmt.Printf("Portfolio: %s (%s)\n", state.PortfolioValue.StringFixed(2), colorizePercent(state.TotalReturnPct))
	if state.PlayerStatus == "completed" {
		printSuccess("All years completed. Run `ody results` to see how you did.")
		return nil
	}
	if state.AllocationSubmitted {
		printInfo("Allocation for this year already submitted.")
	}
	if state.RoundDeadline != nil {
		printWarn("Round deadline: " + state.RoundDeadline.Format("2006-01-02 15:04 MST"))
	}
	if state.Scenario.Title != "" {
		fmt.Println()
		warn.Println(state.Scenario.Title)
		fmt.Println(state.Scenario.Description)
	}
	return nil
}

func renderYearResult(raw map[string]any) error {
	result, err := decodeInto[game.YearResult](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Year %d locked in.", result.Year))
	fmt.Printf("%-14s  %10s  %8s  %12s\n", "INSTRUMENT", "ALLOCATED", "RETURN", "CONTRIBUTION")
	for _, item := range result.Breakdown {
		fmt.Printf("%-14s  %10s  %7s%%  %12s\n",
			item.Name, item.Allocated.StringFixed(2), item.ReturnPct.String(), item.Contribution.StringFixed(2))
	}
	fmt.Printf("\nPortfolio: %s -> %s (%s)\n",
		result.PortfolioStart.StringFixed(2), result.PortfolioEnd.StringFixed(2), colorizePercent(result.ReturnPct))
	if result.NextYear != nil {
		printInfo(fmt.Sprintf("On to year %d.", *result.NextYear))
	} else {
		printSuccess("That was the final year. Run `ody results` once the dust settles.")
	}
	return nil
}

func renderHistory(rawSnapshots, rawAllocations map[string]any) error {
	snaps, err := decodeInto[snapshotsPayload](rawSnapshots)
	if err != nil {
		return err
	}
	allocs, err := decodeInto[allocationsPayload](rawAllocations)
	if err != nil {
		return err
	}
	if len(snaps.Snapshots) == 0 {
		printInfo("No completed years yet.")
		return nil
	}
	weightsByYear := map[int]game.Allocation{}
	for _, a := range allocs.Allocations {
		weightsByYear[a.Year] = a.Weights
	}
	accent.Println("HISTORY")
	for _, snap := range snaps.Snapshots {
		fmt.Printf("%d: %s -> %s (%s)\n",
			snap.Year, snap.ValueStart.StringFixed(2), snap.ValueEnd.StringFixed(2), colorizePercent(snap.ReturnPct))
		if weights, ok := weightsByYear[snap.Year]; ok {
			fmt.Printf("    %s\n", formatWeights(weights))
		}
	}
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	payload, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	if len(payload.Leaderboard) == 0 {
		printInfo("Nobody on the board yet.")
		return nil
	}
	accent.Println("LEADERBOARD")
	fmt.Printf("%4s  %-24s  %14s  %9s  %s\n", "RANK", "PLAYER", "PORTFOLIO", "RETURN", "PROGRESS")
	for _, e := range payload.Leaderboard {
		progress := fmt.Sprintf("year %d", e.CurrentYear)
		if e.Status == "completed" {
			progress = "finished"
		}
		fmt.Printf("%4d  %-24s  %14s  %9s  %s\n",
			e.Rank, truncate(e.DisplayName, 24), e.PortfolioValue.StringFixed(2), colorizePercent(e.TotalReturnPct), progress)
	}
	return nil
}

func renderResults(raw map[string]any) error {
	results, err := decodeInto[game.FinalResults](raw)
	if err != nil {
		return err
	}
	accent.Println("FINAL RESULTS")
	pr := results.PlayerResult
	if pr.Rank > 0 {
		fmt.Printf("You finished #%d of %d\n", pr.Rank, pr.TotalPlayers)
	}
	fmt.Printf("Final value: %s (%s)\n", pr.FinalValue.StringFixed(2), colorizePercent(pr.TotalReturnPct))

	if len(results.OptimalPath) > 0 {
		fmt.Println()
		warn.Println("PERFECT HINDSIGHT")
		for _, step := range results.OptimalPath {
			fmt.Printf("%d: all-in %s (%s%%) -> %s\n",
				step.Year, step.InstrumentName, step.ReturnPct.String(), step.PortfolioValue.StringFixed(2))
		}
	}

	if len(results.FundBenchmarks) > 0 {
		fmt.Println()
		warn.Println("HOW THE PROS DID")
		fmt.Printf("%-32s  %-7s  %9s  %14s\n", "FUND", "TYPE", "RETURN", "FINAL VALUE")
		for _, fb := range results.FundBenchmarks {
			fmt.Printf("%-32s  %-7s  %9s  %14s\n",
				truncate(fb.FundName, 32), fb.FundType, colorizePercent(fb.CumulativeReturnPct), fb.FinalValue.StringFixed(2))
		}
	}

	if len(results.Leaderboard) > 0 {
		fmt.Println()
		return renderLeaderboard(map[string]any{"leaderboard": rawLeaderboard(results.Leaderboard)})
	}
	return nil
}

// rawLeaderboard round-trips typed entries back through the generic
// renderer input.
func rawLeaderboard(entries []game.LeaderboardEntry) []any {
	raw, _ := json.Marshal(entries)
	var out []any
	_ = json.Unmarshal(raw, &out)
	return out
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizePercent(v decimal.Decimal) string {
	s := v.StringFixed(2) + "%"
	switch {
	case v.IsPositive():
		return success.Sprint("+" + s)
	case v.IsNegative():
		return danger.Sprint(s)
	default:
		return neutral.Sprint(s)
	}
}

func formatWeights(weights game.Allocation) string {
	parts := make([]string, 0, len(weights))
	for _, inst := range game.DefaultCatalog().Instruments {
		if w, ok := weights[inst.ID]; ok && w > 0 {
			parts = append(parts, fmt.Sprintf("%s %d%%", inst.Name, w))
		}
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
