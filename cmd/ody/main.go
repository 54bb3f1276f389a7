package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	cl "odyssey/internal/cli"
	"odyssey/internal/config"
	"odyssey/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "ody",
		Short:        "Odyssey investment game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newGamesCmd(&apiBase),
		newJoinCmd(&apiBase),
		newPlayCmd(&apiBase),
		newAllocateCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newResultsCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return sess, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			displayName, err := promptOptional("Display name (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, email, password, displayName)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `ody login`.")
				return nil
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login and store a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	games := &cobra.Command{
		Use:     "games",
		Short:   "Browse and manage games",
		Aliases: []string{"game"},
	}
	games.AddCommand(
		newGamesListCmd(apiBase),
		newGamesShowCmd(apiBase),
		newGamesCreateCmd(apiBase),
		newGamesCloseCmd(apiBase),
		newGamesRenameCmd(apiBase),
	)
	return games
}

func newGamesListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List games open for joining",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListGames(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			return renderGamesList(out)
		},
	}
}

func newGamesShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show GAME_ID",
		Short: "Show one game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).GetGame(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderGameDetail(out)
		},
	}
}

func newGamesCreateCmd(apiBase *string) *cobra.Command {
	var (
		variant    string
		capital    string
		maxPlayers int
		deadline   string
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a game (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			body := map[string]any{"name": args[0]}
			if variant != "" {
				body["variant"] = variant
			}
			if capital != "" {
				body["initial_capital"] = capital
			}
			if maxPlayers > 0 {
				body["max_players"] = maxPlayers
			}
			if deadline != "" {
				ts, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return fmt.Errorf("deadline must be RFC3339, e.g. 2026-10-01T18:00:00Z: %w", err)
				}
				body["deadline"] = ts
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateGame(ctx, sess.AccessToken, body)
			if err != nil {
				return err
			}
			return renderGameCreated(out)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "catalog variant (default asset-classes)")
	cmd.Flags().StringVar(&capital, "capital", "", "initial capital, e.g. 100000.00")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "player cap (0 = unlimited)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "overall deadline in RFC3339")
	return cmd
}

func newGamesCloseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "close GAME_ID",
		Short: "Stop a game from accepting players (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).CloseGame(ctx, sess.AccessToken, args[0]); err != nil {
				return err
			}
			printSuccess("Game closed to new players.")
			return nil
		},
	}
}

func newGamesRenameCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename GAME_ID NEW_NAME",
		Short: "Rename a game (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).UpdateGame(ctx, sess.AccessToken, args[0], map[string]any{"name": args[1]}); err != nil {
				return err
			}
			printSuccess("Game renamed.")
			return nil
		},
	}
}

func newJoinCmd(apiBase *string) *cobra.Command {
	var (
		code   string
		hidden bool
	)
	cmd := &cobra.Command{
		Use:   "join GAME_ID",
		Short: "Join a game with its join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			if code == "" {
				code, err = promptRequired("Join code")
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).JoinGame(ctx, sess.AccessToken, args[0], code, hidden)
			if err != nil {
				return err
			}
			printSuccess("Joined.")
			return renderGameDetail(out)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "join code")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "hide yourself from the leaderboard")
	return cmd
}

func newPlayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play GAME_ID",
		Short: "Show your current year and scenario briefing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).PlayState(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderPlayState(out)
		},
	}
}

func newAllocateCmd(apiBase *string) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "allocate GAME_ID WEIGHTS",
		Short: "Submit this year's allocation, e.g. equities=60,bonds=30,cash=10",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			allocation, err := parseWeights(args[1])
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if year == 0 {
				state, err := client.PlayState(ctx, sess.AccessToken, args[0])
				if err != nil {
					return fmt.Errorf("could not determine current year, pass --year: %w", err)
				}
				if y, ok := state["current_year"].(float64); ok {
					year = int(y)
				}
			}

			out, err := client.SubmitAllocation(ctx, sess.AccessToken, args[0], year, allocation)
			if err != nil {
				var apiErr *cl.APIError
				if errors.As(err, &apiErr) {
					return err
				}
				// Network trouble: keep the submission locally and let
				// `ody sync` replay it later.
				queueErr := syncq.Push(syncq.Command{
					Method: "POST",
					Path:   "/v1/games/" + url.PathEscape(args[0]) + "/allocations",
					Body: map[string]any{
						"year":       year,
						"allocation": allocation,
					},
				})
				if queueErr != nil {
					return fmt.Errorf("submit failed (%v) and queueing failed: %w", err, queueErr)
				}
				printWarn(fmt.Sprintf("API unreachable (%v). Submission queued, run `ody sync` when back online.", err))
				return nil
			}
			return renderYearResult(out)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "round year (defaults to your current year)")
	return cmd
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history GAME_ID",
		Short: "Show your submitted allocations and yearly snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			snapshots, err := client.Snapshots(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			allocations, err := client.Allocations(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderHistory(snapshots, allocations)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "leaderboard GAME_ID",
		Short:   "Show the game leaderboard",
		Aliases: []string{"lb"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
}

func newResultsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "results GAME_ID",
		Short: "Show final results, the optimal path and fund benchmarks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Results(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderResults(out)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.Command, 0, len(queue))
			replayed, applied, dropped := 0, 0, 0
			for _, q := range queue {
				_, err := client.Do(ctx, q.Method, q.Path, sess.AccessToken, q.Body)
				if err == nil {
					replayed++
					continue
				}
				code := ""
				var apiErr *cl.APIError
				if errors.As(err, &apiErr) {
					code = apiErr.Code
				}
				switch syncq.ReplayOutcome(code) {
				case syncq.OutcomeAlreadyApplied:
					applied++
				case syncq.OutcomeDrop:
					dropped++
					printError(fmt.Sprintf("Dropping %s %s, the server will never accept it: %v", q.Method, q.Path, err))
				default:
					remaining = append(remaining, q)
					printWarn(fmt.Sprintf("Sync failed for %s %s, will retry: %v", q.Method, q.Path, err))
				}
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d already_applied=%d dropped=%d remaining=%d",
				replayed, applied, dropped, len(remaining)))
			return nil
		},
	}
}

// parseWeights turns "equities=60,bonds=30,cash=10" into an allocation map.
func parseWeights(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("bad weight %q, expected INSTRUMENT=PERCENT", part)
		}
		weight, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("bad weight %q: %w", part, err)
		}
		out[strings.ToLower(strings.TrimSpace(key))] = weight
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	return out, nil
}
