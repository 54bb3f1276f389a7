package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Service struct {
	db       *pgxpool.Pool
	log      *slog.Logger
	catalogs CatalogSet

	// lockWait bounds how long a submission waits on the player-progress
	// row lock before failing with the retryable ErrTxConflict.
	lockWait time.Duration

	now func() time.Time
}

func NewService(db *pgxpool.Pool, catalogs CatalogSet, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if catalogs == nil {
		catalogs = DefaultCatalogSet()
	}
	return &Service{
		db:       db,
		log:      logger,
		catalogs: catalogs,
		lockWait: 3 * time.Second,
		now:      time.Now,
	}
}

func (s *Service) EnsureUser(ctx context.Context, userID, email, displayName, role string) error {
	if strings.TrimSpace(displayName) == "" {
		displayName = displayNameFromEmail(email)
	}
	if role != "admin" {
		role = "player"
	}
	// Roles only ever escalate here; demotion is a manual operation.
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, display_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET role = CASE WHEN EXCLUDED.role = 'admin' THEN 'admin' ELSE users.role END
	`, userID, strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(displayName), role)
	return err
}

// WithLockTimeout overrides the bound on the submission row-lock wait.
func (s *Service) WithLockTimeout(d time.Duration) *Service {
	if d > 0 {
		s.lockWait = d
	}
	return s
}

func (s *Service) UserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err == pgx.ErrNoRows {
		return "", ErrUnauthorized
	}
	return role, err
}

func (s *Service) CreateGame(ctx context.Context, in CreateGameInput) (Game, error) {
	var out Game
	in.Name = strings.TrimSpace(in.Name)
	if err := validateGameName(in.Name); err != nil {
		return out, err
	}
	if in.Variant == "" {
		in.Variant = DefaultCatalog().Variant
	}
	if _, err := s.catalogs.Resolve(in.Variant); err != nil {
		return out, err
	}
	if in.InitialCapital.IsZero() {
		in.InitialCapital = decimal.RequireFromString(DefaultInitialCapital)
	}
	if !in.InitialCapital.IsPositive() {
		return out, fmt.Errorf("initial capital must be positive")
	}

	deadlines, err := marshalRoundDeadlines(in.RoundDeadlines)
	if err != nil {
		return out, err
	}

	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := NormalizeJoinCode(in.JoinCode)
		if code == "" {
			code, err = GenerateJoinCode()
			if err != nil {
				return out, err
			}
		}
		err = s.db.QueryRow(ctx, `
			INSERT INTO games (id, name, join_code, variant, status, initial_capital, deadline, round_deadlines, max_players, created_by)
			VALUES ($1, $2, $3, $4, 'open', $5, $6, $7, $8, $9)
			RETURNING id, created_at
		`, uuid.NewString(), in.Name, code, in.Variant, in.InitialCapital.StringFixed(2), in.Deadline, deadlines, in.MaxPlayers, in.AdminID).
			Scan(&out.ID, &out.CreatedAt)
		if err == nil {
			out.Name = in.Name
			out.JoinCode = code
			out.Variant = in.Variant
			out.Status = GameOpen
			out.InitialCapital = in.InitialCapital
			out.Deadline = in.Deadline
			out.RoundDeadlines = in.RoundDeadlines
			out.MaxPlayers = in.MaxPlayers
			out.CreatedBy = in.AdminID
			return out, nil
		}
		if !isUniqueViolation(err) {
			return out, err
		}
		if in.JoinCode != "" {
			return out, fmt.Errorf("%w: join code already in use", ErrInvalidJoinCode)
		}
	}
	return out, fmt.Errorf("failed to generate a unique join code after %d attempts", maxAttempts)
}

func (s *Service) ListGames(ctx context.Context, role string) ([]Game, error) {
	query := `
		SELECT g.id, g.name, g.join_code, g.variant, g.status, g.initial_capital::text,
		       g.deadline, g.round_deadlines, g.max_players, g.created_by, g.created_at,
		       COUNT(p.user_id)
		FROM games g
		LEFT JOIN game_players p ON p.game_id = g.id
	`
	if role != "admin" {
		query += " WHERE g.status = 'open'"
	}
	query += " GROUP BY g.id ORDER BY g.created_at"

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Service) GetGame(ctx context.Context, gameID, userID string) (GameDetail, error) {
	var out GameDetail
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return out, err
	}
	out.Game = g

	var p PlayerProgress
	err = s.db.QueryRow(ctx, `
		SELECT current_year, status, hidden, joined_at, completed_at
		FROM game_players
		WHERE game_id = $1 AND user_id = $2
	`, gameID, userID).Scan(&p.CurrentYear, &p.Status, &p.Hidden, &p.JoinedAt, &p.CompletedAt)
	if err == nil {
		out.PlayerProgress = &p
	} else if err != pgx.ErrNoRows {
		return out, err
	}
	return out, nil
}

// JoinGame creates the player's progress row at the first catalog year.
// The game row is locked so the max-player cap cannot be exceeded by two
// concurrent joins.
func (s *Service) JoinGame(ctx context.Context, in JoinGameInput) (GameDetail, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return GameDetail{}, err
	}
	defer tx.Rollback(ctx)

	var joinCode, status, variant string
	var maxPlayers *int
	err = tx.QueryRow(ctx, `
		SELECT join_code, status, variant, max_players
		FROM games
		WHERE id = $1
		FOR UPDATE
	`, in.GameID).Scan(&joinCode, &status, &variant, &maxPlayers)
	if err == pgx.ErrNoRows {
		return GameDetail{}, ErrGameNotFound
	}
	if err != nil {
		return GameDetail{}, err
	}

	if joinCode != NormalizeJoinCode(in.JoinCode) {
		return GameDetail{}, ErrInvalidJoinCode
	}
	if status != GameOpen {
		return GameDetail{}, ErrGameNotOpen
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM game_players WHERE game_id = $1 AND user_id = $2)
	`, in.GameID, in.UserID).Scan(&exists); err != nil {
		return GameDetail{}, err
	}
	if exists {
		return GameDetail{}, ErrAlreadyJoined
	}

	if maxPlayers != nil {
		var count int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(1) FROM game_players WHERE game_id = $1
		`, in.GameID).Scan(&count); err != nil {
			return GameDetail{}, err
		}
		if count >= *maxPlayers {
			return GameDetail{}, ErrGameFull
		}
	}

	cat, err := s.catalogs.Resolve(variant)
	if err != nil {
		return GameDetail{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_players (game_id, user_id, current_year, status, hidden)
		VALUES ($1, $2, $3, 'playing', $4)
	`, in.GameID, in.UserID, cat.FirstYear(), in.Hidden); err != nil {
		return GameDetail{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return GameDetail{}, err
	}
	return s.GetGame(ctx, in.GameID, in.UserID)
}

func (s *Service) UpdateGame(ctx context.Context, gameID string, in UpdateGameInput) (Game, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return Game{}, err
	}

	if in.Name != nil {
		if err := validateGameName(*in.Name); err != nil {
			return Game{}, err
		}
		g.Name = strings.TrimSpace(*in.Name)
	}
	if in.ClearDeadline {
		g.Deadline = nil
	} else if in.Deadline != nil {
		g.Deadline = in.Deadline
	}
	if in.RoundDeadlines != nil {
		g.RoundDeadlines = in.RoundDeadlines
	}
	if in.MaxPlayers != nil {
		g.MaxPlayers = in.MaxPlayers
	}

	deadlines, err := marshalRoundDeadlines(g.RoundDeadlines)
	if err != nil {
		return Game{}, err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE games
		SET name = $1, deadline = $2, round_deadlines = $3, max_players = $4
		WHERE id = $5
	`, g.Name, g.Deadline, deadlines, g.MaxPlayers, gameID)
	return g, err
}

// CloseGame is the administrator-triggered open->closed transition; it is
// monotonic and never reopens a game.
func (s *Service) CloseGame(ctx context.Context, gameID string) (Game, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return Game{}, err
	}
	if g.Status == GameCompleted {
		return Game{}, fmt.Errorf("game is already completed")
	}
	if g.Status == GameOpen {
		if _, err := s.db.Exec(ctx, `UPDATE games SET status = 'closed' WHERE id = $1 AND status = 'open'`, gameID); err != nil {
			return Game{}, err
		}
		g.Status = GameClosed
	}
	return g, nil
}

func (s *Service) GetPlayState(ctx context.Context, gameID, userID string) (PlayState, error) {
	var out PlayState
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return out, err
	}
	cat, err := s.catalogs.Resolve(g.Variant)
	if err != nil {
		return out, err
	}

	var currentYear int
	var status string
	err = s.db.QueryRow(ctx, `
		SELECT current_year, status
		FROM game_players
		WHERE game_id = $1 AND user_id = $2
	`, gameID, userID).Scan(&currentYear, &status)
	if err == pgx.ErrNoRows {
		return out, ErrNotJoined
	}
	if err != nil {
		return out, err
	}

	snapshots, err := s.GetSnapshots(ctx, gameID, userID)
	if err != nil {
		return out, err
	}

	portfolioValue := g.InitialCapital
	completedYears := make([]int, 0, len(snapshots))
	for _, snap := range snapshots {
		completedYears = append(completedYears, snap.Year)
	}
	if len(snapshots) > 0 {
		portfolioValue = snapshots[len(snapshots)-1].ValueEnd
	}

	allocationSubmitted := false
	if status == StatusPlaying && cat.HasYear(currentYear) {
		if err := s.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM allocations WHERE game_id = $1 AND user_id = $2 AND year = $3)
		`, gameID, userID, currentYear).Scan(&allocationSubmitted); err != nil {
			return out, err
		}
	}

	out = PlayState{
		GameID:              gameID,
		GameName:            g.Name,
		CurrentYear:         currentYear,
		PortfolioValue:      portfolioValue,
		InitialCapital:      g.InitialCapital,
		TotalReturnPct:      CumulativeReturn(g.InitialCapital, portfolioValue),
		Scenario:            cat.BriefingFor(currentYear),
		CompletedYears:      completedYears,
		AllocationSubmitted: allocationSubmitted,
		PlayerStatus:        status,
	}
	if dl, ok := g.RoundDeadlines[currentYear]; ok {
		out.RoundDeadline = &dl
	}
	return out, nil
}

// SubmitAllocation is the one atomic state transition of the game. It
// locks the caller's progress row for the whole validate-then-write
// sequence, so two concurrent submissions for the same player serialize
// and exactly one can win; submissions for different players never touch
// the same lock.
func (s *Service) SubmitAllocation(ctx context.Context, in SubmitAllocationInput) (YearResult, error) {
	var out YearResult

	g, err := s.gameByID(ctx, in.GameID)
	if err != nil {
		return out, err
	}
	cat, err := s.catalogs.Resolve(g.Variant)
	if err != nil {
		return out, err
	}
	// Payload validation happens before any transaction begins.
	if err := ValidateAllocation(cat, in.Allocation); err != nil {
		return out, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	// Bound the lock wait so a stuck submission surfaces as a transient
	// conflict instead of hanging the request.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockWait.Milliseconds())); err != nil {
		return out, err
	}

	var currentYear int
	var status string
	err = tx.QueryRow(ctx, `
		SELECT current_year, status
		FROM game_players
		WHERE game_id = $1 AND user_id = $2
		FOR UPDATE
	`, in.GameID, in.UserID).Scan(&currentYear, &status)
	if err == pgx.ErrNoRows {
		return out, ErrNotJoined
	}
	if err != nil {
		return out, mapLockError(err)
	}

	if status == StatusCompleted {
		return out, ErrGameNotActive
	}
	if in.Year != currentYear {
		return out, fmt.Errorf("%w: expected year %d, got %d", ErrWrongYear, currentYear, in.Year)
	}

	// Defense in depth: the uniqueness constraint on (game, player, year)
	// is the source of truth even if the year check above ever regressed.
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM allocations WHERE game_id = $1 AND user_id = $2 AND year = $3)
	`, in.GameID, in.UserID, currentYear).Scan(&exists); err != nil {
		return out, err
	}
	if exists {
		return out, ErrAlreadySubmitted
	}

	if dl, ok := g.RoundDeadlines[currentYear]; ok && s.now().After(dl) {
		return out, ErrRoundDeadlinePassed
	}

	portfolioStart := g.InitialCapital
	if currentYear > cat.FirstYear() {
		var prevEnd string
		err := tx.QueryRow(ctx, `
			SELECT value_end::text
			FROM portfolio_snapshots
			WHERE game_id = $1 AND user_id = $2
			ORDER BY year DESC
			LIMIT 1
		`, in.GameID, in.UserID).Scan(&prevEnd)
		if err != nil && err != pgx.ErrNoRows {
			return out, err
		}
		if err == nil {
			portfolioStart, err = decimal.NewFromString(prevEnd)
			if err != nil {
				return out, err
			}
		}
	}

	valuation, err := ValueYear(cat, in.Allocation, currentYear, portfolioStart)
	if err != nil {
		return out, err
	}

	weights, err := json.Marshal(in.Allocation)
	if err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO allocations (id, game_id, user_id, year, weights)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), in.GameID, in.UserID, currentYear, weights); err != nil {
		if isUniqueViolation(err) {
			return out, ErrAlreadySubmitted
		}
		return out, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO portfolio_snapshots (id, game_id, user_id, year, value_start, value_end, return_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), in.GameID, in.UserID, currentYear,
		portfolioStart.StringFixed(2), valuation.ValueEnd.StringFixed(2), valuation.ReturnPct.StringFixed(2)); err != nil {
		return out, err
	}

	isLastYear := currentYear == cat.LastYear()
	nextYear := currentYear + 1
	newStatus := StatusPlaying
	if isLastYear {
		newStatus = StatusCompleted
		if _, err := tx.Exec(ctx, `
			UPDATE game_players
			SET current_year = $1, status = 'completed', completed_at = now()
			WHERE game_id = $2 AND user_id = $3
		`, cat.CompletedMarker(), in.GameID, in.UserID); err != nil {
			return out, err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE game_players
			SET current_year = $1
			WHERE game_id = $2 AND user_id = $3
		`, nextYear, in.GameID, in.UserID); err != nil {
			return out, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return out, mapLockError(err)
	}

	out = YearResult{
		Year:           currentYear,
		Allocation:     in.Allocation,
		PortfolioStart: portfolioStart,
		PortfolioEnd:   valuation.ValueEnd,
		ReturnPct:      valuation.ReturnPct,
		Breakdown:      valuation.Breakdown,
		PlayerStatus:   newStatus,
	}
	if !isLastYear {
		out.NextYear = &nextYear
	}
	s.log.Info("allocation submitted",
		"game_id", in.GameID, "user_id", in.UserID, "year", currentYear,
		"value_end", valuation.ValueEnd.String(), "status", newStatus)
	return out, nil
}

func (s *Service) GetAllocations(ctx context.Context, gameID, userID string) ([]AllocationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, game_id, user_id, year, weights, submitted_at
		FROM allocations
		WHERE game_id = $1 AND user_id = $2
		ORDER BY year
	`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AllocationRecord, 0)
	for rows.Next() {
		var rec AllocationRecord
		var weights []byte
		if err := rows.Scan(&rec.ID, &rec.GameID, &rec.UserID, &rec.Year, &weights, &rec.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(weights, &rec.Weights); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Service) GetSnapshots(ctx context.Context, gameID, userID string) ([]PortfolioSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT year, value_start::text, value_end::text, return_pct::text
		FROM portfolio_snapshots
		WHERE game_id = $1 AND user_id = $2
		ORDER BY year
	`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PortfolioSnapshot, 0)
	for rows.Next() {
		var snap PortfolioSnapshot
		var start, end, ret string
		if err := rows.Scan(&snap.Year, &start, &end, &ret); err != nil {
			return nil, err
		}
		if snap.ValueStart, err = decimal.NewFromString(start); err != nil {
			return nil, err
		}
		if snap.ValueEnd, err = decimal.NewFromString(end); err != nil {
			return nil, err
		}
		if snap.ReturnPct, err = decimal.NewFromString(ret); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Leaderboard derives the total ordering of visible players from their
// latest snapshot and progress state. Read-only, takes no locks.
func (s *Service) Leaderboard(ctx context.Context, gameID string) ([]LeaderboardEntry, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.user_id, u.display_name, p.current_year, p.status
		FROM game_players p
		JOIN users u ON u.id = p.user_id
		WHERE p.game_id = $1 AND NOT p.hidden
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.CurrentYear, &e.Status); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latest, err := s.latestSnapshotValues(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		value, ok := latest[entries[i].UserID]
		if !ok {
			value = g.InitialCapital
		}
		entries[i].PortfolioValue = value
		entries[i].TotalReturnPct = CumulativeReturn(g.InitialCapital, value)
	}

	rankEntries(entries)
	return entries, nil
}

// rankEntries sorts by the three ranking keys and assigns dense 1-based
// ranks. The sort is stable so residual exact ties keep their storage
// iteration order.
func rankEntries(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Status == StatusCompleted) != (b.Status == StatusCompleted) {
			return a.Status == StatusCompleted
		}
		if a.CurrentYear != b.CurrentYear {
			return a.CurrentYear > b.CurrentYear
		}
		return a.PortfolioValue.GreaterThan(b.PortfolioValue)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// FinalResults composes the leaderboard, the caller's full history, the
// hindsight-optimal path and the fund benchmark comparison. Only available
// once the caller has completed every year.
func (s *Service) FinalResults(ctx context.Context, gameID, userID string) (FinalResults, error) {
	var out FinalResults

	var status string
	err := s.db.QueryRow(ctx, `
		SELECT status FROM game_players WHERE game_id = $1 AND user_id = $2
	`, gameID, userID).Scan(&status)
	if err == pgx.ErrNoRows {
		return out, ErrNotJoined
	}
	if err != nil {
		return out, err
	}
	if status != StatusCompleted {
		return out, ErrGameNotCompleted
	}

	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return out, err
	}
	cat, err := s.catalogs.Resolve(g.Variant)
	if err != nil {
		return out, err
	}

	leaderboard, err := s.Leaderboard(ctx, gameID)
	if err != nil {
		return out, err
	}
	snapshots, err := s.GetSnapshots(ctx, gameID, userID)
	if err != nil {
		return out, err
	}
	allocations, err := s.GetAllocations(ctx, gameID, userID)
	if err != nil {
		return out, err
	}

	finalValue := g.InitialCapital
	if len(snapshots) > 0 {
		finalValue = snapshots[len(snapshots)-1].ValueEnd
	}

	// Rank 0 means the caller is hidden from the leaderboard; the personal
	// result is still fully populated.
	rank := 0
	for _, e := range leaderboard {
		if e.UserID == userID {
			rank = e.Rank
			break
		}
	}

	optimal, err := OptimalPath(cat, g.InitialCapital)
	if err != nil {
		return out, err
	}
	benchmarks, err := s.fundBenchmarks(ctx, g.InitialCapital)
	if err != nil {
		return out, err
	}

	out = FinalResults{
		Leaderboard: leaderboard,
		PlayerResult: PlayerFinalResult{
			FinalValue:     finalValue,
			TotalReturnPct: CumulativeReturn(g.InitialCapital, finalValue),
			Rank:           rank,
			TotalPlayers:   len(leaderboard),
			Snapshots:      snapshots,
			Allocations:    allocations,
		},
		OptimalPath:    optimal,
		FundBenchmarks: benchmarks,
	}
	return out, nil
}

// SweepGames is the worker pass: closes open games whose overall deadline
// has passed and marks a game completed once every joined player finished.
func (s *Service) SweepGames(ctx context.Context) (closed, completed int64, err error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE games
		SET status = 'closed'
		WHERE status = 'open' AND deadline IS NOT NULL AND deadline < now()
	`)
	if err != nil {
		return 0, 0, err
	}
	closed = tag.RowsAffected()

	// Only visible players gate completion: a hidden player (an admin
	// playing along quietly) must not hold the game open. A game whose
	// players are all hidden never auto-completes.
	tag, err = s.db.Exec(ctx, `
		UPDATE games g
		SET status = 'completed'
		WHERE g.status IN ('open', 'closed')
		  AND EXISTS (SELECT 1 FROM game_players p WHERE p.game_id = g.id AND NOT p.hidden)
		  AND NOT EXISTS (SELECT 1 FROM game_players p WHERE p.game_id = g.id AND NOT p.hidden AND p.status <> 'completed')
	`)
	if err != nil {
		return closed, 0, err
	}
	return closed, tag.RowsAffected(), nil
}

func (s *Service) fundBenchmarks(ctx context.Context, initialCapital decimal.Decimal) ([]FundBenchmark, error) {
	rows, err := s.db.Query(ctx, `
		SELECT fund_id, fund_name, fund_type, year,
		       return_pct::text, sharpe_ratio::text, cash_pct::text, fixed_income_pct::text, equity_pct::text
		FROM fund_benchmarks
		ORDER BY fund_id, year
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]FundBenchmark, 0)
	for rows.Next() {
		var fundID int
		var name, fundType string
		var fy FundYear
		var ret, sharpe, cash, fixed, equity string
		if err := rows.Scan(&fundID, &name, &fundType, &fy.Year, &ret, &sharpe, &cash, &fixed, &equity); err != nil {
			return nil, err
		}
		for _, field := range []struct {
			raw string
			dst *decimal.Decimal
		}{
			{ret, &fy.ReturnPct}, {sharpe, &fy.SharpeRatio},
			{cash, &fy.CashPct}, {fixed, &fy.FixedIncomePct}, {equity, &fy.EquityPct},
		} {
			d, err := decimal.NewFromString(field.raw)
			if err != nil {
				return nil, err
			}
			*field.dst = d
		}
		if len(out) == 0 || out[len(out)-1].FundID != fundID {
			out = append(out, FundBenchmark{FundID: fundID, FundName: name, FundType: fundType})
		}
		last := &out[len(out)-1]
		last.Years = append(last.Years, fy)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		yearly := make([]decimal.Decimal, 0, len(out[i].Years))
		for _, y := range out[i].Years {
			yearly = append(yearly, y.ReturnPct)
		}
		cum := CompoundReturns(yearly)
		out[i].CumulativeReturnPct = cum
		out[i].FinalValue = roundMoney(initialCapital.Mul(decimal.NewFromInt(1).Add(cum.Div(hundred))))
	}
	return out, nil
}

func (s *Service) gameByID(ctx context.Context, gameID string) (Game, error) {
	row := s.db.QueryRow(ctx, `
		SELECT g.id, g.name, g.join_code, g.variant, g.status, g.initial_capital::text,
		       g.deadline, g.round_deadlines, g.max_players, g.created_by, g.created_at,
		       (SELECT COUNT(1) FROM game_players p WHERE p.game_id = g.id)
		FROM games g
		WHERE g.id = $1
	`, gameID)
	g, err := scanGame(row)
	if err == pgx.ErrNoRows {
		return Game{}, ErrGameNotFound
	}
	return g, err
}

func (s *Service) latestSnapshotValues(ctx context.Context, gameID string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (user_id) user_id, value_end::text
		FROM portfolio_snapshots
		WHERE game_id = $1
		ORDER BY user_id, year DESC
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var userID, value string
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		out[userID] = d
	}
	return out, rows.Err()
}

func scanGame(row pgx.Row) (Game, error) {
	var g Game
	var capital string
	var deadlines []byte
	err := row.Scan(&g.ID, &g.Name, &g.JoinCode, &g.Variant, &g.Status, &capital,
		&g.Deadline, &deadlines, &g.MaxPlayers, &g.CreatedBy, &g.CreatedAt, &g.PlayerCount)
	if err != nil {
		return g, err
	}
	if g.InitialCapital, err = decimal.NewFromString(capital); err != nil {
		return g, err
	}
	if len(deadlines) > 0 {
		if err := json.Unmarshal(deadlines, &g.RoundDeadlines); err != nil {
			return g, err
		}
	}
	return g, nil
}

func marshalRoundDeadlines(deadlines map[int]time.Time) ([]byte, error) {
	if len(deadlines) == 0 {
		return nil, nil
	}
	return json.Marshal(deadlines)
}

func displayNameFromEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Player"
	}
	return local
}

// mapLockError folds the transient storage failures (bounded lock wait
// expiry, serialization failure, deadlock) into ErrTxConflict, the only
// error category a caller may retry.
func mapLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Code)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
