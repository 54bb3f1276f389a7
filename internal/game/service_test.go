package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"odyssey/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests exercise the transactional paths and need a real database.
// Set DATABASE_URL to run them.
func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(pool, DefaultCatalogSet(), logger)
}

func createTestUser(t *testing.T, svc *Service, role string) string {
	t.Helper()
	id := uuid.NewString()
	if err := svc.EnsureUser(context.Background(), id, id[:8]+"@test.local", "Player "+id[:8], role); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return id
}

func createTestGame(t *testing.T, svc *Service, adminID string) Game {
	t.Helper()
	g, err := svc.CreateGame(context.Background(), CreateGameInput{
		AdminID: adminID,
		Name:    "League " + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	t.Cleanup(func() {
		_, _ = svc.db.Exec(context.Background(), `DELETE FROM games WHERE id = $1`, g.ID)
	})
	return g
}

func joinTestGame(t *testing.T, svc *Service, g Game, userID string, hidden bool) {
	t.Helper()
	_, err := svc.JoinGame(context.Background(), JoinGameInput{
		GameID:   g.ID,
		UserID:   userID,
		JoinCode: g.JoinCode,
		Hidden:   hidden,
	})
	if err != nil {
		t.Fatalf("join game: %v", err)
	}
}

func TestSubmitAllocationRejectsResubmission(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin")
	player := createTestUser(t, svc, "player")
	g := createTestGame(t, svc, admin)
	joinTestGame(t, svc, g, player, false)

	in := SubmitAllocationInput{
		GameID:     g.ID,
		UserID:     player,
		Year:       2021,
		Allocation: Allocation{"equities": 60, "bonds": 30, "cash": 10},
	}
	result, err := svc.SubmitAllocation(ctx, in)
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if result.NextYear == nil || *result.NextYear != 2022 {
		t.Fatalf("expected advance to 2022, got %+v", result.NextYear)
	}

	_, err = svc.SubmitAllocation(ctx, in)
	if !errors.Is(err, ErrWrongYear) && !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second submission for the same year: got %v", err)
	}

	snapshots, err := svc.GetSnapshots(ctx, g.ID, player)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected exactly 1 snapshot after duplicate submission, got %d", len(snapshots))
	}
}

func TestSubmitAllocationConcurrentSingleWinner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin")
	player := createTestUser(t, svc, "player")
	g := createTestGame(t, svc, admin)
	joinTestGame(t, svc, g, player, false)

	in := SubmitAllocationInput{
		GameID:     g.ID,
		UserID:     player,
		Year:       2021,
		Allocation: Allocation{"reits": 100},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitAllocation(ctx, in)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		if !errors.Is(err, ErrWrongYear) && !errors.Is(err, ErrAlreadySubmitted) && !errors.Is(err, ErrTxConflict) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d (errs=%v)", winners, errs)
	}

	snapshots, err := svc.GetSnapshots(ctx, g.ID, player)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected exactly 1 snapshot, got %d", len(snapshots))
	}
}

func TestSubmitAllocationFinalYearCompletesPlayer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin")
	player := createTestUser(t, svc, "player")
	g := createTestGame(t, svc, admin)
	joinTestGame(t, svc, g, player, false)
	cat := DefaultCatalog()

	if _, err := svc.FinalResults(ctx, g.ID, player); !errors.Is(err, ErrGameNotCompleted) {
		t.Fatalf("results before completion: got %v, want ErrGameNotCompleted", err)
	}

	var last YearResult
	for _, year := range cat.Years {
		result, err := svc.SubmitAllocation(ctx, SubmitAllocationInput{
			GameID:     g.ID,
			UserID:     player,
			Year:       year,
			Allocation: Allocation{"cash": 100},
		})
		if err != nil {
			t.Fatalf("submit %d: %v", year, err)
		}
		last = result
	}

	if last.PlayerStatus != StatusCompleted {
		t.Fatalf("final status = %q, want completed", last.PlayerStatus)
	}
	if last.NextYear != nil {
		t.Fatalf("expected no next year after the final round, got %d", *last.NextYear)
	}

	detail, err := svc.GetGame(ctx, g.ID, player)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if detail.PlayerProgress == nil || detail.PlayerProgress.Status != StatusCompleted {
		t.Fatalf("player progress = %+v, want completed", detail.PlayerProgress)
	}
	if detail.PlayerProgress.CurrentYear != cat.CompletedMarker() {
		t.Fatalf("stored year = %d, want terminal marker %d", detail.PlayerProgress.CurrentYear, cat.CompletedMarker())
	}

	results, err := svc.FinalResults(ctx, g.ID, player)
	if err != nil {
		t.Fatalf("results after completion: %v", err)
	}
	if results.PlayerResult.Rank != 1 || results.PlayerResult.TotalPlayers != 1 {
		t.Fatalf("rank=%d players=%d, want 1/1", results.PlayerResult.Rank, results.PlayerResult.TotalPlayers)
	}
	if len(results.PlayerResult.Snapshots) != len(cat.Years) {
		t.Fatalf("expected %d snapshots, got %d", len(cat.Years), len(results.PlayerResult.Snapshots))
	}
}

func TestSweepGamesCompletionIgnoresHiddenPlayers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin")
	visible := createTestUser(t, svc, "player")
	hidden := createTestUser(t, svc, "player")
	cat := DefaultCatalog()

	g := createTestGame(t, svc, admin)
	joinTestGame(t, svc, g, visible, false)
	joinTestGame(t, svc, g, hidden, true)
	for _, year := range cat.Years {
		if _, err := svc.SubmitAllocation(ctx, SubmitAllocationInput{
			GameID: g.ID, UserID: visible, Year: year, Allocation: Allocation{"cash": 100},
		}); err != nil {
			t.Fatalf("submit %d: %v", year, err)
		}
	}

	// A game whose players are all hidden must never auto-complete.
	allHidden := createTestGame(t, svc, admin)
	soloHidden := createTestUser(t, svc, "player")
	joinTestGame(t, svc, allHidden, soloHidden, true)
	for _, year := range cat.Years {
		if _, err := svc.SubmitAllocation(ctx, SubmitAllocationInput{
			GameID: allHidden.ID, UserID: soloHidden, Year: year, Allocation: Allocation{"cash": 100},
		}); err != nil {
			t.Fatalf("submit %d: %v", year, err)
		}
	}

	if _, _, err := svc.SweepGames(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	swept, err := svc.gameByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("reload game: %v", err)
	}
	if swept.Status != GameCompleted {
		t.Fatalf("game with completed visible player and unfinished hidden player: status = %q, want completed", swept.Status)
	}

	untouched, err := svc.gameByID(ctx, allHidden.ID)
	if err != nil {
		t.Fatalf("reload all-hidden game: %v", err)
	}
	if untouched.Status == GameCompleted {
		t.Fatalf("all-hidden game must not auto-complete, status = %q", untouched.Status)
	}
}

func TestCreateGameRejectsDuplicateJoinCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin")

	code, err := GenerateJoinCode()
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	first, err := svc.CreateGame(ctx, CreateGameInput{
		AdminID:  admin,
		Name:     "Original " + code,
		JoinCode: code,
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	t.Cleanup(func() {
		_, _ = svc.db.Exec(context.Background(), `DELETE FROM games WHERE id = $1`, first.ID)
	})

	_, err = svc.CreateGame(ctx, CreateGameInput{
		AdminID:  admin,
		Name:     "Duplicate " + code,
		JoinCode: code,
	})
	if !errors.Is(err, ErrInvalidJoinCode) {
		t.Fatalf("duplicate join code: got %v, want ErrInvalidJoinCode", err)
	}
}
