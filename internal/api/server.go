package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"odyssey/internal/auth"
	"odyssey/internal/config"
	"odyssey/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Role   string
	Token  string
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	verifier auth.Verifier
	login    *auth.Client
	game     *game.Service
	mux      *chi.Mux
}

// New wires the router. login may be nil when running in no-login mode;
// the signup/login endpoints then answer 503.
func New(cfg config.APIConfig, logger *slog.Logger, verifier auth.Verifier, login *auth.Client, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		verifier: verifier,
		login:    login,
		game:     gameSvc,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/me", s.handleMe)

			r.Get("/games", s.handleListGames)
			r.Post("/games", s.handleCreateGame)
			r.Get("/games/{id}", s.handleGetGame)
			r.Patch("/games/{id}", s.handleUpdateGame)
			r.Post("/games/{id}/close", s.handleCloseGame)
			r.Post("/games/{id}/join", s.handleJoinGame)

			r.Get("/games/{id}/play", s.handlePlayState)
			r.Post("/games/{id}/allocations", s.handleSubmitAllocation)
			r.Get("/games/{id}/allocations", s.handleListAllocations)
			r.Get("/games/{id}/snapshots", s.handleListSnapshots)
			r.Get("/games/{id}/leaderboard", s.handleLeaderboard)
			r.Get("/games/{id}/results", s.handleFinalResults)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		user, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", fmt.Sprintf("invalid token: %v", err))
			return
		}
		role := "player"
		if s.cfg.IsAdminEmail(user.Email) {
			role = "admin"
		}
		if err := s.game.EnsureUser(r.Context(), user.ID, user.Email, "", role); err != nil {
			s.log.Error("ensure user", "err", err, "user_id", user.ID)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to provision user")
			return
		}
		role, err = s.game.UserRole(r.Context(), user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load user role")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Role:   role,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	user, ok := ctx.Value(userContextKey).(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (UserContext, bool) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return user, false
	}
	if user.Role != "admin" {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "administrator role required")
		return user, false
	}
	return user, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		writeError(w, http.StatusServiceUnavailable, "LOGIN_DISABLED", "authentication is disabled on this instance")
		return
	}
	var in struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	session, err := s.login.SignUp(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "AUTH_FAILED", err.Error())
		return
	}
	role := "player"
	if s.cfg.IsAdminEmail(session.User.Email) {
		role = "admin"
	}
	if session.User.ID != "" {
		if err := s.game.EnsureUser(r.Context(), session.User.ID, session.User.Email, in.DisplayName, role); err != nil {
			s.log.Error("provision user after signup", "err", err)
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		writeError(w, http.StatusServiceUnavailable, "LOGIN_DISABLED", "authentication is disabled on this instance")
		return
	}
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	session, err := s.login.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.UserID,
		"email":   user.Email,
		"role":    user.Role,
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	games, err := s.game.ListGames(r.Context(), user.Role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

type createGameRequest struct {
	Name           string            `json:"name"`
	Variant        string            `json:"variant"`
	InitialCapital string            `json:"initial_capital"`
	Deadline       *time.Time        `json:"deadline"`
	RoundDeadlines map[int]time.Time `json:"round_deadlines"`
	MaxPlayers     *int              `json:"max_players"`
	JoinCode       string            `json:"join_code"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var in createGameRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	input := game.CreateGameInput{
		AdminID:        user.UserID,
		Name:           in.Name,
		Variant:        in.Variant,
		Deadline:       in.Deadline,
		RoundDeadlines: in.RoundDeadlines,
		MaxPlayers:     in.MaxPlayers,
		JoinCode:       in.JoinCode,
	}
	if in.InitialCapital != "" {
		capital, err := decimal.NewFromString(in.InitialCapital)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "initial_capital must be a decimal string")
			return
		}
		input.InitialCapital = capital
	}
	g, err := s.game.CreateGame(r.Context(), input)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	detail, err := s.game.GetGame(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	// Players never see the join code of a game they have not joined.
	if user.Role != "admin" && detail.PlayerProgress == nil {
		detail.JoinCode = ""
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateGameRequest struct {
	Name           *string           `json:"name"`
	Deadline       *time.Time        `json:"deadline"`
	ClearDeadline  bool              `json:"clear_deadline"`
	RoundDeadlines map[int]time.Time `json:"round_deadlines"`
	MaxPlayers     *int              `json:"max_players"`
}

func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var in updateGameRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	g, err := s.game.UpdateGame(r.Context(), chi.URLParam(r, "id"), game.UpdateGameInput{
		Name:           in.Name,
		Deadline:       in.Deadline,
		ClearDeadline:  in.ClearDeadline,
		RoundDeadlines: in.RoundDeadlines,
		MaxPlayers:     in.MaxPlayers,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCloseGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	g, err := s.game.CloseGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	var in struct {
		JoinCode string `json:"join_code"`
		Hidden   bool   `json:"hidden"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	detail, err := s.game.JoinGame(r.Context(), game.JoinGameInput{
		GameID:   chi.URLParam(r, "id"),
		UserID:   user.UserID,
		JoinCode: in.JoinCode,
		Hidden:   in.Hidden,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePlayState(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	state, err := s.game.GetPlayState(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSubmitAllocation(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	var in struct {
		Year       int             `json:"year"`
		Allocation game.Allocation `json:"allocation"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	result, err := s.game.SubmitAllocation(r.Context(), game.SubmitAllocationInput{
		GameID:     chi.URLParam(r, "id"),
		UserID:     user.UserID,
		Year:       in.Year,
		Allocation: in.Allocation,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	allocations, err := s.game.GetAllocations(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": allocations})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	snapshots, err := s.game.GetSnapshots(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if _, err := userFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	entries, err := s.game.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *Server) handleFinalResults(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	results, err := s.game.FinalResults(r.Context(), chi.URLParam(r, "id"), user.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// writeDomainError maps a domain error to a transport status. Deterministic
// state-machine rejections are 4xx with a stable code the client can branch
// on; only genuinely unknown failures become 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := game.ErrorCode(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotJoined), errors.Is(err, game.ErrGameNotCompleted), errors.Is(err, game.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrTxConflict):
		status = http.StatusConflict
	case errors.Is(err, game.ErrWrongYear),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrRoundDeadlinePassed),
		errors.Is(err, game.ErrInvalidAllocation),
		errors.Is(err, game.ErrGameNotOpen),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrInvalidJoinCode),
		errors.Is(err, game.ErrUnknownVariant):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": strings.TrimSpace(message),
		"code":  code,
	})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
