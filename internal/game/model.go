package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultInitialCapital = "100000.00"
	JoinCodeLength        = 6
)

const (
	StatusPlaying   = "playing"
	StatusCompleted = "completed"

	GameOpen      = "open"
	GameClosed    = "closed"
	GameCompleted = "completed"
)

var (
	ErrGameNotFound        = errors.New("game not found")
	ErrNotJoined           = errors.New("you have not joined this game")
	ErrGameNotActive       = errors.New("you have already completed this game")
	ErrWrongYear           = errors.New("wrong year")
	ErrAlreadySubmitted    = errors.New("allocation already submitted for this year")
	ErrRoundDeadlinePassed = errors.New("the deadline for this round has passed")
	ErrInvalidAllocation   = errors.New("invalid allocation")
	ErrGameNotCompleted    = errors.New("final results are available only after completing all years")
	ErrGameNotOpen         = errors.New("game is not accepting new players")
	ErrAlreadyJoined       = errors.New("already joined this game")
	ErrGameFull            = errors.New("game is full")
	ErrInvalidJoinCode     = errors.New("invalid join code")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownYear         = errors.New("unknown year")
	ErrUnknownVariant      = errors.New("unknown game variant")
	ErrTxConflict          = errors.New("submission conflicted with a concurrent request, retry")
)

// ErrorCode maps a domain error to the stable machine-readable code sent
// on the wire. Transport status classes are chosen by the routing layer.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "GAME_NOT_FOUND"
	case errors.Is(err, ErrNotJoined):
		return "NOT_JOINED"
	case errors.Is(err, ErrGameNotActive):
		return "GAME_NOT_ACTIVE"
	case errors.Is(err, ErrWrongYear):
		return "WRONG_YEAR"
	case errors.Is(err, ErrAlreadySubmitted):
		return "ALREADY_SUBMITTED"
	case errors.Is(err, ErrRoundDeadlinePassed):
		return "ROUND_DEADLINE_PASSED"
	case errors.Is(err, ErrInvalidAllocation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrGameNotCompleted):
		return "GAME_NOT_COMPLETED"
	case errors.Is(err, ErrGameNotOpen):
		return "GAME_NOT_OPEN"
	case errors.Is(err, ErrAlreadyJoined):
		return "ALREADY_JOINED"
	case errors.Is(err, ErrGameFull):
		return "GAME_FULL"
	case errors.Is(err, ErrInvalidJoinCode):
		return "INVALID_JOIN_CODE"
	case errors.Is(err, ErrUnknownVariant):
		return "UNKNOWN_VARIANT"
	case errors.Is(err, ErrUnauthorized):
		return "FORBIDDEN"
	case errors.Is(err, ErrTxConflict):
		return "TX_CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

// Allocation maps instrument id to an integer percentage weight.
type Allocation map[string]int

// ValidateAllocation checks the data-model invariants against the catalog
// in use: known instruments only, weights in [0,100], sum exactly 100.
// Runs before the submission transaction begins.
func ValidateAllocation(cat *Catalog, alloc Allocation) error {
	if len(alloc) == 0 {
		return fmt.Errorf("%w: allocation is empty", ErrInvalidAllocation)
	}
	sum := 0
	for id, weight := range alloc {
		if _, ok := cat.InstrumentByID(id); !ok {
			return fmt.Errorf("%w: unknown instrument %q", ErrInvalidAllocation, id)
		}
		if weight < 0 || weight > 100 {
			return fmt.Errorf("%w: weight for %s must be between 0 and 100, got %d", ErrInvalidAllocation, id, weight)
		}
		sum += weight
	}
	if sum != 100 {
		return fmt.Errorf("%w: weights must sum to 100, got %d", ErrInvalidAllocation, sum)
	}
	return nil
}

// GenerateJoinCode produces the short uppercase code players type to join
// a game. Uniqueness is enforced by the games.join_code constraint.
func GenerateJoinCode() (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = letters[int(buf[i])%len(letters)]
	}
	return string(buf), nil
}

func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateGameName(name string) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return fmt.Errorf("game name is required")
	}
	if len(clean) > 64 {
		return fmt.Errorf("game name too long (max 64 chars)")
	}
	return nil
}
