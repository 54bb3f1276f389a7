package game

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAllocation(t *testing.T) {
	cat := DefaultCatalog()

	valid := []Allocation{
		{"equities": 60, "bonds": 30, "cash": 10},
		{"reits": 100},
		{"cash": 20, "bonds": 20, "equities": 20, "commodities": 20, "reits": 20},
		{"equities": 100, "cash": 0},
	}
	for _, alloc := range valid {
		if err := ValidateAllocation(cat, alloc); err != nil {
			t.Fatalf("expected allocation %v to be valid: %v", alloc, err)
		}
	}

	invalid := []Allocation{
		nil,
		{},
		{"equities": 50},
		{"equities": 60, "bonds": 50},
		{"equities": 101, "bonds": -1},
		{"gold": 100},
		{"equities": -10, "bonds": 110},
	}
	for _, alloc := range invalid {
		err := ValidateAllocation(cat, alloc)
		if err == nil {
			t.Fatalf("expected allocation %v to fail", alloc)
		}
		if !errors.Is(err, ErrInvalidAllocation) {
			t.Fatalf("expected ErrInvalidAllocation for %v, got %v", alloc, err)
		}
	}
}

func TestGenerateJoinCode(t *testing.T) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateJoinCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != JoinCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), JoinCodeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(letters, c) {
				t.Fatalf("code %q contains %q outside alphabet", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d unique out of 50", len(seen))
	}
}

func TestNormalizeJoinCode(t *testing.T) {
	if got := NormalizeJoinCode("  ab3xyz "); got != "AB3XYZ" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrWrongYear, "WRONG_YEAR"},
		{ErrAlreadySubmitted, "ALREADY_SUBMITTED"},
		{ErrInvalidAllocation, "VALIDATION_ERROR"},
		{ErrGameNotCompleted, "GAME_NOT_COMPLETED"},
		{ErrTxConflict, "TX_CONFLICT"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	// Wrapped errors keep their code.
	wrapped := errorsJoin(ErrWrongYear)
	if got := ErrorCode(wrapped); got != "WRONG_YEAR" {
		t.Fatalf("wrapped error code = %q", got)
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("context"), err)
}

func TestValidateGameName(t *testing.T) {
	if err := validateGameName("Autumn League"); err != nil {
		t.Fatalf("expected valid name: %v", err)
	}
	if err := validateGameName("   "); err == nil {
		t.Fatalf("expected blank name to fail")
	}
	if err := validateGameName(strings.Repeat("x", 65)); err == nil {
		t.Fatalf("expected long name to fail")
	}
}
