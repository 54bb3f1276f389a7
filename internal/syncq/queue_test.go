package syncq

import "testing"

func TestReplayOutcome(t *testing.T) {
	tests := []struct {
		code string
		want Outcome
	}{
		{"", OutcomeRetry},
		{"TX_CONFLICT", OutcomeRetry},
		{"WRONG_YEAR", OutcomeAlreadyApplied},
		{"ALREADY_SUBMITTED", OutcomeAlreadyApplied},
		{"VALIDATION_ERROR", OutcomeDrop},
		{"NOT_JOINED", OutcomeDrop},
		{"GAME_NOT_ACTIVE", OutcomeDrop},
		{"ROUND_DEADLINE_PASSED", OutcomeDrop},
	}
	for _, tc := range tests {
		if got := ReplayOutcome(tc.code); got != tc.want {
			t.Fatalf("ReplayOutcome(%q) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestQueueRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	queue, err := Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("expected empty queue, got %d commands", len(queue))
	}

	cmd := Command{
		Method: "POST",
		Path:   "/v1/games/abc/allocations",
		Body:   map[string]any{"year": 2021},
	}
	if err := Push(cmd); err != nil {
		t.Fatalf("push: %v", err)
	}

	queue, err = Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(queue) != 1 || queue[0].Path != cmd.Path {
		t.Fatalf("unexpected queue contents: %+v", queue)
	}

	if err := Save(nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	queue, err = Load()
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("expected cleared queue, got %d commands", len(queue))
	}
}
