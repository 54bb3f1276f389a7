// Package syncq persists allocation submissions made while the API is
// unreachable, for later replay. The state machine makes replay safe: a
// submission that already went through is rejected deterministically, so
// the queue can treat those rejections as applied.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type Command struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body,omitempty"`
}

// Outcome is what replay should do with a command that failed.
type Outcome int

const (
	// OutcomeRetry keeps the command queued for the next sync.
	OutcomeRetry Outcome = iota
	// OutcomeAlreadyApplied drops the command: the server already holds
	// a submission for that round.
	OutcomeAlreadyApplied
	// OutcomeDrop discards the command: the rejection is deterministic
	// and replaying it will never succeed.
	OutcomeDrop
)

// ReplayOutcome classifies a failed replay by the server's error code.
// An empty code means the API was unreachable.
func ReplayOutcome(code string) Outcome {
	switch code {
	case "", "TX_CONFLICT":
		return OutcomeRetry
	case "WRONG_YEAR", "ALREADY_SUBMITTED":
		return OutcomeAlreadyApplied
	default:
		return OutcomeDrop
	}
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".ody")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}
