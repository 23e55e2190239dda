package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const stateFileName = "current_session"

// stateFilePath returns the path of the current-session file under dir,
// creating dir if needed.
func stateFilePath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return filepath.Join(dir, stateFileName), nil
}

// LoadCurrent reads the session ID recorded under dir so consecutive CLI
// invocations continue the same conversation. Returns (nil, nil) when no
// current session is recorded.
func LoadCurrent(dir string) (*uuid.UUID, error) {
	path, err := stateFilePath(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID in state file: %w", err)
	}
	return &id, nil
}

// SaveCurrent records id as the current session under dir.
func SaveCurrent(dir string, id uuid.UUID) error {
	path, err := stateFilePath(dir)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// ClearCurrent forgets the current session. Idempotent.
func ClearCurrent(dir string) error {
	path, err := stateFilePath(dir)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
