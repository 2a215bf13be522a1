// Package checkpoint persists collection progress so an interrupted
// run can resume from its last cursor instead of paging through the
// feed again.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"igarchive/pkg/logger"
)

// Checkpoint is the saved state of an interrupted collection run
type Checkpoint struct {
	Account      string    `json:"account"`
	Cursor       string    `json:"cursor"`
	PagesFetched int       `json:"pages_fetched"`
	CollectedIDs []string  `json:"collected_ids"`
	TargetCount  int       `json:"target_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Manager handles checkpoint persistence for one account
type Manager struct {
	path string
	log  logger.Logger
}

// NewManager creates a checkpoint manager for the given account,
// storing the file under the platform data directory.
func NewManager(account string) (*Manager, error) {
	dataDir, err := dataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	dir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		path: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", account)),
		log:  logger.GetLogger(),
	}, nil
}

// NewManagerAt creates a manager with an explicit file path. Used in
// tests and when the operator overrides the data directory.
func NewManagerAt(path string) *Manager {
	return &Manager{path: path, log: logger.GetLogger()}
}

// Exists reports whether a checkpoint file is present
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Load reads the stored checkpoint. Returns nil without error when no
// checkpoint exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.log.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"account":    cp.Account,
		"cursor":     cp.Cursor,
		"pages":      cp.PagesFetched,
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	if cp.Version == 0 {
		cp.Version = 1
	}

	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}

// Delete removes the checkpoint. Called after a run completes so the
// next one starts from the top of the feed.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// dataDirectory returns the platform data directory for the archiver
func dataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dataDir = filepath.Join(xdg, "igarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igarchive")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igarchive")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igarchive")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
