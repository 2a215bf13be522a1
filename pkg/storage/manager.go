// Package storage handles media files on disk and duplicate detection
// across runs.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager stores downloaded media under a single directory. File names
// are deterministic, so a re-run recognizes what it already has.
type Manager struct {
	outputDir  string
	downloaded map[string]bool
	mu         sync.RWMutex
}

// NewManager creates a storage manager rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	m := &Manager{
		outputDir:  outputDir,
		downloaded: make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan media directory: %w", err)
	}

	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		m.downloaded[name] = true
	}

	return nil
}

// MediaFilename builds the deterministic name for one media item:
// username_postID.ext for single media, username_postID_n.ext for
// album children.
func MediaFilename(username, postID string, index int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if index > 0 {
		return fmt.Sprintf("%s_%s_%d%s", sanitize(username), sanitize(postID), index, ext)
	}
	return fmt.Sprintf("%s_%s%s", sanitize(username), sanitize(postID), ext)
}

// sanitize strips path separators and other characters that would
// break a filename
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		default:
			return r
		}
	}, s)
}

// IsDownloaded checks whether the named file already exists. A .tmp
// leftover from a crashed run is an in-flight write, never a download.
func (m *Manager) IsDownloaded(filename string) bool {
	if strings.HasSuffix(filename, ".tmp") {
		return false
	}

	m.mu.RLock()
	known := m.downloaded[filename]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, filename)); err == nil {
		m.mu.Lock()
		m.downloaded[filename] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Save writes media from r under the given name. The file appears
// atomically via a temp name and rename.
func (m *Manager) Save(r io.Reader, filename string) (string, error) {
	path := filepath.Join(m.outputDir, filename)
	tmp := path + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write media data: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close media file: %w", closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize media file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[filename] = true
	m.mu.Unlock()

	return path, nil
}

// OutputDir returns the media directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// DownloadedCount returns how many media files are present
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}
