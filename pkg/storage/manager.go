package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager places output files under one directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path resolves name against the output directory. Absolute paths are
// returned unchanged.
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.outputDir, name)
}

// SaveJSON writes v atomically to name and returns the full path.
func (m *Manager) SaveJSON(name string, v interface{}) (string, error) {
	path := m.Path(name)
	if err := WriteJSONAtomic(path, v); err != nil {
		return "", err
	}
	return path, nil
}

// FileInfo describes an existing output file
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Stat reports on an output file, nil when it does not exist.
func (m *Manager) Stat(name string) (*FileInfo, error) {
	path := m.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
