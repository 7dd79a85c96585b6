package dotdir

import "path/filepath"

// Well-known file names inside a .loam/ directory.
const (
	ConfigFile     = "config.toml"
	StoreFile      = "loam.db"
	SpoolFile      = "spool.log"
	WatermarkFile  = "spool.watermark"
	QuarantineFile = "spool.quarantine"
	IngestLogFile  = "notify.log"
)

// ConfigPath resolves the target directory and returns the config file path.
func (m *Manager) ConfigPath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, ConfigFile)
}

// StorePath resolves the target directory and returns the store file path.
func (m *Manager) StorePath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, StoreFile)
}

// SpoolPath resolves the target directory and returns the spool log path.
func (m *Manager) SpoolPath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, SpoolFile)
}

// WatermarkPath resolves the target directory and returns the watermark path.
func (m *Manager) WatermarkPath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, WatermarkFile)
}

// QuarantinePath resolves the target directory and returns the quarantine path.
func (m *Manager) QuarantinePath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, QuarantineFile)
}

// IngestLogPath resolves the target directory and returns the ingest log path.
func (m *Manager) IngestLogPath(overrideDir string) (string, error) {
	return m.filePath(overrideDir, IngestLogFile)
}

func (m *Manager) filePath(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
