package cfg

import (
	"fmt"
	"path/filepath"
)

// HTTPAddr is the listen address of the prediction API.
func (s *Settings) HTTPAddr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}

// MetricsAddr is the listen address of the metrics and health server.
func (s *Settings) MetricsAddr() string {
	return fmt.Sprintf(":%d", s.MetricsPort)
}

// BoltPath is the database file used by the embedded storage backend.
func (s *Settings) BoltPath() string {
	return filepath.Join(s.DataPath, "hemocheck.db")
}
