package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckExisting checks if megaid.yml already exists in dir
// Returns an error if it does, nil otherwise
func CheckExisting(dir string) error {
	path := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'megaid init --force' to reinitialize (this will overwrite existing configuration)", ConfigFile)
	}
	return nil
}
