// Package configuration implements the settings store, which remembers the
// last used source and destination parent between runs.
package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// AppName is the directory name used below the XDG base directories.
	AppName = "relocator"

	// KeySource is the settings key of the last used source.
	KeySource = "RELOCATOR_SOURCE"

	// KeyDestinationParent is the settings key of the last used destination parent.
	KeyDestinationParent = "RELOCATOR_DESTINATION_PARENT"

	settingsFile = "settings.env"
	journalFile  = "journal.db"
)

type genericConfigProvider interface {
	Read(filenames ...string) (envMap map[string]string, err error)
	Write(envMap map[string]string, filename string) error
}

// Settings are the values remembered between runs. Empty fields are unset.
type Settings struct {
	Source            string
	DestinationParent string
}

// Store is the principal implementation of the settings store.
type Store struct {
	path                string
	genericConfigReader genericConfigProvider
}

// NewStore returns a pointer to a new settings [Store] for the file at path.
func NewStore(path string, genericConfigReader genericConfigProvider) *Store {
	return &Store{
		path:                path,
		genericConfigReader: genericConfigReader,
	}
}

// Path returns the path of the settings file.
func (c *Store) Path() string {
	return c.path
}

// DefaultSettingsPath returns the default location of the settings file.
func DefaultSettingsPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, settingsFile)
}

// DefaultJournalPath returns the default location of the run journal.
func DefaultJournalPath() string {
	return filepath.Join(xdg.DataHome, AppName, journalFile)
}

// Load reads the settings file. A missing or unreadable file is not an error,
// but results in empty [Settings].
func (c *Store) Load() Settings {
	envMap, err := c.genericConfigReader.Read(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failure reading settings (skipped)",
				"path", c.path,
				"err", err,
			)
		}

		return Settings{}
	}

	return Settings{
		Source:            MapKeyToString(envMap, KeySource),
		DestinationParent: MapKeyToString(envMap, KeyDestinationParent),
	}
}

// Save writes the settings file, creating its parent directory if needed.
func (c *Store) Save(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("(config-save) failed to create directory: %w", err)
	}

	envMap := map[string]string{
		KeySource:            s.Source,
		KeyDestinationParent: s.DestinationParent,
	}

	if err := c.genericConfigReader.Write(envMap, c.path); err != nil {
		return fmt.Errorf("(config-save) failed to write: %w", err)
	}

	return nil
}

// MapKeyToString returns the value of key, or an empty string if it is not set.
func MapKeyToString(envMap map[string]string, key string) string {
	if value, exists := envMap[key]; exists {
		return value
	}

	return ""
}
