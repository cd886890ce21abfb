package stream

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads saved stream preferences. Missing files return defaults.
// Stored values are snapped back onto the slider grid so a hand-edited file cannot produce an invalid config.
func Load(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), false, nil
		}
		return Default(), false, err
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Default(), false, err
	}
	c = c.WithFPS(c.FPS).WithQuality(c.Quality).WithScalePct(c.ScalePct)
	if !c.Cursor.Valid() {
		c.Cursor = CursorSimple
	}
	return c, true, nil
}

// Save writes stream preferences to disk, creating parent directories as needed.
func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Clear removes saved preferences. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
