package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the effective configuration plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when defaults were used because Path was missing.
	Exists bool
}

// Load reads the config at explicitPath (or the default location), layers it
// over Default, and resolves credentials. A missing file is a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	out := Loaded{Path: path, Config: Default()}
	if err := out.readFile(); err != nil {
		return Loaded{}, err
	}

	warnings, err := ResolveCredentials(&out.Config, path)
	if err != nil {
		return Loaded{}, err
	}
	out.Warnings = append(out.Warnings, warnings...)
	return out, nil
}

func (l *Loaded) readFile() error {
	content, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		l.Warnings = append(l.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", l.Path),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %q: %w", l.Path, err)
	}

	cfg, warnings, err := Parse(string(content), l.Config)
	if err != nil {
		return fmt.Errorf("parse config %q: %w", l.Path, err)
	}
	l.Config, l.Exists = cfg, true
	l.Warnings = append(l.Warnings, warnings...)
	return nil
}
