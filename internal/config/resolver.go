package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/applymytech/openElara/modules/docstore/sqlite"
)

// ErrStorageRoot is matched by the error ResolveRoot returns for a storage
// root that does not exist.
var ErrStorageRoot = errors.New("config: storage root does not exist")

// RootError reports a missing storage root.
type RootError struct {
	Path string
}

func (e *RootError) Error() string {
	return "Database path does not exist: " + e.Path
}

// Is makes errors.Is(err, ErrStorageRoot) hold.
func (e *RootError) Is(target error) bool { return target == ErrStorageRoot }

// ResolveRoot returns the absolute storage root. The directory must exist;
// it is never created.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("config: resolving storage root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", &RootError{Path: abs}
	}
	return abs, nil
}

// DBPath returns the default database file under a storage root.
func DBPath(root string) string {
	return filepath.Join(root, "db", sqlite.DefaultDBFile)
}

// Discover returns the config path to load for a storage root: explicit
// when set, else <root>/elara-rag.yaml if it exists, else "".
func Discover(explicit, root string) string {
	if explicit != "" {
		return explicit
	}
	candidate := filepath.Join(root, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
