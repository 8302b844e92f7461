package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/gosimple/slug"
)

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned up/down pair
type Migration struct {
	Version uint
	Name    string
	HasUp   bool
	HasDown bool
}

// Embedded lists the migrations compiled into the binary
func Embedded() ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, migrationsDir)
	if err != nil {
		return nil, err
	}
	return List(sub)
}

// List returns the migrations found in fsys ordered by version.
// Files not following {version}_{name}.{up|down}.sql are ignored.
func List(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			continue
		}
		m, ok := byVersion[uint(v)]
		if !ok {
			m = &Migration{Version: uint(v), Name: match[2]}
			byVersion[uint(v)] = m
		}
		if match[3] == "up" {
			m.HasUp = true
		} else {
			m.HasDown = true
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Create writes an empty up/down pair into dir, numbered after the highest
// existing version. It is meant for the source tree (internal/infrastructure/migration/sql).
func Create(dir, name string) (up, down string, err error) {
	base := slug.Make(name)
	if base == "" {
		return "", "", fmt.Errorf("invalid migration name %q", name)
	}
	base = regexp.MustCompile(`-+`).ReplaceAllString(base, "_")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create migrations directory: %w", err)
	}
	existing, err := List(os.DirFS(dir))
	if err != nil {
		return "", "", err
	}
	next := uint(1)
	if len(existing) > 0 {
		next = existing[len(existing)-1].Version + 1
	}

	prefix := fmt.Sprintf("%06d_%s", next, base)
	up = filepath.Join(dir, prefix+".up.sql")
	down = filepath.Join(dir, prefix+".down.sql")
	if err := os.WriteFile(up, []byte("-- "+name+"\n"), 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(down, []byte("-- rollback "+name+"\n"), 0o644); err != nil {
		_ = os.Remove(up)
		return "", "", err
	}
	return up, down, nil
}
