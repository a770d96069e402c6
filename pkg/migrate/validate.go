package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks every .sql file in dir: the name must be
// YYYYMMDDHHMMSS_name.sql with a unique version, and the body must declare an
// Up section followed by a Down section.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		if err := checkSections(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkSections(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	upLine, downLine, line := 0, 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		switch strings.TrimSpace(scanner.Text()) {
		case upMarker:
			if upLine == 0 {
				upLine = line
			}
		case downMarker:
			if downLine == 0 {
				downLine = line
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case upLine == 0:
		return fmt.Errorf("missing %q", upMarker)
	case downLine == 0:
		return fmt.Errorf("missing %q", downMarker)
	case downLine < upLine:
		return errors.New("down section precedes up section")
	}
	return nil
}
