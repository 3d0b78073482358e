package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir lints every SQL migration in dir: timestamped file names with
// unique versions, an Up section before a Down section, and balanced
// StatementBegin/End blocks. The directory is then collected by goose.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	names, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations in %q: %w", dir, err)
	}
	seen := map[string]string{}
	for _, path := range names {
		base := filepath.Base(path)
		m := sqlFileRe.FindStringSubmatch(base)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", base)
		}
		// goose panics on duplicate versions, so they are caught here first
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, base)
		}
		seen[m[1]] = base
		if err := lintMigration(path); err != nil {
			return fmt.Errorf("migration %q: %w", base, err)
		}
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	return nil
}

func lintMigration(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var seenUp, seenDown bool
	open := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			seenUp = true
		case "-- +goose Down":
			if !seenUp {
				return fmt.Errorf("\"-- +goose Down\" before \"-- +goose Up\"")
			}
			seenDown = true
		case "-- +goose StatementBegin":
			open++
		case "-- +goose StatementEnd":
			open--
			if open < 0 {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case !seenUp:
		return fmt.Errorf("missing \"-- +goose Up\"")
	case !seenDown:
		return fmt.Errorf("missing \"-- +goose Down\"")
	case open != 0:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
