package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"arena/internal/config"
	"arena/internal/db"
	"arena/internal/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := migrate(cfg.DatabaseURL, dir, log); err != nil {
		log.Fatalw("migration failed", "error", err)
	}
}

func migrate(databaseURL, dir string, log *zap.SugaredLogger) error {
	database, err := db.Connect(databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		applied, err := alreadyApplied(database, filename)
		if err != nil {
			return err
		}
		if applied {
			log.Debugw("migration already applied", "file", filename)
			continue
		}
		if err := applyInTx(database, file, filename); err != nil {
			return fmt.Errorf("apply %s: %w", filename, err)
		}
		log.Infow("applied migration", "file", filename)
	}
	return nil
}

func alreadyApplied(database *sqlx.DB, filename string) (bool, error) {
	var exists bool
	if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
		return false, fmt.Errorf("read migration state: %w", err)
	}
	return exists, nil
}

// applyInTx runs the up section of a file and records it, all or nothing.
func applyInTx(database *sqlx.DB, path, filename string) error {
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	if err := applyFile(tx, path); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func applyFile(db execer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	up, _, _ := strings.Cut(string(content), downMarker)
	for _, stmt := range splitSQL(up) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL breaks a script on statement-terminating semicolons. Comment lines
// are dropped and $$-quoted bodies are kept whole.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	inDollar := false
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if !inDollar && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Count(line, "$$")%2 == 1 {
			inDollar = !inDollar
		}
		if !inDollar && strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
