package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
)

const (
	migrationsTable = "schema_migrations"
	migrationsDir   = "migrations"
)

type migration struct {
	ID        string
	Filename  string
	AppliedAt time.Time
}

func main() {
	var (
		action     = flag.String("action", "up", "Migration action: up, down, status, create")
		name       = flag.String("name", "", "Migration name (for create action)")
		configPath = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := &migrator{db: db}
	ctx := context.Background()

	switch *action {
	case "up":
		err = m.up(ctx)
	case "down":
		err = m.down(ctx)
	case "status":
		err = m.status(ctx)
	case "create":
		if *name == "" {
			slog.Error("migration name is required for create action")
			os.Exit(1)
		}
		err = m.create(*name)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

type migrator struct {
	db *sql.DB
}

func (m *migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, migrationsTable)

	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *migrator) applied(ctx context.Context) (map[string]migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensuring migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, filename, applied_at FROM %s ORDER BY id", migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]migration)
	for rows.Next() {
		var mg migration
		if err := rows.Scan(&mg.ID, &mg.Filename, &mg.AppliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[mg.ID] = mg
	}
	return applied, rows.Err()
}

// pending lists up-migrations on disk that have not been applied, in order
func (m *migrator) pending(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var pending []string
	for _, f := range files {
		if _, ok := applied[migrationID(f)]; !ok {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

func (m *migrator) up(ctx context.Context) error {
	pending, err := m.pending(ctx)
	if err != nil {
		return err
	}

	for _, f := range pending {
		if err := m.applyFile(ctx, f, true); err != nil {
			return fmt.Errorf("applying %s: %w", f, err)
		}
		slog.Info("applied migration", "file", f)
	}

	slog.Info("migrations complete", "applied", len(pending))
	return nil
}

func (m *migrator) down(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		slog.Info("nothing to roll back")
		return nil
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	last := ids[len(ids)-1]

	downFile := filepath.Join(migrationsDir, last+".down.sql")
	if err := m.applyFile(ctx, downFile, false); err != nil {
		return fmt.Errorf("rolling back %s: %w", downFile, err)
	}

	slog.Info("rolled back migration", "id", last)
	return nil
}

func (m *migrator) status(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	pending, err := m.pending(ctx)
	if err != nil {
		return err
	}

	slog.Info("migration status", "applied", len(applied), "pending", len(pending))
	for _, f := range pending {
		slog.Info("pending", "file", f)
	}
	return nil
}

func (m *migrator) create(name string) error {
	id := time.Now().UTC().Format("20060102150405") + "_" + strings.ReplaceAll(name, " ", "_")
	for _, suffix := range []string{".up.sql", ".down.sql"} {
		path := filepath.Join(migrationsDir, id+suffix)
		if err := os.WriteFile(path, []byte("-- "+name+"\n"), 0o644); err != nil {
			return err
		}
		slog.Info("created", "file", path)
	}
	return nil
}

func (m *migrator) applyFile(ctx context.Context, path string, up bool) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		return err
	}

	id := migrationID(path)
	if up {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (id, filename) VALUES ($1, $2)", migrationsTable),
			id, filepath.Base(path))
	} else {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = $1", migrationsTable), id)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// migrationID strips the directory and the .up.sql/.down.sql suffix
func migrationID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".up.sql")
	base = strings.TrimSuffix(base, ".down.sql")
	return base
}
