package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/qrengage/docpipe/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// embedDimToken is replaced with the configured embedding dimension when a
// migration is applied, so the vector column width always matches what the
// embedder produces.
const embedDimToken = "{embed_dim}"

const defaultEmbedDim = 768

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// renderMigration substitutes the embedding dimension into the migration
// text and splits it into executable statements.
func renderMigration(content string, embedDim int) []string {
	if embedDim <= 0 {
		embedDim = defaultEmbedDim
	}
	content = strings.ReplaceAll(content, embedDimToken, strconv.Itoa(embedDim))
	var statements []string
	for _, q := range strings.Split(content, ";") {
		q = strings.TrimSpace(q)
		if q != "" {
			statements = append(statements, q)
		}
	}
	return statements
}

// ApplyMigrations runs the embedded migrations in file-name order. Every
// statement is idempotent, so reapplying on startup is safe.
func ApplyMigrations(db *sql.DB, embedDim int) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range renderMigration(string(content), embedDim) {
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}
