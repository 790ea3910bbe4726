package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"association-party/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const migrationsDir = "db/migrations"

func main() {
	create := flag.String("create", "", "create an empty up/down migration pair with this name")
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	if *create != "" {
		if err := createMigration(migrationsDir, *create, time.Now().UTC()); err != nil {
			log.Fatalf("create migration: %v", err)
		}
		return
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	m, err := migrate.New("file://"+migrationsDir, mustDatabaseURL())
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")
}

func mustDatabaseURL() string {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	return dsn
}

func createMigration(dir, name string, now time.Time) error {
	if strings.ContainsAny(name, " /") {
		return fmt.Errorf("migration name %q must not contain spaces or slashes", name)
	}
	base := fmt.Sprintf("%s_%s", now.Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeFile(upPath, "-- up migration\n"); err != nil {
		return err
	}
	if err := writeFile(downPath, "-- down migration\n"); err != nil {
		return err
	}
	log.Printf("created %s and %s", upPath, downPath)
	return nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
