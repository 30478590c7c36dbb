// Command migrate runs schema operations.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"pulse/internal/config"
	"pulse/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <auto|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "auto":
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		ok := true
		for _, st := range status {
			switch {
			case !st.Exists:
				ok = false
				log.Printf("missing table: %s", st.Table)
			case len(st.Missing) > 0:
				ok = false
				log.Printf("table %s missing indexes: %s", st.Table, strings.Join(st.Missing, ", "))
			default:
				log.Printf("ok: %s", st.Table)
			}
		}
		if !ok {
			return fmt.Errorf("schema is not up to date; run: go run ./cmd/migrate auto")
		}
	default:
		return usage()
	}

	return nil
}
