// Command migrate applies or rolls back the embedded schema migrations.
//
// Usage:
//
//	migrate [up|down|status|version]
//
// The target database comes from SENSORIUM_PG_DSN.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"sensorium.org/internal/migrations"
)

func main() {
	dsn := os.Getenv("SENSORIUM_PG_DSN")
	if dsn == "" {
		log.Fatal("SENSORIUM_PG_DSN is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	ctx := context.Background()
	switch cmd {
	case "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	case "version":
		err = goose.VersionContext(ctx, db, ".")
	default:
		log.Fatalf("unknown command %q (want up, down, status or version)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
