package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"skillsetu/backend/internal/api/handler"
	"skillsetu/backend/internal/storage"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  migrate up|down|status      apply, roll back or show schema migrations
  session <session_id>        print a session with its feedback
  reports <session_id>        list abuse reports filed on a session
  token <user_id> [hours]     issue a JWT for local testing`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	dsn := os.Getenv("DATABASE_DSN")
	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin migrate up|down|status")
			os.Exit(1)
		}
		db := openSQL(dsn)
		defer db.Close()
		if err := migrate(ctx, db, os.Args[2]); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case "session":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin session <session_id>")
			os.Exit(1)
		}
		sess, err := openStore(dsn).GetSession(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Error loading session: %v", err)
		}
		printJSON(sess)
	case "reports":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reports <session_id>")
			os.Exit(1)
		}
		reports, err := openStore(dsn).ListReportsBySession(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Error listing reports: %v", err)
		}
		printJSON(reports)
	case "token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin token <user_id> [hours]")
			os.Exit(1)
		}
		hours := 24
		if len(os.Args) > 3 {
			if _, err := fmt.Sscanf(os.Args[3], "%d", &hours); err != nil || hours <= 0 {
				fmt.Println("Invalid duration. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			log.Fatal("JWT_SECRET is required")
		}
		tok, err := handler.IssueToken([]byte(secret), os.Args[2], time.Duration(hours)*time.Hour)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(tok)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, db *sql.DB, direction string) error {
	switch direction {
	case "up":
		if err := storage.Migrate(ctx, db); err != nil {
			return err
		}
	case "down":
		if err := storage.MigrateDown(ctx, db); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	version, err := storage.MigrationVersion(ctx, db)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d\n", version)
	return nil
}

func openSQL(dsn string) *sql.DB {
	if dsn == "" {
		log.Fatal("DATABASE_DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return db
}

// openStore reuses the lib/pq pool for gorm. No redis needed for admin CLI.
func openStore(dsn string) *storage.Service {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: openSQL(dsn)}), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return storage.NewStorageService(db, nil)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Error encoding output: %v", err)
	}
}
