package main

import (
	"log"
	"os"

	"live-relay-be/internal/model"
	"live-relay-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Running AutoMigrate for live tables...")
	if err := db.AutoMigrate(model.LiveModels()...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// AutoMigrate cannot express these checks.
	log.Println("Step 2: Adding constraints...")
	postMigrationSQL := []string{
		`DO $$ BEGIN
		   ALTER TABLE live_sessions ADD CONSTRAINT chk_live_sessions_member_count CHECK (member_count >= 0);
		 EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
		`DO $$ BEGIN
		   ALTER TABLE live_sessions ADD CONSTRAINT chk_live_sessions_type CHECK (session_type IN ('official', 'community'));
		 EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
		`DO $$ BEGIN
		   ALTER TABLE live_session_members ADD CONSTRAINT chk_live_members_role CHECK (role IN ('broadcaster', 'listener'));
		 EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
