package database

import (
	"fmt"
	"os"

	"github.com/spllit/spllit-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema plus the constraints AutoMigrate can't express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.Match{},
		&models.Message{},
		&models.LocationPing{},
	)
	if err != nil {
		return err
	}

	// One live (non-rejected) join per requester per ride. The count check in
	// the match engine is advisory; this index is the authoritative guard.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_live_requester
		ON matches (ride_id, requester_id)
		WHERE status <> 'rejected' AND deleted_at IS NULL`).Error
}
