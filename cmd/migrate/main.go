// cmd/migrate/main.go
package main

import (
	"flag"
	"log"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	seed := flag.Bool("seed", false, "insert reference schools and aid categories")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	config.InitDB(cfg)

	if err := config.DB.AutoMigrate(models.All()...); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}
	log.Printf("Migrated %d tables", len(models.All()))

	if *seed {
		if err := seedReference(config.DB); err != nil {
			log.Fatal("Failed to seed reference data:", err)
		}
		log.Println("Reference data seeded")
	}

	log.Println("Migration completed!")
}

func seedReference(db *gorm.DB) error {
	schools := []models.School{
		{ID: 1, Name: "Central State University", Code: "CSU"},
		{ID: 2, Name: "Northern Polytechnic College", Code: "NPC"},
	}
	tuitionCap := 50000.0
	categories := []models.AidCategory{
		{ID: 1, Name: "Tuition Assistance", MaxAmount: &tuitionCap, IsActive: true},
		{ID: 2, Name: "Living Allowance", IsActive: true},
		{ID: 3, Name: "Book Grant", IsActive: true},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&schools).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&categories).Error
	})
}
