package main

import (
	"log"

	"strive-chatbot-be/internal/config"
	"strive-chatbot-be/internal/model"
	"strive-chatbot-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: pgcrypto: %v. Continuing...", err)
	}
	if err := database.EnableVector(db); err != nil {
		log.Fatal("Error: pgvector extension is required:", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.Conversation{},
		&model.ConversationExample{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatal("Error: AutoMigrate failed:", err)
	}

	log.Printf("Step 3: Pinning embedding columns to %d dimensions...", cfg.Database.EmbeddingDimension)
	for _, table := range []string{
		model.Conversation{}.TableName(),
		model.ConversationExample{}.TableName(),
	} {
		if err := database.SetVectorDimension(db, table, "embedding", cfg.Database.EmbeddingDimension); err != nil {
			log.Fatal("Error: ", err)
		}
	}

	log.Println("Migration completed")
}
