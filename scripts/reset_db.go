package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"otplink/internal/config"
	"otplink/internal/database"
	"otplink/internal/db"
	"otplink/internal/models"
	"otplink/internal/persistence"
	"otplink/internal/repositories"
	"otplink/internal/store"
)

// Clears the OTP history of the configured store, and optionally resets the
// saved configuration to defaults.
func main() {
	settings := flag.Bool("settings", false, "also reset keywords, webhook and email settings")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	fmt.Println("========================================")
	fmt.Println("   Reset OTPLink data")
	fmt.Println("========================================")
	fmt.Printf("Storage: %s\n", cfg.Storage.Driver)
	fmt.Println("This will delete the OTP history.")
	if *settings {
		fmt.Println("The saved configuration will be replaced with defaults.")
	}

	if !*yes {
		fmt.Print("Type 'yes' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("Reset cancelled.")
			return
		}
	}

	ctx := context.Background()
	s, err := open(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open store: %v", err)
	}
	defer s.Close()

	if err := s.ClearOTPRecords(ctx); err != nil {
		log.Fatalf("Failed to clear history: %v", err)
	}
	fmt.Println("✓ OTP history cleared")

	if *settings {
		if err := s.SaveConfiguration(ctx, models.DefaultConfiguration()); err != nil {
			log.Fatalf("Failed to reset configuration: %v", err)
		}
		fmt.Println("✓ Configuration reset to defaults")
	}
}

func open(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	if cfg.Storage.Driver != "postgres" {
		return persistence.OpenBolt(cfg.Storage.BoltPath)
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.NewMigrator(pool, zap.NewNop()).RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repositories.NewPostgresStore(pool), nil
}
