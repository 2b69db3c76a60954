package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/photosnap/forge/internal/api"
	"github.com/photosnap/forge/internal/config"
	"github.com/photosnap/forge/internal/inference"
	"github.com/photosnap/forge/internal/service"
	"github.com/photosnap/forge/internal/storage"
	"github.com/photosnap/forge/internal/store"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("forge: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"inference_url", cfg.InferenceURL,
		"default_model", cfg.DefaultModel,
	)

	if cfg.ModelAccessKey == "" {
		logger.Warn("DO_MODEL_ACCESS_KEY not set; inference requests will be unauthenticated")
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	client := inference.NewClient(inference.Config{
		BaseURL:   cfg.InferenceURL,
		AccessKey: cfg.ModelAccessKey,
	}, logger)

	var uploader storage.Uploader
	if cfg.Spaces.Configured() {
		sp, err := storage.NewSpacesUploader(cfg.Spaces)
		if err != nil {
			log.Fatalf("failed to configure spaces uploader: %v", err)
		}
		uploader = sp
		logger.Info("spaces uploader configured", "bucket", cfg.Spaces.Bucket, "region", cfg.Spaces.Region)
	} else {
		logger.Warn("spaces credentials not set; upload endpoints disabled")
	}

	svc := service.NewService(db, client, uploader, logger, service.Options{
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	})

	srv := api.NewServer(cfg.ListenAddr, db, svc, cfg.DefaultModel, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Drain in-flight async generations before exiting.
	svc.Wait()
}
