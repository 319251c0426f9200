package main

import (
	"context"
	"log"
	"time"

	"ai-studykit-be/internal/bootstrap"
	"ai-studykit-be/internal/config"
	"ai-studykit-be/internal/server"
	"ai-studykit-be/internal/tracer"
	"ai-studykit-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Dispatcher.Close()
	if container.EventPublisher != nil {
		defer container.EventPublisher.Close()
	}

	// Background janitor: cleanup bus consumer plus the staging sweep.
	go func() {
		log.Println("Background: Starting Janitor Service...")
		if err := container.JanitorService.Consume(context.Background()); err != nil {
			log.Printf("Background Janitor Error: %v", err)
		}
	}()
	go container.JanitorService.RunSweepLoop(context.Background(), 1*time.Hour)

	srv := server.New(cfg, container)

	log.Fatal(srv.Run())
}
