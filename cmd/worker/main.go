package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-studykit-be/internal/bootstrap"
	"ai-studykit-be/internal/config"
	"ai-studykit-be/internal/service"
	"ai-studykit-be/pkg/database"
)

func main() {
	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewWorkerContainer(gormDB, cfg)
	defer container.Dispatcher.Close()
	if container.EventPublisher != nil {
		defer container.EventPublisher.Close()
	}

	if err := container.Dispatcher.Consume(
		service.TaskTypeStudyKit,
		"studykit-workers",
		container.WorkerService.HandleTask,
	); err != nil {
		log.Fatalf("[FATAL] Failed to start consuming tasks: %v", err)
	}

	log.Println("✅ Worker is running, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Worker shutting down...")
}
