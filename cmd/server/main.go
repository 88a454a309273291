package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/flourish/internal/archive"
	"github.com/example/flourish/internal/config"
	"github.com/example/flourish/internal/database"
	"github.com/example/flourish/internal/events"
	"github.com/example/flourish/internal/handlers"
	"github.com/example/flourish/internal/routes"
	"github.com/example/flourish/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	deps := routes.Deps{}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		if err != nil {
			log.Printf("Kafka disabled: %v", err)
		} else {
			defer publisher.Close()
			deps.Publisher = publisher
		}
	}

	if cfg.MongoURI != "" {
		store, err := archive.Connect(context.Background(), cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Printf("Order archive disabled: %v", err)
		} else {
			defer store.Close(context.Background())
			deps.Archive = store
		}
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		deps.Telegram = services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	}
	deps.Email = services.NewEmailService(cfg.SendGridAPIKey, cfg.EmailFrom)

	app := fiber.New(fiber.Config{
		AppName:      "Flourish Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
