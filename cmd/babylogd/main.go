package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babylog-backend/config"
	"babylog-backend/internal/api"
	"babylog-backend/internal/db"
	"babylog-backend/internal/notify"
	"babylog-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	logger := log.New(os.Stdout, "babylog-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// A missing key pair is a fatal configuration error: no message can
	// ever be sent without it.
	pushClient, err := notify.NewClient(webpushOptions)
	if err != nil {
		logger.Fatalf("push transport: %v. Generate a VAPID key pair and add it to your config file.", err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	logWriter := notify.NewLogWriter(appStore, cfg.Notifier.LogQueueSize)
	logWriter.Start(ctx)

	deliverer := notify.NewDeliverer(pushClient, appStore, logWriter)
	engine := notify.NewEngine(appStore, deliverer, cfg.Notifier.WorkerPoolSize)
	cleanup := notify.NewCleanup(appStore, cfg.Notifier.RetentionDays)

	handler := api.NewHandler(appStore, engine, cleanup, webpushOptions, &cfg.Notifier)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	// Stop the audit log writer and let it drain queued rows.
	cancel()
	logWriter.Wait()

	logger.Println("Server gracefully stopped")
}
