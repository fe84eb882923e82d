package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regsync/adapters"
	"regsync/config"
	"regsync/database"
	"regsync/events"
	"regsync/handlers"
	"regsync/metrics"
	"regsync/models"
	"regsync/notify"
	"regsync/suppress"
	"regsync/syncer"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	db, err := setupDatabase(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		log.WithError(err).Fatal("Failed to initialize database schema")
	}

	store := database.NewService(db)

	catalog := adapters.NewClient(cfg.CatalogBaseURL, cfg.CatalogAppToken, cfg.FetchLimit, cfg.FetchTimeout)
	registry := adapters.NewRegistry(catalog)

	suppressor := suppress.NewEngine(map[models.Authority]int{
		models.AuthorityDOB:  cfg.SuppressDOBDays,
		models.AuthorityOATH: cfg.SuppressOATHDays,
		models.AuthorityHPD:  cfg.SuppressHPDDays,
		models.AuthorityFDNY: cfg.SuppressFDNYDays,
	})

	var gateways []notify.Gateway
	if cfg.SendGridAPIKey != "" {
		gateways = append(gateways, notify.NewEmailGateway(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail))
	}
	if cfg.SMSGatewayURL != "" {
		gateways = append(gateways, notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayTimeout))
	}
	dispatcher := notify.NewDispatcher(store, gateways...)

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize change-event publisher, continuing without it")
		} else {
			defer publisher.Close()
			log.Infof("Change-event publisher initialized: exchange=%s, routing_key=%s", cfg.AMQPExchange, cfg.AMQPRoutingKey)
		}
	}

	orchestrator := syncer.New(store, registry, suppressor, dispatcher, publisher, syncer.Options{
		PropertyDelay:     cfg.PropertyDelay,
		Workers:           cfg.WorkerCount,
		ActivityDetailCap: cfg.ActivityDetailCap,
	})

	metrics.Register()

	router := setupRouter(orchestrator, db)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Sync engine listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Retry with exponential backoff so a restart does not race the database.
	waitInterval := 1 * time.Second
	for attempt := 0; ; attempt++ {
		if err := db.Ping(); err == nil {
			break
		} else if attempt >= 6 {
			return nil, err
		} else {
			log.WithError(err).Warnf("Database connection failed, retrying in %v", waitInterval)
		}
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	return db, nil
}

func setupRouter(orchestrator *syncer.Orchestrator, db *sql.DB) *gin.Engine {
	router := gin.Default()

	h := handlers.NewHandlers(orchestrator, db)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v3")
	{
		api.POST("/sync/property", h.SyncProperty)
		api.POST("/sync/run", h.RunSync)
	}

	return router
}
