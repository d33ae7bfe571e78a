package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"restaurant-queue/config"
	"restaurant-queue/fanout"
	"restaurant-queue/handlers"
	_ "restaurant-queue/migrations"
	"restaurant-queue/monitoring"
	"restaurant-queue/security"
	"restaurant-queue/services"
	"restaurant-queue/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Initialize monitoring
	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
		go monitoring.StartMetricsServer(cfg.MetricsPort)
	}

	// Initialize services
	broker := fanout.NewBroker()
	notifier := services.NewNotifyService(pn)
	queueService := services.NewQueueService(redisClient, cfg, broker, notifier, monitor)
	limiter := security.NewRateLimiter(redisClient)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(app, queueService, limiter)
	authHandler := handlers.NewAuthHandler(app, redisClient, cfg)
	staffHandler := handlers.NewStaffHandler(app, queueService, authHandler)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	queueService.StartBackgroundTasks()

	// Setup graceful shutdown
	go handleShutdown(queueService, monitor)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncSettingsToRedis(app, redisClient)

		// Customer endpoints
		e.Router.POST("/api/v1/queue/join", queueHandler.Join)
		e.Router.GET("/api/v1/queue/search", queueHandler.Search)
		e.Router.GET("/api/v1/queue/{id}/status", queueHandler.GetStatus)
		e.Router.GET("/api/v1/queue/{id}/stream", queueHandler.StreamStatus)
		e.Router.POST("/api/v1/queue/{id}/leave", queueHandler.Leave)

		// Staff session
		e.Router.POST("/api/v1/staff/login", authHandler.Login)
		e.Router.POST("/api/v1/staff/logout", authHandler.Logout)

		// Staff endpoints
		e.Router.POST("/api/v1/staff/advance", staffHandler.Advance)
		e.Router.POST("/api/v1/staff/reorder", staffHandler.Reorder)
		e.Router.POST("/api/v1/staff/remove", staffHandler.Remove)
		e.Router.GET("/api/v1/staff/queue", staffHandler.ListQueue)
		e.Router.GET("/api/v1/staff/queue/stream", staffHandler.StreamQueue)
		e.Router.GET("/api/v1/staff/stats/daily", staffHandler.DailyStats)
		e.Router.GET("/api/v1/staff/stats/monthly", staffHandler.MonthlyStats)
		e.Router.GET("/api/v1/staff/history", staffHandler.History)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupSettingsHooks(app, redisClient)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// syncSettingsToRedis mirrors the tunable settings collection into the
// Redis settings hash the queue service reads on its hot path.
func syncSettingsToRedis(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT key, value FROM settings",
	).All(&records); err != nil {
		log.Printf("Error fetching settings: %v", err)
		return
	}

	synced := 0
	for _, record := range records {
		key := record["key"].String
		value := record["value"].String
		if key == "" {
			continue
		}
		if err := redisClient.HSet(ctx, "settings:config", key, value).Err(); err != nil {
			slog.Error("Failed to sync setting to Redis", "key", key, "error", err)
			continue
		}
		synced++
	}

	log.Printf("Synced %d settings to Redis", synced)
}

// setupSettingsHooks keeps the Redis settings hash current when staff edit
// the settings collection through the admin UI.
func setupSettingsHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	sync := func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		key := e.Record.GetString("key")
		value := e.Record.GetString("value")

		if err := redisClient.HSet(ctx, "settings:config", key, value).Err(); err != nil {
			// A Redis sync failure should not fail the admin request.
			slog.Error("Failed to sync updated setting to Redis", "key", key, "error", err)
			return e.Next()
		}
		slog.Info("Synced setting to Redis", "key", key)
		return e.Next()
	}

	app.OnRecordCreateRequest("settings").BindFunc(sync)
	app.OnRecordUpdateRequest("settings").BindFunc(sync)

	app.OnRecordDeleteRequest("settings").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		key := e.Record.GetString("key")
		if err := redisClient.HDel(ctx, "settings:config", key).Err(); err != nil {
			slog.Error("Failed to remove deleted setting from Redis", "key", key, "error", err)
			return e.Next()
		}
		slog.Info("Removed setting from Redis", "key", key)
		return e.Next()
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(queueService *services.QueueService, monitor *monitoring.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	monitor.Stop()
	queueService.Shutdown()
}
