package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/config"
	"github.com/iliyamo/room-reservation/internal/database"
	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/router"
	"github.com/iliyamo/room-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rooms := repository.NewRoomRepo(db)
	reservations := repository.NewReservationRepo(db)
	notifications := repository.NewNotificationRepo(db)
	incidents := repository.NewIncidentRepo(db)

	notifier := service.NewNotifier(notifications)

	// Redis is optional: without it the cache and rate limiter degrade to
	// pass-through middleware.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; cache and rate limiting disabled")
	}
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	rateMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		Rooms:         handler.NewRoomHandler(rooms),
		Reservations:  handler.NewReservationHandler(reservations, rooms, users, notifier),
		Approvals:     handler.NewApprovalHandler(reservations, rooms, users, notifier),
		Notifications: handler.NewNotificationHandler(notifications),
		Incidents:     handler.NewIncidentHandler(incidents, rooms, users, notifier),
	}, cfg.JWTSecret, cacheMW, rateMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
