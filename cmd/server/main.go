package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/config"
	"github.com/kuadra/cocheras-api/internal/database"
	"github.com/kuadra/cocheras-api/internal/handler"
	"github.com/kuadra/cocheras-api/internal/middleware"
	"github.com/kuadra/cocheras-api/internal/queue"
	"github.com/kuadra/cocheras-api/internal/repository"
	"github.com/kuadra/cocheras-api/internal/router"
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

	// Redis backs the rate limiter and the public response cache. A nil
	// client disables both rather than blocking startup.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	spaces := repository.NewSpaceRepo(db)
	districts := repository.NewDistrictRepo(db)
	reservations := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	notifications := repository.NewNotificationRepo(db)
	reviews := repository.NewReviewRepo(db)
	owners := repository.NewOwnerRepo(db)

	h := router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, users, tokens),
		Users:         handler.NewUserHandler(cfg, users, tokens),
		Spaces:        handler.NewSpaceHandler(spaces, districts, reservations),
		Districts:     handler.NewDistrictHandler(districts),
		Reservations:  handler.NewReservationHandler(reservations, spaces),
		Payments:      handler.NewPaymentHandler(payments, reservations, spaces, notifications),
		Notifications: handler.NewNotificationHandler(notifications),
		Reviews:       handler.NewReviewHandler(reviews, reservations, spaces),
		Owners:        handler.NewOwnerHandler(owners, spaces, reservations),
		Search:        handler.NewSearchHandler(spaces),
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	var cacheMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAPI(e, h, cfg.JWTSecret, cacheMW)

	// Consumes payment.confirmed events and appends them to
	// logs/payments.log; reconnects on broker failure.
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment consumer stopped: %v", err)
		}
	}()

	// Revoked and expired refresh tokens pile up; sweep them hourly.
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := tokens.PurgeExpired(ctx, 24*time.Hour)
			cancel()
			if err != nil {
				log.Printf("token purge: %v", err)
			} else if n > 0 {
				log.Printf("token purge: removed %d expired tokens", n)
			}
			time.Sleep(time.Hour)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
