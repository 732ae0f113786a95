package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/vfsbus/bus-booking/internal/config"
	"github.com/vfsbus/bus-booking/internal/database"
	"github.com/vfsbus/bus-booking/internal/gateway"
	"github.com/vfsbus/bus-booking/internal/handler"
	"github.com/vfsbus/bus-booking/internal/queue"
	"github.com/vfsbus/bus-booking/internal/repository"
	"github.com/vfsbus/bus-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	routes := repository.NewRouteRepo(db)
	schedules := repository.NewScheduleRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)

	processor := gateway.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, 15*time.Second)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Deps{
		Cfg:       cfg,
		Redis:     rdb,
		Auth:      handler.NewAuthHandler(cfg, users, tokens),
		Users:     handler.NewUserHandler(users, bookings),
		Routes:    handler.NewRouteHandler(routes, schedules),
		Schedules: handler.NewScheduleHandler(schedules, routes),
		Bookings:  handler.NewBookingHandler(bookings),
		Payments:  handler.NewPaymentHandler(payments, bookings, processor, cfg.Currency, cfg.PaymentWebhookSecret),
	})

	// Background consumer for booking.confirmed events.  It reconnects
	// on broker failures and never takes the API down with it.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
