// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/vfsbus/bus-booking/internal/config"
	"github.com/vfsbus/bus-booking/internal/handler"
	"github.com/vfsbus/bus-booking/internal/middleware"
)

// Deps collects everything the route table needs.  main builds the
// handlers once and hands them over here.
type Deps struct {
	Cfg       config.Config
	Redis     *redis.Client
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Routes    *handler.RouteHandler
	Schedules *handler.ScheduleHandler
	Bookings  *handler.BookingHandler
	Payments  *handler.PaymentHandler
}

// Register wires every endpoint onto the Echo instance.
//
// Surface layout:
//   - /healthz and /v1/auth/* are open.
//   - The public catalog (routes, schedules, search) is open and sits
//     behind the Redis response cache.
//   - Everything else under /v1 requires a valid access token; admin
//     endpoints additionally require the ADMIN role.
//   - The payment webhook is authenticated by HMAC signature, not JWT.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Auth endpoints: no session required.
	ag := e.Group("/v1/auth")
	ag.POST("/register", d.Auth.Register)
	ag.POST("/login", d.Auth.Login)
	ag.POST("/refresh", d.Auth.Refresh)
	ag.POST("/refresh-access", d.Auth.RefreshAccess)
	// Logout validates the bearer or refresh token itself so clients
	// holding only a refresh token can still end a session.
	ag.POST("/logout", d.Auth.Logout)

	// Public catalog, cached and rate limited.
	pub := e.Group("/v1")
	pub.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis))
	pub.Use(middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis))
	pub.GET("/routes", d.Routes.List)
	pub.GET("/routes/:id", d.Routes.Get)
	pub.GET("/schedules", d.Schedules.List)
	pub.GET("/schedules/:id", d.Schedules.Get)
	pub.GET("/search/schedules", d.Schedules.Search)

	// Authenticated customer surface.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(d.Cfg.JWTSecret))
	auth.Use(middleware.RequireRole("ADMIN", "CUSTOMER"))
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis))
	auth.GET("/me", d.Users.Me)
	auth.PATCH("/me", d.Users.UpdateProfile)
	auth.GET("/me/bookings", d.Users.MyBookings)
	auth.POST("/bookings", d.Bookings.Create)
	auth.GET("/bookings/:id", d.Bookings.Get)
	auth.POST("/bookings/:id/cancel", d.Bookings.Cancel)
	auth.POST("/payments/intent", d.Payments.CreateIntent)
	auth.POST("/payments/:id/confirm", d.Payments.Confirm)
	auth.GET("/payments/:id", d.Payments.Get)

	// Admin surface.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(d.Cfg.JWTSecret))
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/routes", d.Routes.Create)
	admin.PATCH("/routes/:id", d.Routes.Update)
	admin.DELETE("/routes/:id", d.Routes.Deactivate)
	admin.POST("/schedules", d.Schedules.Create)
	admin.PATCH("/schedules/:id", d.Schedules.Update)
	admin.POST("/schedules/:id/cancel", d.Schedules.Cancel)
	admin.GET("/bookings", d.Bookings.ListAll)

	// Processor callbacks: HMAC-verified inside the handler.
	e.POST("/webhooks/payment", d.Payments.Webhook)
}
