// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vanbora/internal/http/handlers"
	"vanbora/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(deps.Logger), middleware.RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tripHandler := handlers.NewTripHandler(deps.Trips, deps.Location, deps.Currency)
	r.GET("/api/trips", tripHandler.List)
	r.GET("/api/trips/:id", tripHandler.Get)

	webhookHandler := handlers.NewWebhookHandler(deps.Webhooks, deps.WebhookSecret)
	r.POST("/api/webhooks/payments",
		middleware.RateLimit(deps.WebhookRateLimit, deps.WebhookBurst), webhookHandler.Payments)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	userHandler := handlers.NewUserHandler(deps.Users)
	api.POST("/users", userHandler.Register)
	api.GET("/users/me", userHandler.Me)

	reservationHandler := handlers.NewReservationHandler(deps.Reservations)
	api.POST("/trips", tripHandler.Publish)
	api.PUT("/trips/:id", tripHandler.Update)
	api.DELETE("/trips/:id", tripHandler.Delete)
	api.GET("/trips/:id/passengers", reservationHandler.Passengers)
	api.POST("/trips/:id/reservations", reservationHandler.Create)

	api.GET("/reservations", reservationHandler.List)
	api.GET("/reservations/:id", reservationHandler.Get)
	api.POST("/reservations/:id/cancel", reservationHandler.Cancel)
	api.PUT("/reservations/:id", reservationHandler.Edit)

	return r
}
