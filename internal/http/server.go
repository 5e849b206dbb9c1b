// README: API gateway; owns the gin engine and delegates to module services.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"vanbora/internal/infra"
	"vanbora/internal/modules/reservation"
	"vanbora/internal/modules/trip"
	"vanbora/internal/modules/user"
	"vanbora/internal/modules/webhook"
)

type ServerDeps struct {
	Reservations *reservation.Service
	Trips        *trip.Service
	Users        *user.Service
	Webhooks     *webhook.Ingress
	Verifier     infra.TokenVerifier
	Logger       *slog.Logger

	// Location and Currency interpret trip date/time and price input.
	Location *time.Location
	Currency string

	WebhookSecret    string
	WebhookRateLimit float64
	WebhookBurst     int
	// Health reports readiness of backing stores; nil means always ready.
	Health func() error
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() *gin.Engine {
	return NewRouter(s.deps)
}
