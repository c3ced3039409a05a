package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	ListMine(c *gin.Context)
	ListForProperty(c *gin.Context)
	Transition(c *gin.Context)
	TransitionTo(status domainbooking.Status) gin.HandlerFunc
}

type AvailabilityHTTP interface {
	Get(c *gin.Context)
	SetOverride(c *gin.Context)
	RemoveOverride(c *gin.Context)
}

type FeedHTTP interface {
	Calendar(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Availability   AvailabilityHTTP
	Feed           FeedHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigin)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings", h.Booking.List)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/transitions", h.Booking.Transition)
		api.POST("/bookings/:id/approve", h.Booking.TransitionTo(domainbooking.StatusApproved))
		api.POST("/bookings/:id/deny", h.Booking.TransitionTo(domainbooking.StatusDenied))
		api.POST("/bookings/:id/cancel", h.Booking.TransitionTo(domainbooking.StatusCancelled))
		api.POST("/bookings/:id/complete", h.Booking.TransitionTo(domainbooking.StatusCompleted))
		api.GET("/properties/:id/bookings", h.Booking.ListForProperty)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Availability != nil {
		api.GET("/properties/:id/availability", h.Availability.Get)
		api.PUT("/properties/:id/availability/:date", h.Availability.SetOverride)
		api.DELETE("/properties/:id/availability/:date", h.Availability.RemoveOverride)
	}
	if h.Feed != nil {
		api.GET("/properties/:id/calendar.ics", h.Feed.Calendar)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", idempotencyHeader, obs.RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Retry-After",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
