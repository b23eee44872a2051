package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/handler"
	"github.com/kuadra/cocheras-api/internal/middleware"
)

// Handlers bundles every handler the API mounts so main wires the
// router with one call.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Spaces        *handler.SpaceHandler
	Districts     *handler.DistrictHandler
	Reservations  *handler.ReservationHandler
	Payments      *handler.PaymentHandler
	Notifications *handler.NotificationHandler
	Reviews       *handler.ReviewHandler
	Owners        *handler.OwnerHandler
	Search        *handler.SearchHandler
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the whole API surface. Unauthenticated operations
// live under /v1/auth and the public browse routes; protected
// endpoints live under /v1 behind the JWT middleware. cacheMW, when
// not nil, wraps the public read-only routes with the Redis response
// cache.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	// ----- auth (no session required) -----
	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	// Rotates the refresh token.
	g.POST("/refresh", h.Auth.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", h.Auth.RefreshAccess)
	// Logout accepts a refresh_token in the body; with a valid bearer
	// and no body token it revokes every session of the user.
	g.POST("/logout", h.Auth.Logout)

	// ----- public browse -----
	pub := e.Group("/v1")
	if cacheMW != nil {
		pub.Use(cacheMW)
	}
	pub.GET("/distritos", h.Districts.List)
	pub.GET("/distritos/:id", h.Districts.Get)
	pub.GET("/cocheras/search", h.Search.Search)
	pub.GET("/cocheras/cercanas", h.Search.Nearby)
	pub.GET("/cocheras/:id", h.Spaces.Get)
	pub.GET("/cocheras/:id/calificacion", h.Spaces.Rating)
	pub.GET("/resenas", h.Reviews.List)

	// ----- protected -----
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	auth.GET("/me", h.Users.Me)
	auth.PUT("/me", h.Users.UpdateProfile)
	auth.PUT("/me/password", h.Users.ChangePassword)
	auth.DELETE("/me", h.Users.Deactivate)

	auth.GET("/mis-cocheras", h.Spaces.ListMine)
	auth.POST("/cocheras", h.Spaces.Create)
	auth.PATCH("/cocheras/:id", h.Spaces.Update)
	auth.PUT("/cocheras/:id/disponibilidad", h.Spaces.SetAvailability)
	auth.DELETE("/cocheras/:id", h.Spaces.Delete)

	auth.POST("/distritos", h.Districts.Create)
	auth.PUT("/distritos/:id", h.Districts.Update)
	auth.DELETE("/distritos/:id", h.Districts.Delete)

	auth.POST("/reservas", h.Reservations.Create)
	auth.GET("/reservas", h.Reservations.ListMine)
	auth.GET("/reservas/owner", h.Reservations.ListForOwner)
	auth.GET("/reservas/:id", h.Reservations.Get)
	auth.PATCH("/reservas/:id", h.Reservations.UpdateWindow)
	auth.PATCH("/reservas/:id/estado", h.Reservations.UpdateStatus)
	auth.DELETE("/reservas/:id", h.Reservations.Cancel)

	auth.POST("/pagos/initiate", h.Payments.Initiate)
	auth.POST("/pagos/confirm", h.Payments.Confirm)
	auth.POST("/pagos", h.Payments.CreateDirect)
	auth.GET("/pagos", h.Payments.ListMine)

	auth.GET("/notificaciones", h.Notifications.ListMine)
	auth.PUT("/notificaciones/:id/leida", h.Notifications.MarkRead)
	auth.PUT("/notificaciones/leidas", h.Notifications.MarkAllRead)
	auth.DELETE("/notificaciones/:id", h.Notifications.Delete)

	auth.POST("/resenas", h.Reviews.Create)
	auth.PATCH("/resenas/:id", h.Reviews.Update)
	auth.DELETE("/resenas/:id", h.Reviews.Delete)

	auth.GET("/duenos", h.Owners.ListMine)
	auth.GET("/cocheras/:id/duenos", h.Owners.ListBySpace)
	auth.POST("/duenos", h.Owners.Assign)
	auth.DELETE("/duenos/:id", h.Owners.Remove)
}
