package routes

import (
	"github.com/calebmorton/inkwell/internal/auth"
	"github.com/calebmorton/inkwell/internal/handlers"
	"github.com/calebmorton/inkwell/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes. Public auth
// endpoints sit behind a coarse per-IP edge limit; the per-operation
// lockout logic runs inside the services.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	tokenManager *auth.TokenManager,
) {
	edgeLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())

	// Public routes
	router.Group(func(r chi.Router) {
		r.Use(edgeLimit)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)
		r.Post("/auth/resend-verification", authHandler.ResendVerification)
	})

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/verification-status", authHandler.VerificationStatus)
		r.Get("/users/me", usersHandler.Me)
	})
}
