package api

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pollbox/pollbox/internal/account"
	"github.com/pollbox/pollbox/internal/admin"
	"github.com/pollbox/pollbox/internal/api/handlers"
	"github.com/pollbox/pollbox/internal/api/middleware"
	"github.com/pollbox/pollbox/internal/auth"
	"github.com/pollbox/pollbox/internal/polls"
	"github.com/pollbox/pollbox/internal/storage"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	AccountService *account.Service
	AdminService   *admin.Service
	PollService    *polls.Service
	Store          *storage.Store
	Templates      *template.Template
	StaticFS       fs.FS
	SessionTTL     time.Duration
	DefaultAdmin   string   // reserved default admin email
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.DefaultAdmin, cfg.SessionTTL)
	pollHandler := handlers.NewPollHandler(cfg.PollService, cfg.Store, cfg.Logger)
	profileHandler := handlers.NewProfileHandler(cfg.AccountService, cfg.AuthService, cfg.Store, cfg.Logger)
	adminHandler := handlers.NewAdminHandler(cfg.AdminService, cfg.AuthService, cfg.JWTService, cfg.SessionTTL)
	pageHandler := handlers.NewPageHandler(cfg.PollService, cfg.AuthService, cfg.Templates)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/token", authHandler.Login)
		r.Get("/auth/logout", authHandler.Logout)
		r.Get("/auth/verify/{token}", authHandler.Verify)
		r.Post("/auth/resend_verification", authHandler.ResendVerification)
		r.Post("/auth/forgot_password", authHandler.ForgotPassword)
		r.Post("/auth/reset_password/{token}", authHandler.ResetPassword)

		// Email change confirmation arrives from a mail link, outside
		// any session.
		r.Get("/my_profile/confirm_email_change/{token}", profileHandler.ConfirmEmailChange)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(cfg.JWTService))

			r.Get("/me", authHandler.Me)

			r.Route("/polls", func(r chi.Router) {
				r.Get("/", pollHandler.MyPolls)
				r.Post("/", pollHandler.Create)
				r.Post("/{id}/deadline", pollHandler.UpdateDeadline)
				r.Post("/{id}/toggle_visibility", pollHandler.ToggleVisibility)
				r.Post("/{id}/toggle_archive", pollHandler.ToggleArchive)
				r.Delete("/{id}", pollHandler.Delete)
			})

			r.Route("/my_profile", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Post("/update_name", profileHandler.UpdateName)
				r.Post("/change_password", profileHandler.ChangePassword)
				r.Post("/avatar", profileHandler.SetAvatar)
				r.Post("/request_email_change", profileHandler.RequestEmailChange)
				r.Post("/delete_account", profileHandler.DeleteAccount)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				// Setup stays reachable for the unrotated default
				// admin; everything else is gated behind it.
				r.Post("/setup", adminHandler.Setup)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSetupComplete(cfg.DefaultAdmin))

					r.Get("/", adminHandler.Overview)
					r.Post("/users", adminHandler.CreateAdmin)
					r.Post("/users/{id}/toggle_block", adminHandler.ToggleBlock)
					r.Delete("/users/{id}", adminHandler.DeleteUser)
					r.Post("/polls/{id}/toggle_visibility", pollHandler.ToggleVisibility)
					r.Post("/polls/{id}/toggle_archive", pollHandler.ToggleArchive)
					r.Post("/polls/{id}/deadline", pollHandler.UpdateDeadline)
					r.Delete("/polls/{id}", pollHandler.Delete)
				})
			})
		})
	})

	// Public voting surface
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSession(cfg.JWTService))

		r.Get("/", pageHandler.Home)
		r.Get("/polls/{public_link}", pageHandler.PollPage)
		r.Post("/polls/{public_link}/vote", pollHandler.Vote)
		r.Get("/polls/{public_link}/results", pageHandler.ResultsPage)

		// The reset email links here; the form posts back to the same
		// path.
		r.Get("/reset-password/{token}", pageHandler.ResetPasswordPage)
		r.Post("/reset-password/{token}", authHandler.ResetPassword)
	})

	// Web pages behind a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWTService))

		r.Get("/dashboard", pageHandler.Dashboard)
		r.Get("/create_poll", pageHandler.CreatePollPage)
		r.Post("/create_poll", pollHandler.Create)
	})

	// Static files
	if cfg.StaticFS != nil {
		fileServer := http.FileServer(http.FS(cfg.StaticFS))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	// User uploads live on disk, outside the binary
	if cfg.Store != nil {
		uploadServer := http.FileServer(http.Dir(cfg.Store.Dir()))
		r.Handle(storage.URLPrefix+"*", http.StripPrefix(storage.URLPrefix, uploadServer))
	}

	return &Router{r}
}
