package handlers

import (
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gdg-garage/community-events-api/internal/auth"
)

// Handlers groups the HTTP handlers RegisterRoutes mounts.
type Handlers struct {
	Auth          *auth.AuthHandler
	Events        *EventHandler
	Registrations *RegistrationHandler
	Users         *UserHandler
	APIKeys       *APIKeyHandler
	Metrics       http.Handler
}

type RouteOptions struct {
	EnableCORS  bool
	FrontendURL string
}

func RegisterRoutes(r *chi.Mux, h Handlers, opts RouteOptions) huma.API {
	huma.NewError = newHumaError

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.EnableCORS {
		r.Use(corsMiddleware(opts.FrontendURL))
	}
	r.Use(h.Auth.AuthMiddleware)

	// Initialize Huma API
	config := huma.DefaultConfig("Community Events API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.TokenCookieName,
		},
		"apiKey": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if h.Metrics != nil {
		r.With(auth.RequireAuth).Handle("/metrics", h.Metrics)
	}

	// Auth routes
	r.Get("/auth/discord/login", h.Auth.HandleLogin)
	r.Get("/auth/discord/callback", h.Auth.HandleCallback)

	huma.Get(api, "/events", h.Events.HandleList, tagged("events"))
	huma.Get(api, "/events/{id}", h.Events.HandleGet, tagged("events"))

	// Protected routes
	huma.Get(api, "/me", h.Auth.HandleMe, secured("members"))
	huma.Patch(api, "/me", h.Users.HandleUpdateMe, secured("members"))
	huma.Get(api, "/me/registrations", h.Registrations.HandleMine, secured("members"))

	huma.Post(api, "/events", h.Events.HandleCreate, secured("events"))
	huma.Patch(api, "/events/{id}", h.Events.HandleUpdate, secured("events"))
	huma.Delete(api, "/events/{id}", h.Events.HandleDelete, secured("events"))
	huma.Post(api, "/events/{id}/reconcile", h.Events.HandleReconcile, secured("events"))

	huma.Post(api, "/events/{id}/registrations", h.Registrations.HandleRegister, secured("registrations"))
	huma.Get(api, "/events/{id}/registrations", h.Registrations.HandleEventRegistrations, secured("registrations"))
	huma.Post(api, "/events/{id}/waitlist", h.Registrations.HandleWaitlist, secured("waitlist"))
	huma.Post(api, "/events/{id}/promote", h.Registrations.HandlePromote, secured("waitlist"))
	huma.Post(api, "/registrations/{id}/approve", h.Registrations.HandleApprove, secured("waitlist"))
	huma.Post(api, "/registrations/{id}/reject", h.Registrations.HandleReject, secured("waitlist"))
	huma.Post(api, "/registrations/{id}/status", h.Registrations.HandleSetStatus, secured("registrations"))
	huma.Delete(api, "/registrations/{id}", h.Registrations.HandleRemove, secured("registrations"))
	huma.Get(api, "/removal-history", h.Registrations.HandleHistory, secured("registrations"))

	huma.Get(api, "/users", h.Users.HandleList, secured("users"))
	huma.Patch(api, "/users/{id}", h.Users.HandleAdminUpdate, secured("users"))
	huma.Delete(api, "/users/{id}", h.Users.HandleDelete, secured("users"))

	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, secured("api-keys"))
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, secured("api-keys"))
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, secured("api-keys"))

	return api
}

func tagged(tag string) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.Tags = []string{tag}
	}
}

func secured(tag string) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.Tags = []string{tag}
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"apiKey": {}}}
	}
}

// corsMiddleware allows the configured frontend origin, or echoes the request origin when
// none is configured, with credentials.
func corsMiddleware(frontendURL string) func(http.Handler) http.Handler {
	allowed := ""
	if u, err := url.Parse(frontendURL); err == nil && u.Host != "" {
		allowed = u.Scheme + "://" + u.Host
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed == "" || origin == allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-KEY")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
