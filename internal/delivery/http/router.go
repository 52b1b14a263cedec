package http

import (
	"net/http"

	"referharmony/internal/delivery/http/handler"
	"referharmony/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router           *mux.Router
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	referralHandler  *handler.ReferralHandler
	analyticsHandler *handler.AnalyticsHandler
	auditLogHandler  *handler.AuditLogHandler
	authMiddleware   *middleware.AuthMiddleware
	corsMiddleware   *middleware.CORSMiddleware
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	referralHandler *handler.ReferralHandler,
	analyticsHandler *handler.AnalyticsHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:           mux.NewRouter(),
		authHandler:      authHandler,
		userHandler:      userHandler,
		referralHandler:  referralHandler,
		analyticsHandler: analyticsHandler,
		auditLogHandler:  auditLogHandler,
		authMiddleware:   authMiddleware,
		corsMiddleware:   corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register/patient", r.authHandler.RegisterPatient).Methods(http.MethodPost)
	auth.HandleFunc("/register/provider", r.authHandler.RegisterProvider).Methods(http.MethodPost)
	auth.HandleFunc("/login", r.authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", r.authHandler.RefreshToken).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", r.authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// User routes (protected)
	users := api.PathPrefix("/users").Subrouter()
	users.Use(r.authMiddleware.Authenticate)
	users.HandleFunc("/me", r.userHandler.UpdateProfile).Methods(http.MethodPatch)

	// Provider directory (protected)
	providers := api.PathPrefix("/providers").Subrouter()
	providers.Use(r.authMiddleware.Authenticate)
	providers.HandleFunc("", r.userHandler.ListProviders).Methods(http.MethodGet)

	// Referral routes (protected); creation and status updates are
	// provider/admin actions, reads are participant-scoped in the usecase
	referrals := api.PathPrefix("/referrals").Subrouter()
	referrals.Use(r.authMiddleware.Authenticate)
	referrals.HandleFunc("", r.referralHandler.List).Methods(http.MethodGet)
	referrals.HandleFunc("/analytics/overview", r.analyticsHandler.Overview).Methods(http.MethodGet)
	referrals.HandleFunc("/{id}", r.referralHandler.Get).Methods(http.MethodGet)

	referralWrites := api.PathPrefix("/referrals").Subrouter()
	referralWrites.Use(r.authMiddleware.Authenticate)
	referralWrites.Use(middleware.RequireProviderOrAdmin)
	referralWrites.HandleFunc("", r.referralHandler.Create).Methods(http.MethodPost)
	referralWrites.HandleFunc("/{id}/status", r.referralHandler.UpdateStatus).Methods(http.MethodPatch)

	// Audit trail (admin only)
	admin := api.PathPrefix("/audit-logs").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("", r.auditLogHandler.GetAll).Methods(http.MethodGet)
	admin.HandleFunc("/{id}", r.auditLogHandler.Get).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
