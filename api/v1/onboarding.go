package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
	"ai-receptionist/user-portal/user-portal-backend/internal/notifications"
	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// OnboardingAPI holds the onboarding API dependencies
type OnboardingAPI struct {
	Handler    *onboarding.Handler
	Service    *onboarding.Service
	Repository onboarding.Repository

	Notifications        *notifications.Manager
	NotificationsHandler *notifications.Handler
}

// SetupOnboardingAPI sets up the onboarding API over postgres. A nil db
// selects the in-memory repository.
func SetupOnboardingAPI(db *sqlx.DB, logger *zap.Logger, allowedOrigins []string) (*OnboardingAPI, error) {
	// Create repository
	var repository onboarding.Repository
	if db != nil {
		repository = onboarding.NewRepository(db)
	} else {
		repository = onboarding.NewMemoryRepository()
		logger.Warn("Using in-memory onboarding repository; records are lost on restart")
	}

	// Create service
	service := onboarding.NewService(repository, logger)

	// Approval changes are pushed to waiting clients
	manager := notifications.NewManager(logger, allowedOrigins)
	service.SetNotifier(manager)

	// Create handlers
	handler := onboarding.NewHandler(service, logger)

	return &OnboardingAPI{
		Handler:              handler,
		Service:              service,
		Repository:           repository,
		Notifications:        manager,
		NotificationsHandler: notifications.NewHandler(manager, logger),
	}, nil
}

// Close closes open notification connections.
func (api *OnboardingAPI) Close() {
	api.Notifications.Close()
}

// RegisterOnboardingRoutes registers the onboarding, notification and auth
// routes on the router group. Everything but auth/ping requires a bearer token.
func RegisterOnboardingRoutes(router *gin.RouterGroup, api *OnboardingAPI, tokens *auth.TokenManager) {
	auth.RegisterRoutes(router, auth.NewHandler(tokens))

	protected := router.Group("", auth.RequireUser(tokens))
	api.Handler.RegisterRoutes(protected)
	api.NotificationsHandler.RegisterRoutes(protected)
}
